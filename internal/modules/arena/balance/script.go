package balance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/spf13/afero"

	"github.com/imfiit/arena/internal/domain"
	"github.com/imfiit/arena/internal/modules/arena/battle"
)

const scriptTimeout = 100 * time.Millisecond

// RewardScript scores decisive battles with a Tengo script. The script
// reads winner_level, loser_level and turns and must set winner_xp and
// loser_xp. Any failure, or a result outside 0 < loser_xp < winner_xp,
// falls back to the built-in curve.
//
//	winner_xp = 40 + turns * 3
//	loser_xp = winner_xp / 4
type RewardScript struct {
	compiled *tengo.Compiled
	fallback battle.RewardPolicy
	logger   *slog.Logger
}

var _ battle.RewardPolicy = (*RewardScript)(nil)

// LoadRewardScript reads and compiles a script file.
func LoadRewardScript(fs afero.Fs, path string, logger *slog.Logger) (*RewardScript, error) {
	src, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read reward script: %w", err)
	}
	return NewRewardScript(src, logger)
}

// NewRewardScript compiles src with the math module available.
func NewRewardScript(src []byte, logger *slog.Logger) (*RewardScript, error) {
	if logger == nil {
		logger = slog.Default()
	}

	script := tengo.NewScript(src)
	script.SetImports(stdlib.GetModuleMap("math"))
	for _, name := range []string{"winner_level", "loser_level", "turns", "winner_xp", "loser_xp"} {
		if err := script.Add(name, 0); err != nil {
			return nil, fmt.Errorf("declare %s: %w", name, err)
		}
	}
	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile reward script: %w", err)
	}
	return &RewardScript{
		compiled: compiled,
		fallback: battle.Curve{},
		logger:   logger.With("service", "balance.rewards"),
	}, nil
}

// Compute implements battle.RewardPolicy.
func (s *RewardScript) Compute(winner, loser domain.Player, turns int) (battle.Reward, battle.Reward) {
	winXP, loseXP, err := s.run(winner.Level, loser.Level, turns)
	if err != nil {
		s.logger.Warn("Reward script rejected, using built-in curve", "error", err)
		return s.fallback.Compute(winner, loser, turns)
	}
	return battle.Reward{PlayerID: winner.ID, Result: battle.ResultWin, XP: winXP, Coins: winXP / 5},
		battle.Reward{PlayerID: loser.ID, Result: battle.ResultLoss, XP: loseXP, Coins: loseXP / 5}
}

func (s *RewardScript) run(winnerLevel, loserLevel, turns int) (int, int, error) {
	// Compiled values are shared state; each run works on a clone.
	c := s.compiled.Clone()
	for name, v := range map[string]int{"winner_level": winnerLevel, "loser_level": loserLevel, "turns": turns} {
		if err := c.Set(name, v); err != nil {
			return 0, 0, fmt.Errorf("set %s: %w", name, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), scriptTimeout)
	defer cancel()
	if err := c.RunContext(ctx); err != nil {
		return 0, 0, fmt.Errorf("run reward script: %w", err)
	}

	winXP, loseXP := c.Get("winner_xp").Int(), c.Get("loser_xp").Int()
	if loseXP <= 0 || loseXP >= winXP {
		return 0, 0, fmt.Errorf("reward script returned winner_xp=%d loser_xp=%d", winXP, loseXP)
	}
	return winXP, loseXP, nil
}
