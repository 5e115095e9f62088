// Package sim plays offline battles on the real engine with a fixed seed,
// for balance tuning from the command line.
package sim

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/imfiit/arena/internal/domain"
	"github.com/imfiit/arena/internal/logging"
	"github.com/imfiit/arena/internal/modules/arena/battle"
)

// Config describes one simulated battle. Players[0] moves first.
type Config struct {
	Players  [2]domain.Player
	Seed     int64
	MaxTurns int
	Rules    battle.Rules
	Policy   battle.RewardPolicy
}

// Pick chooses the most expensive damaging action the fighter can afford,
// and guards when it cannot afford any.
func Pick(rules battle.Rules, self battle.FighterState) battle.ActionKind {
	best, bestCost := battle.ActionBlock, -1
	for _, kind := range []battle.ActionKind{battle.ActionSpecial, battle.ActionKick, battle.ActionPunch} {
		spec, ok := rules.Actions[kind]
		if !ok || spec.Guard || spec.EnergyCost > self.Energy {
			continue
		}
		if spec.EnergyCost > bestCost {
			best, bestCost = kind, spec.EnergyCost
		}
	}
	return best
}

// Run plays a battle to the end with both sides following Pick. The same
// Config always produces the same Summary apart from ids.
func Run(ctx context.Context, cfg Config) (battle.Summary, error) {
	rules := cfg.Rules
	if rules.Actions == nil {
		rules = battle.DefaultRules()
	}

	var (
		sum   *battle.Summary
		clock = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	)
	opts := []battle.Option{
		battle.WithClock(battle.NopClock),
		battle.WithTiming(0, 0, cfg.MaxTurns),
		battle.WithRules(func() battle.Rules { return rules }),
		battle.WithRNG(nil, func() (int64, error) { return cfg.Seed, nil }),
		battle.WithNow(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
		battle.WithLogger(logging.Discard()),
		battle.WithEndHook(func(_ context.Context, s battle.Summary) { sum = &s }),
	}
	if cfg.Policy != nil {
		opts = append(opts, battle.WithRewardPolicy(cfg.Policy))
	}
	engine := battle.NewEngine(opts...)
	defer func() { _ = engine.Shutdown(ctx) }()

	snap, err := engine.StartBattle(ctx, battle.StartRequest{
		RoomID:  "simulation",
		HostID:  cfg.Players[0].ID,
		Players: cfg.Players,
	})
	if err != nil {
		return battle.Summary{}, err
	}

	limit := cfg.MaxTurns
	if limit <= 0 {
		limit = battle.DefaultMaxTurns
	}
	for i := 0; sum == nil; i++ {
		if i > limit {
			return battle.Summary{}, errors.New("simulation did not finish")
		}
		self := snap.Fighters[0]
		if self.ID != snap.CurrentTurn {
			self = snap.Fighters[1]
		}
		_, snap, err = engine.SubmitAction(ctx, snap.ID, self.ID, Pick(rules, self))
		if err != nil {
			return battle.Summary{}, fmt.Errorf("turn %d: %w", i+1, err)
		}
	}
	return *sum, nil
}

// ParsePlayer reads "id,level,strength,endurance". The id doubles as the
// display name.
func ParsePlayer(s string) (domain.Player, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.Player{}, fmt.Errorf("fighter %q: want id,level,strength,endurance", s)
	}
	var nums [3]int
	for i, raw := range parts[1:] {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return domain.Player{}, fmt.Errorf("fighter %q: %w", s, err)
		}
		nums[i] = n
	}
	id := strings.TrimSpace(parts[0])
	p := domain.Player{ID: id, Name: id, Level: nums[0], Strength: nums[1], Endurance: nums[2]}
	if err := p.Validate(); err != nil {
		return domain.Player{}, fmt.Errorf("fighter %q: %w", s, err)
	}
	return p, nil
}
