package battle

import (
	"math"

	"github.com/imfiit/arena/internal/domain"
)

// Result is a participant's outcome in a finished battle.
type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultDraw Result = "draw"
)

// Reward is what a participant earns from one battle.
type Reward struct {
	PlayerID string `json:"playerId"`
	Result   Result `json:"result"`
	XP       int    `json:"xp"`
	Coins    int    `json:"coins"`
}

// RewardPolicy turns a finished battle into rewards. Implementations must be
// deterministic and free of side effects.
type RewardPolicy interface {
	Compute(winner, loser domain.Player, turns int) (win, lose Reward)
}

// Curve is the built-in reward policy.
type Curve struct{}

var _ RewardPolicy = Curve{}

// Compute implements RewardPolicy.
func (Curve) Compute(winner, loser domain.Player, turns int) (Reward, Reward) {
	return ComputeRewards(winner, loser, turns)
}

// ComputeRewards scores a decisive battle. The winner gets a base plus a
// per-turn bonus, raised for an upset and lowered when beating a weaker
// opponent. The loser's consolation is non-zero and strictly smaller.
func ComputeRewards(winner, loser domain.Player, turns int) (Reward, Reward) {
	winXP := WinnerXP(winner.Level, loser.Level, turns)
	loseXP := ConsolationXP(winXP)
	return Reward{PlayerID: winner.ID, Result: ResultWin, XP: winXP, Coins: winXP / 5},
		Reward{PlayerID: loser.ID, Result: ResultLoss, XP: loseXP, Coins: loseXP / 5}
}

// ComputeDrawRewards gives both sides the consolation for an even battle.
func ComputeDrawRewards(a, b domain.Player, turns int) (Reward, Reward) {
	xp := ConsolationXP(baseXP(turns))
	return Reward{PlayerID: a.ID, Result: ResultDraw, XP: xp, Coins: xp / 5},
		Reward{PlayerID: b.ID, Result: ResultDraw, XP: xp, Coins: xp / 5}
}

// WinnerXP is the level-adjusted winner reward.
func WinnerXP(winnerLevel, loserLevel, turns int) int {
	factor := 1.0
	switch diff := loserLevel - winnerLevel; {
	case diff > 0:
		factor += math.Min(0.5, 0.1*float64(diff))
	case diff < 0:
		factor = math.Max(0.5, 1-0.05*float64(-diff))
	}
	return int(math.Round(float64(baseXP(turns)) * factor))
}

// ConsolationXP is the loser's share of a winner reward.
func ConsolationXP(winXP int) int {
	xp := max(10, int(0.3*float64(winXP)))
	if xp >= winXP {
		xp = winXP - 1
	}
	return max(1, xp)
}

func baseXP(turns int) int {
	return 50 + 2*max(0, turns)
}
