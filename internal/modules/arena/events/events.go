// Package events holds the payloads the arena module puts on the bus and
// on the wire.
package events

import (
	"time"

	"github.com/imfiit/arena/internal/modules/arena/battle"
	"github.com/imfiit/arena/internal/modules/arena/lobby"
)

// ProfileDelta is the stat change one finished battle applies to one
// player. Counters are increments, not totals.
type ProfileDelta struct {
	PlayerID string        `json:"playerId"`
	BattleID string        `json:"battleId"`
	Result   battle.Result `json:"result"`
	XP       int           `json:"xp"`
	Coins    int           `json:"coins"`
	Wins     int           `json:"wins"`
	Losses   int           `json:"losses"`
	Draws    int           `json:"draws"`
	At       time.Time     `json:"at"`
}

// DeltasFor derives one delta per rewarded participant.
func DeltasFor(sum battle.Summary) []ProfileDelta {
	out := make([]ProfileDelta, 0, len(sum.Rewards))
	for _, r := range sum.Rewards {
		d := ProfileDelta{
			PlayerID: r.PlayerID,
			BattleID: sum.BattleID,
			Result:   r.Result,
			XP:       r.XP,
			Coins:    r.Coins,
			At:       sum.FinishedAt,
		}
		switch r.Result {
		case battle.ResultWin:
			d.Wins = 1
		case battle.ResultLoss:
			d.Losses = 1
		case battle.ResultDraw:
			d.Draws = 1
		}
		out = append(out, d)
	}
	return out
}

// RoomEvent is the payload of every outbound room.* frame.
type RoomEvent struct {
	Room     lobby.Room `json:"room"`
	PlayerID string     `json:"playerId,omitempty"`
	Ready    *bool      `json:"ready,omitempty"`
}

// TurnEvent carries one resolved turn and the projection after it.
type TurnEvent struct {
	Record battle.TurnRecord `json:"record"`
	Battle battle.Snapshot   `json:"battle"`
}

// BattleEnded is the client-facing end of battle notice.
type BattleEnded struct {
	BattleID    string                 `json:"battleId"`
	RoomID      string                 `json:"roomId"`
	WinnerID    string                 `json:"winnerId,omitempty"`
	LoserID     string                 `json:"loserId,omitempty"`
	Draw        bool                   `json:"draw"`
	Reason      battle.EndReason       `json:"reason"`
	Rewards     []battle.Reward        `json:"rewards"`
	Final       [2]battle.FighterState `json:"final"`
	DurationMs  int64                  `json:"durationMs"`
	TotalTurns  int                    `json:"totalTurns"`
	TotalDamage int                    `json:"totalDamage"`
	DamageDealt map[string]int         `json:"damageDealt"`
}

// EndedFrom trims a summary down to what players are shown.
func EndedFrom(sum battle.Summary) BattleEnded {
	return BattleEnded{
		BattleID:    sum.BattleID,
		RoomID:      sum.RoomID,
		WinnerID:    sum.WinnerID,
		LoserID:     sum.LoserID,
		Draw:        sum.Draw,
		Reason:      sum.Reason,
		Rewards:     sum.Rewards,
		Final:       sum.Final,
		DurationMs:  sum.DurationMs,
		TotalTurns:  sum.TotalTurns,
		TotalDamage: sum.TotalDamage,
		DamageDealt: sum.DamageDealt,
	}
}

// Inbound payloads. Room ids are optional where the sender's current room
// can be used instead.
type (
	JoinRoom struct {
		RoomID string `json:"roomId" validate:"required,max=64"`
	}

	RoomRef struct {
		RoomID string `json:"roomId" validate:"omitempty,max=64"`
	}

	Action struct {
		BattleID string            `json:"battleId" validate:"required,max=64"`
		Kind     battle.ActionKind `json:"kind" validate:"required,max=32"`
	}
)
