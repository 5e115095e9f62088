// Package history records finished battles and the stat changes they
// cause. It consumes the arena's bus events; nothing in the battle path
// waits on it.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/imfiit/arena/internal/config"
	"github.com/imfiit/arena/internal/database"
	"github.com/imfiit/arena/internal/modules/arena/battle"
	"github.com/imfiit/arena/internal/modules/arena/events"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Store persists battle records and player profiles. SaveBattle and
// ApplyStatDelta are idempotent per battle and per (battle, player).
type Store interface {
	SaveBattle(ctx context.Context, sum battle.Summary) error
	ApplyStatDelta(ctx context.Context, delta events.ProfileDelta) error
	// RecentBattles returns playerID's battles, newest first.
	RecentBattles(ctx context.Context, playerID string, limit int) ([]Record, error)
	// Profile returns the accumulated stats. Unknown players get a zero
	// profile.
	Profile(ctx context.Context, playerID string) (Profile, error)
	Close() error
}

// Record is one finished battle as stored and served.
type Record struct {
	BattleID    string           `json:"battleId"`
	RoomID      string           `json:"roomId"`
	Players     []string         `json:"players"`
	WinnerID    string           `json:"winnerId,omitempty"`
	LoserID     string           `json:"loserId,omitempty"`
	Draw        bool             `json:"draw"`
	Reason      battle.EndReason `json:"reason"`
	Rewards     []battle.Reward  `json:"rewards"`
	TotalTurns  int              `json:"totalTurns"`
	TotalDamage int              `json:"totalDamage"`
	DurationMs  int64            `json:"durationMs"`
	Stake       int              `json:"stake,omitempty"`
	Seed        int64            `json:"seed"`
	StartedAt   time.Time        `json:"startedAt"`
	FinishedAt  time.Time        `json:"finishedAt"`
}

// RecordFrom flattens a summary. The turn log goes to the replay archive.
func RecordFrom(sum battle.Summary) Record {
	players := make([]string, len(sum.Participants))
	for i, p := range sum.Participants {
		players[i] = p.ID
	}
	return Record{
		BattleID:    sum.BattleID,
		RoomID:      sum.RoomID,
		Players:     players,
		WinnerID:    sum.WinnerID,
		LoserID:     sum.LoserID,
		Draw:        sum.Draw,
		Reason:      sum.Reason,
		Rewards:     append([]battle.Reward(nil), sum.Rewards...),
		TotalTurns:  sum.TotalTurns,
		TotalDamage: sum.TotalDamage,
		DurationMs:  sum.DurationMs,
		Stake:       sum.Stake,
		Seed:        sum.Seed,
		StartedAt:   sum.StartedAt.UTC(),
		FinishedAt:  sum.FinishedAt.UTC(),
	}
}

// Profile is a player's accumulated battle stats.
type Profile struct {
	PlayerID  string    `json:"playerId"`
	XP        int       `json:"xp"`
	Coins     int       `json:"coins"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
	Draws     int       `json:"draws"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Battles is the number of battles the profile has counted.
func (p Profile) Battles() int {
	return p.Wins + p.Losses + p.Draws
}

func (p *Profile) apply(d events.ProfileDelta) {
	p.XP += d.XP
	p.Coins += d.Coins
	p.Wins += d.Wins
	p.Losses += d.Losses
	p.Draws += d.Draws
	p.UpdatedAt = d.At.UTC()
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.History.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		db, err := database.OpenSQLite(ctx, cfg.History.SQLitePath)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(ctx, db)
	case "surreal":
		conn := database.NewConnection(cfg.Surreal, logger)
		if err := conn.Connect(ctx); err != nil {
			return nil, err
		}
		conn.StartMonitoring(30 * time.Second)
		return NewSurrealStore(conn), nil
	}
	return nil, fmt.Errorf("unknown history driver %q", cfg.History.Driver)
}
