package history

import (
	"context"
	"errors"

	"github.com/surrealdb/surrealdb.go"

	"github.com/imfiit/arena/internal/database"
	"github.com/imfiit/arena/internal/modules/arena/battle"
	"github.com/imfiit/arena/internal/modules/arena/events"
)

// SurrealStore keeps history in SurrealDB. Record ids are derived from
// battle and player ids, which makes writes idempotent.
type SurrealStore struct {
	conn *database.Connection
}

var _ Store = (*SurrealStore)(nil)

func NewSurrealStore(conn *database.Connection) *SurrealStore {
	return &SurrealStore{conn: conn}
}

// surrealBattle is the stored shape. Times are unix milliseconds.
type surrealBattle struct {
	BattleID    string          `json:"battle_id"`
	RoomID      string          `json:"room_id"`
	Players     []string        `json:"players"`
	WinnerID    string          `json:"winner_id"`
	LoserID     string          `json:"loser_id"`
	Draw        bool            `json:"draw"`
	Reason      string          `json:"reason"`
	Rewards     []battle.Reward `json:"rewards"`
	TotalTurns  int             `json:"total_turns"`
	TotalDamage int             `json:"total_damage"`
	DurationMs  int64           `json:"duration_ms"`
	Stake       int             `json:"stake"`
	Seed        int64           `json:"seed"`
	StartedAt   int64           `json:"started_at"`
	FinishedAt  int64           `json:"finished_at"`
}

type surrealProfile struct {
	XP        int   `json:"xp"`
	Coins     int   `json:"coins"`
	Wins      int   `json:"wins"`
	Losses    int   `json:"losses"`
	Draws     int   `json:"draws"`
	UpdatedAt int64 `json:"updated_at"`
}

func (s *SurrealStore) do(ctx context.Context, fn func(ctx context.Context, db *surrealdb.DB) error) error {
	if d := s.conn.QueryTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return s.conn.WithConnection(ctx, func(db *surrealdb.DB) error { return fn(ctx, db) })
}

func (s *SurrealStore) SaveBattle(ctx context.Context, sum battle.Summary) error {
	r := RecordFrom(sum)
	row := surrealBattle{
		BattleID:    r.BattleID,
		RoomID:      r.RoomID,
		Players:     r.Players,
		WinnerID:    r.WinnerID,
		LoserID:     r.LoserID,
		Draw:        r.Draw,
		Reason:      string(r.Reason),
		Rewards:     r.Rewards,
		TotalTurns:  r.TotalTurns,
		TotalDamage: r.TotalDamage,
		DurationMs:  r.DurationMs,
		Stake:       r.Stake,
		Seed:        r.Seed,
		StartedAt:   toMillis(r.StartedAt),
		FinishedAt:  toMillis(r.FinishedAt),
	}
	err := s.do(ctx, func(ctx context.Context, db *surrealdb.DB) error {
		return database.Execute(ctx, db,
			"UPSERT type::thing('battle', $id) CONTENT $row",
			map[string]any{"id": r.BattleID, "row": row})
	})
	return database.WrapError(err, "save battle")
}

// ApplyStatDelta marks the delta as applied and bumps the profile in one
// transaction. A delta seen before leaves the profile untouched.
func (s *SurrealStore) ApplyStatDelta(ctx context.Context, d events.ProfileDelta) error {
	const q = `BEGIN TRANSACTION;
LET $seen = (SELECT VALUE id FROM type::thing('profile_delta', [$battle, $player]));
IF array::len($seen) = 0 {
	CREATE type::thing('profile_delta', [$battle, $player]) SET at = $at;
	UPSERT type::thing('profile', $player) SET
		xp = (xp OR 0) + $xp,
		coins = (coins OR 0) + $coins,
		wins = (wins OR 0) + $wins,
		losses = (losses OR 0) + $losses,
		draws = (draws OR 0) + $draws,
		updated_at = $at;
};
COMMIT TRANSACTION;`
	err := s.do(ctx, func(ctx context.Context, db *surrealdb.DB) error {
		return database.Execute(ctx, db, q, map[string]any{
			"battle": d.BattleID,
			"player": d.PlayerID,
			"xp":     d.XP,
			"coins":  d.Coins,
			"wins":   d.Wins,
			"losses": d.Losses,
			"draws":  d.Draws,
			"at":     toMillis(d.At),
		})
	})
	return database.WrapError(err, "apply stat delta")
}

func (s *SurrealStore) RecentBattles(ctx context.Context, playerID string, limit int) ([]Record, error) {
	var rows []surrealBattle
	err := s.do(ctx, func(ctx context.Context, db *surrealdb.DB) error {
		var err error
		rows, err = database.Query[surrealBattle](ctx, db,
			"SELECT * OMIT id FROM battle WHERE $player IN players ORDER BY finished_at DESC, battle_id LIMIT $limit",
			map[string]any{"player": playerID, "limit": clampLimit(limit)})
		return err
	})
	if err != nil {
		return nil, database.WrapError(err, "recent battles")
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, Record{
			BattleID:    row.BattleID,
			RoomID:      row.RoomID,
			Players:     row.Players,
			WinnerID:    row.WinnerID,
			LoserID:     row.LoserID,
			Draw:        row.Draw,
			Reason:      battle.EndReason(row.Reason),
			Rewards:     row.Rewards,
			TotalTurns:  row.TotalTurns,
			TotalDamage: row.TotalDamage,
			DurationMs:  row.DurationMs,
			Stake:       row.Stake,
			Seed:        row.Seed,
			StartedAt:   fromMillis(row.StartedAt),
			FinishedAt:  fromMillis(row.FinishedAt),
		})
	}
	return out, nil
}

func (s *SurrealStore) Profile(ctx context.Context, playerID string) (Profile, error) {
	var row *surrealProfile
	err := s.do(ctx, func(ctx context.Context, db *surrealdb.DB) error {
		var err error
		row, err = database.QueryOne[surrealProfile](ctx, db,
			"SELECT * OMIT id FROM type::thing('profile', $player)",
			map[string]any{"player": playerID})
		return err
	})
	p := Profile{PlayerID: playerID}
	switch {
	case errors.Is(err, database.ErrNotFound):
		return p, nil
	case err != nil:
		return Profile{}, database.WrapError(err, "profile")
	}
	p.XP, p.Coins, p.Wins, p.Losses, p.Draws = row.XP, row.Coins, row.Wins, row.Losses, row.Draws
	p.UpdatedAt = fromMillis(row.UpdatedAt)
	return p, nil
}

func (s *SurrealStore) Close() error {
	return s.conn.Close(context.Background())
}
