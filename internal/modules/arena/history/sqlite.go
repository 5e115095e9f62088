package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/imfiit/arena/internal/database"
	"github.com/imfiit/arena/internal/modules/arena/battle"
	"github.com/imfiit/arena/internal/modules/arena/events"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS battles (
	battle_id    TEXT PRIMARY KEY,
	room_id      TEXT NOT NULL,
	players_json TEXT NOT NULL,
	winner_id    TEXT NOT NULL DEFAULT '',
	loser_id     TEXT NOT NULL DEFAULT '',
	draw         INTEGER NOT NULL,
	reason       TEXT NOT NULL,
	rewards_json TEXT NOT NULL,
	total_turns  INTEGER NOT NULL,
	total_damage INTEGER NOT NULL,
	duration_ms  INTEGER NOT NULL,
	stake        INTEGER NOT NULL,
	seed         INTEGER NOT NULL,
	started_at   INTEGER NOT NULL,
	finished_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS battle_players (
	battle_id TEXT NOT NULL REFERENCES battles(battle_id) ON DELETE CASCADE,
	player_id TEXT NOT NULL,
	PRIMARY KEY (battle_id, player_id)
);
CREATE INDEX IF NOT EXISTS battle_players_by_player ON battle_players(player_id);
CREATE TABLE IF NOT EXISTS profiles (
	player_id  TEXT PRIMARY KEY,
	xp         INTEGER NOT NULL DEFAULT 0,
	coins      INTEGER NOT NULL DEFAULT 0,
	wins       INTEGER NOT NULL DEFAULT 0,
	losses     INTEGER NOT NULL DEFAULT 0,
	draws      INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS applied_deltas (
	battle_id TEXT NOT NULL,
	player_id TEXT NOT NULL,
	PRIMARY KEY (battle_id, player_id)
);`

// SQLiteStore keeps history in an embedded SQLite file. Timestamps are
// stored as unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore applies the schema to db and takes ownership of it.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, database.NewDBError(err, "apply history schema")
	}
	return &SQLiteStore{db: db}, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func (s *SQLiteStore) SaveBattle(ctx context.Context, sum battle.Summary) error {
	r := RecordFrom(sum)
	players, err := json.Marshal(r.Players)
	if err != nil {
		return err
	}
	rewards, err := json.Marshal(r.Rewards)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return database.NewDBError(err, "begin save battle")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO battles
		(battle_id, room_id, players_json, winner_id, loser_id, draw, reason, rewards_json,
		 total_turns, total_damage, duration_ms, stake, seed, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BattleID, r.RoomID, string(players), r.WinnerID, r.LoserID, r.Draw, string(r.Reason), string(rewards),
		r.TotalTurns, r.TotalDamage, r.DurationMs, r.Stake, r.Seed, toMillis(r.StartedAt), toMillis(r.FinishedAt))
	if err != nil {
		return database.NewDBError(err, "insert battle")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	for _, id := range r.Players {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO battle_players (battle_id, player_id) VALUES (?, ?)`, r.BattleID, id); err != nil {
			return database.NewDBError(err, "insert battle player")
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ApplyStatDelta(ctx context.Context, d events.ProfileDelta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return database.NewDBError(err, "begin apply delta")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO applied_deltas (battle_id, player_id) VALUES (?, ?)`, d.BattleID, d.PlayerID)
	if err != nil {
		return database.NewDBError(err, "record delta")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO profiles (player_id, xp, coins, wins, losses, draws, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (player_id) DO UPDATE SET
			xp = xp + excluded.xp,
			coins = coins + excluded.coins,
			wins = wins + excluded.wins,
			losses = losses + excluded.losses,
			draws = draws + excluded.draws,
			updated_at = excluded.updated_at`,
		d.PlayerID, d.XP, d.Coins, d.Wins, d.Losses, d.Draws, toMillis(d.At)); err != nil {
		return database.NewDBError(err, "upsert profile")
	}
	return tx.Commit()
}

func (s *SQLiteStore) RecentBattles(ctx context.Context, playerID string, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT b.battle_id, b.room_id, b.players_json, b.winner_id, b.loser_id,
			b.draw, b.reason, b.rewards_json, b.total_turns, b.total_damage, b.duration_ms, b.stake, b.seed,
			b.started_at, b.finished_at
		FROM battles b JOIN battle_players p ON p.battle_id = b.battle_id
		WHERE p.player_id = ?
		ORDER BY b.finished_at DESC, b.battle_id
		LIMIT ?`, playerID, clampLimit(limit))
	if err != nil {
		return nil, database.NewDBError(err, "query recent battles")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r                 Record
			players, rewards  string
			reason            string
			started, finished int64
		)
		if err := rows.Scan(&r.BattleID, &r.RoomID, &players, &r.WinnerID, &r.LoserID, &r.Draw, &reason, &rewards,
			&r.TotalTurns, &r.TotalDamage, &r.DurationMs, &r.Stake, &r.Seed, &started, &finished); err != nil {
			return nil, database.NewDBError(err, "scan battle")
		}
		if err := json.Unmarshal([]byte(players), &r.Players); err != nil {
			return nil, fmt.Errorf("decode players of %s: %w", r.BattleID, err)
		}
		if err := json.Unmarshal([]byte(rewards), &r.Rewards); err != nil {
			return nil, fmt.Errorf("decode rewards of %s: %w", r.BattleID, err)
		}
		r.Reason = battle.EndReason(reason)
		r.StartedAt, r.FinishedAt = fromMillis(started), fromMillis(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Profile(ctx context.Context, playerID string) (Profile, error) {
	p := Profile{PlayerID: playerID}
	var updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT xp, coins, wins, losses, draws, updated_at FROM profiles WHERE player_id = ?`, playerID).
		Scan(&p.XP, &p.Coins, &p.Wins, &p.Losses, &p.Draws, &updated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return p, nil
	case err != nil:
		return Profile{}, database.NewDBError(err, "query profile")
	}
	p.UpdatedAt = fromMillis(updated)
	return p, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
