package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imfiit/arena/internal/config"
)

func TestDBError(t *testing.T) {
	base := NewDBError(ErrNotFound, "select battle").WithQuery("SELECT * FROM battle")
	assert.ErrorIs(t, base, ErrNotFound)
	assert.Contains(t, base.Error(), "SELECT * FROM battle")

	wrapped := WrapError(base, "load history")
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.Contains(t, wrapped.Error(), "load history: select battle")
	assert.Contains(t, wrapped.Error(), "SELECT * FROM battle")

	plain := WrapError(errors.New("boom"), "save")
	var dbErr *DBError
	require.ErrorAs(t, plain, &dbErr)
	assert.Equal(t, "save: boom", plain.Error())

	assert.NoError(t, WrapError(nil, "noop"))
}

func TestRetryer(t *testing.T) {
	fast := &Retryer{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := fast.Retry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		sentinel := errors.New("still down")
		err := fast.Retry(context.Background(), func() error {
			calls++
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 4, calls)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := fast.Retry(ctx, func() error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("delay is capped", func(t *testing.T) {
		r := NewRetryer()
		r.Jitter = false
		assert.Equal(t, 100*time.Millisecond, r.delay(0))
		assert.Equal(t, 400*time.Millisecond, r.delay(2))
		assert.Equal(t, 30*time.Second, r.delay(20))
	})
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, isConnectionError(nil))
	assert.True(t, isConnectionError(fmt.Errorf("query: %w", context.DeadlineExceeded)))
	assert.True(t, isConnectionError(errors.New("dial tcp: Connection Refused")))
	assert.True(t, isConnectionError(errors.New("read: unexpected EOF")))
	assert.False(t, isConnectionError(errors.New("field 'x' not allowed")))
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "ws://root:xxxxx@localhost:8000/rpc", redactURL("ws://root:secret@localhost:8000/rpc"))
	assert.Equal(t, "ws://localhost:8000/rpc", redactURL("ws://localhost:8000/rpc"))
	assert.Equal(t, "invalid-url", redactURL("://bad"))
}

func TestHasLimitClause(t *testing.T) {
	assert.True(t, hasLimitClause("SELECT * FROM battle LIMIT 10"))
	assert.True(t, hasLimitClause("select * from battle limit 1"))
	assert.False(t, hasLimitClause("SELECT * FROM unlimited"))
}

func TestWithConnectionRequiresConnect(t *testing.T) {
	c := NewConnection(config.SurrealConfig{URL: "ws://localhost:1/rpc"}, nil)
	err := c.WithConnection(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, c.IsHealthy())
	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "arena.db")

	db, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var mode string
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	mem, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer mem.Close()
	_, err = mem.ExecContext(ctx, "CREATE TABLE t (v INTEGER)")
	require.NoError(t, err)
	_, err = mem.ExecContext(ctx, "INSERT INTO t VALUES (1)")
	require.NoError(t, err)
}
