package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/imfiit/arena/internal/config"
)

// Connection manages one SurrealDB session and reconnects with backoff
// when an operation fails for connection reasons.
type Connection struct {
	cfg     config.SurrealConfig
	retryer *Retryer
	logger  *slog.Logger

	mu      sync.RWMutex
	conn    *surrealdb.DB
	healthy bool
	done    chan struct{}
	closed  bool
}

// NewConnection creates an unconnected Connection. Call Connect before use.
func NewConnection(cfg config.SurrealConfig, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connection{
		cfg:     cfg,
		retryer: NewRetryer(),
		logger:  logger.With("service", "database"),
		done:    make(chan struct{}),
	}
}

// Connect establishes the initial connection.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	return c.reconnect(ctx)
}

// WithConnection runs fn with the live connection. A connection failure
// triggers a reconnect and fn is retried with backoff.
func (c *Connection) WithConnection(ctx context.Context, fn func(*surrealdb.DB) error) error {
	conn := c.current()
	if conn == nil {
		return NewDBError(ErrNotConnected, "surreal")
	}

	err := fn(conn)
	if err == nil || !isConnectionError(err) {
		return err
	}

	c.logger.WarnContext(ctx, "Database operation failed, reconnecting", "error", err, "db_url", redactURL(c.cfg.URL))
	return c.retryer.Retry(ctx, func() error {
		c.mu.Lock()
		rerr := c.reconnect(ctx)
		c.mu.Unlock()
		if rerr != nil {
			return fmt.Errorf("reconnection failed: %w (original error: %v)", rerr, err)
		}
		return fn(c.current())
	})
}

// QueryTimeout is the per query budget callers should apply.
func (c *Connection) QueryTimeout() time.Duration {
	return c.cfg.QueryTimeout
}

// StartMonitoring checks the connection every interval and reconnects when
// the check fails. It stops on Close.
func (c *Connection) StartMonitoring(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.checkHealth()
			case <-c.done:
				return
			}
		}
	}()
}

func (c *Connection) checkHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := c.current()
	var err error
	if conn == nil {
		err = ErrNotConnected
	} else {
		_, err = conn.Version(ctx)
	}
	if err == nil {
		c.setHealthy(true)
		return
	}

	c.setHealthy(false)
	c.logger.WarnContext(ctx, "Database health check failed, reconnecting", "error", err, "db_url", redactURL(c.cfg.URL))
	if err := c.retryer.Retry(ctx, func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.reconnect(ctx)
	}); err != nil {
		c.logger.ErrorContext(ctx, "Failed to reconnect to database", "error", err)
	}
}

// IsHealthy reports the result of the last connect or health check.
func (c *Connection) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

// Close stops monitoring and closes the session.
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	if c.conn == nil {
		return nil
	}
	return c.conn.Close(ctx)
}

func (c *Connection) current() *surrealdb.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *Connection) setHealthy(ok bool) {
	c.mu.Lock()
	c.healthy = ok
	c.mu.Unlock()
}

// reconnect must be called with c.mu held.
func (c *Connection) reconnect(ctx context.Context) error {
	if c.conn != nil {
		_ = c.conn.Close(ctx)
		c.conn = nil
	}
	c.healthy = false

	conn, err := surrealdb.FromEndpointURLString(ctx, c.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database at %s: %w", redactURL(c.cfg.URL), err)
	}
	if c.cfg.User != "" {
		if _, err := conn.SignIn(ctx, &surrealdb.Auth{Username: c.cfg.User, Password: c.cfg.Pass}); err != nil {
			_ = conn.Close(ctx)
			return fmt.Errorf("failed to sign in: %w", err)
		}
	}
	if err := conn.Use(ctx, c.cfg.NS, c.cfg.DB); err != nil {
		_ = conn.Close(ctx)
		return fmt.Errorf("failed to use namespace/db: %w", err)
	}

	c.conn = conn
	c.healthy = true
	c.logger.InfoContext(ctx, "Database connection established",
		"db_url", redactURL(c.cfg.URL),
		"namespace", c.cfg.NS,
		"database", c.cfg.DB)
	return nil
}

// isConnectionError reports whether err looks like a lost connection
// rather than an application level failure.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "unexpected eof")
}

// redactURL hides the password in a database URL for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url"
	}
	return u.Redacted()
}
