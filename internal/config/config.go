package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Addr          string        `env:"APP_ADDR" envDefault:":8080"`
	SessionSecret string        `env:"SESSION_SECRET,required,notEmpty"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	LogFormat     string        `env:"LOG_FORMAT" envDefault:"text"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"debug"`
	OfflineGrace  time.Duration `env:"PRESENCE_OFFLINE_GRACE" envDefault:"0s"`
	LoginPerMin   int           `env:"LOGIN_RATE_PER_MINUTE" envDefault:"30"`

	Arena   ArenaConfig
	History HistoryConfig
	Surreal SurrealConfig
	Tracing TracingConfig
}

// ArenaConfig tunes the battle engine.
type ArenaConfig struct {
	TurnDuration time.Duration `env:"ARENA_TURN_DURATION" envDefault:"30s"`
	TickInterval time.Duration `env:"ARENA_TICK_INTERVAL" envDefault:"1s"`
	MaxTurns     int           `env:"ARENA_MAX_TURNS" envDefault:"50"`
	BalanceFile  string        `env:"ARENA_BALANCE_FILE"`
	RewardScript string        `env:"ARENA_REWARD_SCRIPT"`
}

// HistoryConfig selects where finished battles are recorded.
type HistoryConfig struct {
	Driver     string `env:"HISTORY_DRIVER" envDefault:"memory"`
	SQLitePath string `env:"HISTORY_SQLITE_PATH" envDefault:"data/arena.db"`
	DataDir    string `env:"DATA_DIR" envDefault:"data"`
}

// SurrealConfig is only read when the surreal history driver is selected.
type SurrealConfig struct {
	URL          string        `env:"SURREAL_URL"`
	NS           string        `env:"SURREAL_NS"`
	DB           string        `env:"SURREAL_DB"`
	User         string        `env:"SURREAL_USER"`
	Pass         string        `env:"SURREAL_PASS"`
	QueryTimeout time.Duration `env:"SURREAL_QUERY_TIMEOUT" envDefault:"5s"`
}

// TracingConfig controls the optional pub/sub tracing exporter.
type TracingConfig struct {
	Enabled     bool    `env:"PUBSUB_TRACING_ENABLED" envDefault:"false"`
	ZipkinURL   string  `env:"PUBSUB_TRACING_ZIPKIN_URL" envDefault:"http://localhost:9411/api/v2/spans"`
	ServiceName string  `env:"PUBSUB_TRACING_SERVICE_NAME" envDefault:"arena"`
	SampleRate  float64 `env:"PUBSUB_TRACING_SAMPLE_RATE" envDefault:"1.0"`
}

// New loads configuration from a .env file (if present) and the environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}
	return Parse()
}

// Parse reads the environment into a Config and validates it.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MinSecretLen is the shortest SESSION_SECRET accepted. The secret signs
// both session cookies and bearer tokens.
const MinSecretLen = 32

// Validate rejects combinations the server cannot run with.
func (c *Config) Validate() error {
	if len(c.SessionSecret) < MinSecretLen {
		return fmt.Errorf("SESSION_SECRET must be at least %d bytes, got %d", MinSecretLen, len(c.SessionSecret))
	}
	if c.Arena.TurnDuration < time.Second {
		return fmt.Errorf("ARENA_TURN_DURATION must be at least 1s, got %s", c.Arena.TurnDuration)
	}
	if c.Arena.TickInterval <= 0 || c.Arena.TickInterval > c.Arena.TurnDuration {
		return fmt.Errorf("ARENA_TICK_INTERVAL must be in (0, %s], got %s", c.Arena.TurnDuration, c.Arena.TickInterval)
	}
	if c.Arena.MaxTurns < 2 {
		return fmt.Errorf("ARENA_MAX_TURNS must be at least 2, got %d", c.Arena.MaxTurns)
	}
	if c.LoginPerMin <= 0 {
		return fmt.Errorf("LOGIN_RATE_PER_MINUTE must be positive, got %d", c.LoginPerMin)
	}
	if c.OfflineGrace < 0 {
		return fmt.Errorf("PRESENCE_OFFLINE_GRACE must not be negative, got %s", c.OfflineGrace)
	}
	switch c.History.Driver {
	case "memory", "sqlite":
	case "surreal":
		if c.Surreal.URL == "" || c.Surreal.NS == "" || c.Surreal.DB == "" {
			return fmt.Errorf("SURREAL_URL, SURREAL_NS and SURREAL_DB are required for the surreal history driver")
		}
	default:
		return fmt.Errorf("unknown HISTORY_DRIVER %q", c.History.Driver)
	}
	return nil
}
