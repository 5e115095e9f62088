// Package arena wires the turn-based battle core into the application: the
// room registry, the battle engine, the websocket transport, history and
// the HTTP reads.
package arena

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"

	"github.com/imfiit/arena/internal/module"
	"github.com/imfiit/arena/internal/modules/arena/balance"
	"github.com/imfiit/arena/internal/modules/arena/battle"
	"github.com/imfiit/arena/internal/modules/arena/history"
	"github.com/imfiit/arena/internal/modules/arena/lobby"
	"github.com/imfiit/arena/internal/modules/arena/topics"
	"github.com/imfiit/arena/internal/registry"
)

// Service keys for other modules.
const (
	EngineKey  registry.Key[*battle.Engine]  = "arena.engine"
	LobbyKey   registry.Key[*lobby.Registry] = "arena.lobby"
	HistoryKey registry.Key[history.Store]   = "arena.history"
)

// Module is the arena feature module.
type Module struct {
	module.BaseModule
	logger *slog.Logger

	engine   *battle.Engine
	rooms    *lobby.Registry
	notifier *Notifier
	watcher  *balance.Watcher
	store    history.Store
}

// New creates the arena module.
func New(logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}
	return &Module{logger: logger}
}

// Name returns the unique name for the module.
func (m *Module) Name() string {
	return "arena"
}

// Register builds the engine and the room registry. The balance file and
// reward script are loaded here so a bad file stops startup.
func (m *Module) Register(reg *registry.Registry) error {
	cfg := reg.Config().Arena
	pub := registry.MustGet(reg, registry.PublisherKey)
	m.notifier = NewNotifier(pub, m.logger)

	opts := []battle.Option{
		battle.WithTiming(cfg.TurnDuration, cfg.TickInterval, cfg.MaxTurns),
		battle.WithListener(m.notifier),
		battle.WithLogger(m.logger),
		battle.WithEndHook(func(ctx context.Context, sum battle.Summary) {
			m.rooms.FinishBattle(ctx, sum.RoomID, sum.BattleID)
		}),
	}
	if cfg.BalanceFile != "" {
		w, err := balance.NewWatcher(cfg.BalanceFile, balance.WithWatcherLogger(m.logger))
		if err != nil {
			return fmt.Errorf("load balance rules: %w", err)
		}
		m.watcher = w
		opts = append(opts, battle.WithRules(w.Current))
	}
	if cfg.RewardScript != "" {
		script, err := balance.LoadRewardScript(afero.NewOsFs(), cfg.RewardScript, m.logger)
		if err != nil {
			return err
		}
		opts = append(opts, battle.WithRewardPolicy(script))
	}

	m.engine = battle.NewEngine(opts...)
	m.rooms = lobby.NewRegistry(m.engine, lobby.WithListener(m.notifier), lobby.WithLogger(m.logger))

	registry.Set(reg, EngineKey, m.engine)
	registry.Set(reg, LobbyKey, m.rooms)
	m.logger.Info("Arena registered",
		"turn_duration", m.engine.TurnDuration(),
		"balance_file", cfg.BalanceFile,
		"reward_script", cfg.RewardScript)
	return nil
}

// Boot subscribes the transport and history to the bus and mounts the
// HTTP routes. ctx must live as long as the server.
func (m *Module) Boot(ctx context.Context, g *echo.Group, reg *registry.Registry) error {
	pub := registry.MustGet(reg, registry.PublisherKey)
	sub := registry.MustGet(reg, registry.SubscriberKey)
	bridge := registry.MustGet(reg, registry.BridgeKey)

	if err := bridge.AllowTypes(topics.Inbound...); err != nil {
		return fmt.Errorf("allow arena frames: %w", err)
	}
	if err := NewTransport(m.rooms, m.engine, pub, m.logger).Start(ctx, sub); err != nil {
		return err
	}

	store, err := history.Open(ctx, reg.Config(), m.logger)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	m.store = store
	registry.Set(reg, HistoryKey, store)

	var archive *history.Archive
	if files, ok := registry.Get(reg, registry.FilesKey); ok {
		archive = history.NewArchive(files)
	}
	if err := history.NewSubscriber(store, archive, m.logger).Start(ctx, sub); err != nil {
		return err
	}

	if m.watcher != nil {
		if err := m.watcher.Start(ctx); err != nil {
			return err
		}
	}

	NewHandler(m.rooms, m.engine, store, archive, registry.MustGet(reg, registry.RendererKey)).Mount(g)
	m.logger.Info("Arena booted", "history_driver", reg.Config().History.Driver, "replays", archive != nil)
	return nil
}

// Shutdown stops live battles first so nothing is published into a closed
// store.
func (m *Module) Shutdown(ctx context.Context) error {
	var errs []error
	if m.engine != nil {
		errs = append(errs, m.engine.Shutdown(ctx))
	}
	if m.watcher != nil {
		errs = append(errs, m.watcher.Close())
	}
	if m.store != nil {
		errs = append(errs, m.store.Close())
	}
	return errors.Join(errs...)
}
