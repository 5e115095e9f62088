// Package app wires the framework services and the module list shared by
// the server binary and the integration tests.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/imfiit/arena/internal/config"
	"github.com/imfiit/arena/internal/presence"
	"github.com/imfiit/arena/internal/pubsub"
	"github.com/imfiit/arena/internal/registry"
	"github.com/imfiit/arena/internal/rendering"
	"github.com/imfiit/arena/internal/storage"
	"github.com/imfiit/arena/internal/websocket"
)

// Core is the set of framework services every module is built on.
type Core struct {
	Bus      *pubsub.WatermillBridge
	Presence *presence.Service
	Bridge   *websocket.Bridge
	Renderer rendering.Renderer
	Registry *registry.Registry
}

// NewCore starts the bus, presence tracking and the websocket bridge and
// registers them under the core keys. files may be nil, which disables
// replay archiving.
func NewCore(ctx context.Context, cfg *config.Config, logger *slog.Logger, files storage.Store, busOpts ...pubsub.BridgeOption) (*Core, error) {
	bus := pubsub.NewWatermillBridge(append([]pubsub.BridgeOption{pubsub.WithLogger(logger)}, busOpts...)...)

	pres := presence.NewService(bus, presence.WithOfflineGrace(cfg.OfflineGrace))
	if err := pres.Start(ctx, bus); err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("start presence: %w", err)
	}
	bridge := websocket.NewBridge(bus, bus, websocket.WithBridgeLogger(logger))
	if err := bridge.Start(ctx); err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("start websocket bridge: %w", err)
	}
	renderer := rendering.NewNodeRenderer()

	reg := registry.New(cfg)
	registry.Set[pubsub.Publisher](reg, registry.PublisherKey, bus)
	registry.Set[pubsub.Subscriber](reg, registry.SubscriberKey, bus)
	registry.Set(reg, registry.PresenceKey, pres)
	registry.Set(reg, registry.BridgeKey, bridge)
	registry.Set[rendering.Renderer](reg, registry.RendererKey, renderer)
	if files != nil {
		registry.Set(reg, registry.FilesKey, files)
	}

	return &Core{
		Bus:      bus,
		Presence: pres,
		Bridge:   bridge,
		Renderer: renderer,
		Registry: reg,
	}, nil
}

// Close stops presence timers and the bus. Call it after the server and
// modules have shut down.
func (c *Core) Close(ctx context.Context) error {
	return errors.Join(c.Presence.Shutdown(ctx), c.Bus.Close())
}
