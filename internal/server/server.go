// Package server assembles the HTTP surface: echo, sessions, the websocket
// endpoint and the feature modules.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/imfiit/arena/internal/config"
	"github.com/imfiit/arena/internal/middleware"
	"github.com/imfiit/arena/internal/module"
	"github.com/imfiit/arena/internal/registry"
	"github.com/imfiit/arena/internal/rendering"
	"github.com/imfiit/arena/internal/websocket"
)

// Dependencies are the core services the server is built from. Logger and
// Echo are optional.
type Dependencies struct {
	Config   *config.Config
	Registry *registry.Registry
	Bridge   *websocket.Bridge
	Renderer rendering.Renderer
	Logger   *slog.Logger
	Echo     *echo.Echo
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	E      *echo.Echo
	Cfg    *config.Config
	Tokens *middleware.Tokens

	reg     *registry.Registry
	bridge  *websocket.Bridge
	logger  *slog.Logger
	modules []module.Module
	booted  []module.Module
}

// New creates a server with the global middleware installed. Routes are
// added by RegisterRoutes and InitModules.
func New(deps Dependencies) (*Server, error) {
	if deps.Config == nil || deps.Registry == nil || deps.Bridge == nil || deps.Renderer == nil {
		return nil, errors.New("server: config, registry, bridge and renderer are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := deps.Echo
	if e == nil {
		e = echo.New()
	}
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.Recover())

	store := sessions.NewCookieStore([]byte(deps.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(deps.Config.TokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	e.Use(session.Middleware(store))

	if r, ok := deps.Renderer.(echo.Renderer); ok {
		e.Renderer = r
	}
	setupErrorHandling(e)

	return &Server{
		E:      e,
		Cfg:    deps.Config,
		Tokens: middleware.NewTokens(deps.Config.SessionSecret, deps.Config.TokenTTL),
		reg:    deps.Registry,
		bridge: deps.Bridge,
		logger: logger.With("service", "server"),
	}, nil
}

// InitModules registers every module, then boots each under /<name> behind
// the auth middleware. ctx bounds the modules' background work.
func (s *Server) InitModules(ctx context.Context, modules []module.Module) error {
	s.modules = modules
	for _, m := range modules {
		if err := m.Register(s.reg); err != nil {
			return fmt.Errorf("register module %s: %w", m.Name(), err)
		}
		s.logger.Debug("Module registered", "module", m.Name())
	}
	for _, m := range modules {
		g := s.E.Group("/"+m.Name(), middleware.Auth(s.Tokens))
		if err := m.Boot(ctx, g, s.reg); err != nil {
			return fmt.Errorf("boot module %s: %w", m.Name(), err)
		}
		s.booted = append(s.booted, m)
		s.logger.Info("Module booted", "module", m.Name())
	}
	return nil
}
