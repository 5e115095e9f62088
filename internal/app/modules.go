package app

import (
	"log/slog"

	"github.com/imfiit/arena/internal/module"
	"github.com/imfiit/arena/internal/modules/arena"
)

// Dependencies holds what the application's modules are built from.
type Dependencies struct {
	Logger *slog.Logger
}

// NewModules creates and returns the list of all active modules for the application.
// This is the single source of truth for which features are enabled.
func NewModules(deps Dependencies) []module.Module {
	return []module.Module{
		// Add new application modules here.
		arena.New(deps.Logger),
	}
}
