package registry

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/imfiit/arena/internal/config"
)

// Key is a type-safe key for registering and retrieving services. The
// string value should be unique, e.g. "arena.engine".
type Key[T any] string

// Registry lets modules share and discover services at runtime. Values are
// held in a samber/do injector as named services.
type Registry struct {
	injector *do.RootScope
	cfg      *config.Config
}

// New creates a registry carrying the application configuration.
func New(cfg *config.Config) *Registry {
	return &Registry{injector: do.New(), cfg: cfg}
}

// Config returns the application configuration.
func (r *Registry) Config() *config.Config {
	return r.cfg
}

// Set registers value under key. Each key may be set once.
func Set[T any](r *Registry, key Key[T], value T) {
	do.ProvideNamedValue(r.injector, string(key), value)
}

// Get retrieves the service stored under key.
func Get[T any](r *Registry, key Key[T]) (T, bool) {
	v, err := do.InvokeNamed[T](r.injector, string(key))
	if err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

// MustGet retrieves a service or panics. Meant for wiring essential
// dependencies at startup.
func MustGet[T any](r *Registry, key Key[T]) T {
	v, ok := Get(r, key)
	if !ok {
		panic(fmt.Sprintf("service not found for key: %s", string(key)))
	}
	return v
}
