package server

import (
	"context"
	"errors"
	"fmt"
)

// Shutdown stops accepting requests, closes websocket connections and
// shuts booted modules down in reverse order.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.E.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http: %w", err))
	}
	if err := s.bridge.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("websocket: %w", err))
	}
	for i := len(s.booted) - 1; i >= 0; i-- {
		m := s.booted[i]
		if err := m.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("module %s: %w", m.Name(), err))
		}
	}
	s.logger.Info("Server stopped")
	return errors.Join(errs...)
}
