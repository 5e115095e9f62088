package websocket

import (
	"errors"
	"sync"
)

var (
	// ErrTypeAlreadyAllowed is returned when a frame type is allowed twice.
	ErrTypeAlreadyAllowed = errors.New("frame type already allowed")
	// ErrInvalidType is returned for an empty frame type.
	ErrInvalidType = errors.New("frame type cannot be empty")
)

// typeWhitelist is the set of inbound frame types the bridge forwards.
type typeWhitelist struct {
	mu      sync.RWMutex
	allowed map[string]struct{}
}

func newTypeWhitelist(types ...string) *typeWhitelist {
	w := &typeWhitelist{allowed: make(map[string]struct{}, len(types))}
	for _, t := range types {
		if t != "" {
			w.allowed[t] = struct{}{}
		}
	}
	return w
}

func (w *typeWhitelist) IsAllowed(frameType string) bool {
	if frameType == "" {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.allowed[frameType]
	return ok
}

func (w *typeWhitelist) Add(frameType string) error {
	if frameType == "" {
		return ErrInvalidType
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.allowed[frameType]; ok {
		return ErrTypeAlreadyAllowed
	}
	w.allowed[frameType] = struct{}{}
	return nil
}

func (w *typeWhitelist) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.allowed)
}
