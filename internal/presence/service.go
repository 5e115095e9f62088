package presence

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/imfiit/arena/internal/pubsub"
	ws "github.com/imfiit/arena/internal/websocket"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Service tracks which players have at least one live connection. A player
// whose last connection closes is reported offline after the grace period,
// unless they reconnect first. A zero grace reports immediately.
type Service struct {
	mu      sync.Mutex
	conns   map[string]map[string]struct{} // playerID -> connectionIDs
	pending map[string]*time.Timer

	publisher pubsub.Publisher
	grace     time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Option is a function that configures a Service.
type Option func(*Service)

// WithOfflineGrace delays offline reports so page reloads do not count as
// leaving.
func WithOfflineGrace(d time.Duration) Option {
	return func(s *Service) { s.grace = d }
}

// WithNow overrides the clock used for change timestamps.
func WithNow(fn func() time.Time) Option {
	return func(s *Service) { s.now = fn }
}

// NewService creates a presence tracker.
func NewService(publisher pubsub.Publisher, opts ...Option) *Service {
	s := &Service{
		conns:     make(map[string]map[string]struct{}),
		pending:   make(map[string]*time.Timer),
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    slog.Default().With("service", "presence"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes to connection lifecycle events.
func (s *Service) Start(ctx context.Context, subscriber pubsub.Subscriber) error {
	if err := pubsub.Subscribe(ctx, subscriber, ws.TopicClientReady, s.handleClientConnected); err != nil {
		return err
	}
	return pubsub.Subscribe(ctx, subscriber, ws.TopicClientDisconnected, s.handleClientDisconnected)
}

func (s *Service) handleClientConnected(ctx context.Context, ev ws.ClientEvent, _ pubsub.Message) error {
	s.mu.Lock()
	if t, ok := s.pending[ev.PlayerID]; ok {
		t.Stop()
		delete(s.pending, ev.PlayerID)
	}
	set, known := s.conns[ev.PlayerID]
	if !known {
		set = make(map[string]struct{})
		s.conns[ev.PlayerID] = set
	}
	set[ev.ConnectionID] = struct{}{}
	s.mu.Unlock()

	if !known {
		s.logger.Info("Player online", "player_id", ev.PlayerID)
		return s.publish(ctx, TopicUserOnline, ev.PlayerID, StatusOnline)
	}
	return nil
}

func (s *Service) handleClientDisconnected(ctx context.Context, ev ws.ClientEvent, _ pubsub.Message) error {
	s.mu.Lock()
	set, ok := s.conns[ev.PlayerID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(set, ev.ConnectionID)
	if len(set) > 0 {
		s.mu.Unlock()
		return nil
	}

	if s.grace <= 0 {
		delete(s.conns, ev.PlayerID)
		s.mu.Unlock()
		return s.goOffline(ctx, ev.PlayerID)
	}
	if _, waiting := s.pending[ev.PlayerID]; !waiting {
		playerID := ev.PlayerID
		s.pending[playerID] = time.AfterFunc(s.grace, func() { s.expire(playerID) })
	}
	s.mu.Unlock()
	return nil
}

// expire runs when the grace period ends without a reconnect.
func (s *Service) expire(playerID string) {
	s.mu.Lock()
	if _, ok := s.pending[playerID]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, playerID)
	if len(s.conns[playerID]) > 0 {
		s.mu.Unlock()
		return
	}
	delete(s.conns, playerID)
	s.mu.Unlock()

	if err := s.goOffline(context.Background(), playerID); err != nil {
		s.logger.Error("Failed to publish offline event", "player_id", playerID, "error", err)
	}
}

func (s *Service) goOffline(ctx context.Context, playerID string) error {
	s.logger.Info("Player offline", "player_id", playerID)
	return s.publish(ctx, TopicUserOffline, playerID, StatusOffline)
}

func (s *Service) publish(ctx context.Context, event pubsub.Event[Change], playerID string, status Status) error {
	return pubsub.Publish(ctx, s.publisher, event, Change{PlayerID: playerID, Status: status, At: s.now()}, pubsub.From(playerID))
}

// IsOnline reports whether playerID has a live connection or is inside the
// grace period.
func (s *Service) IsOnline(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.conns[playerID]
	return ok
}

// OnlinePlayers returns the online player ids, sorted.
func (s *Service) OnlinePlayers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.conns))
	for id := range s.conns {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Shutdown cancels pending offline reports.
func (s *Service) Shutdown(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
	return nil
}
