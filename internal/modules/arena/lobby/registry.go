package lobby

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/imfiit/arena/internal/domain"
	"github.com/imfiit/arena/internal/modules/arena/battle"
)

// Battles is the part of the battle engine the registry drives.
type Battles interface {
	StartBattle(ctx context.Context, req battle.StartRequest) (battle.Snapshot, error)
	Disconnect(ctx context.Context, participantID string) (battle.Summary, error)
}

// Registry owns every room and the participant to room index. Both maps
// are only changed together under mu.
type Registry struct {
	mu            sync.Mutex
	rooms         map[string]*Room
	byParticipant map[string]string

	battles  Battles
	listener Listener
	newID    func() string
	now      func() time.Time
	logger   *slog.Logger
}

// Option is a function that configures a Registry.
type Option func(*Registry)

// WithListener sets the room event listener.
func WithListener(l Listener) Option {
	return func(r *Registry) { r.listener = l }
}

// WithIDs overrides room id generation.
func WithIDs(fn func() string) Option {
	return func(r *Registry) { r.newID = fn }
}

// WithNow overrides the clock used for room timestamps.
func WithNow(fn func() time.Time) Option {
	return func(r *Registry) { r.now = fn }
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l.With("service", "lobby") }
}

// NewRegistry creates an empty registry that hands full rooms to battles.
func NewRegistry(battles Battles, opts ...Option) *Registry {
	r := &Registry{
		rooms:         make(map[string]*Room),
		byParticipant: make(map[string]string),
		battles:       battles,
		listener:      ListenerFunc(func(context.Context, Event) {}),
		newID:         uuid.NewString,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        slog.Default().With("service", "lobby"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateRoom opens a room with host as its only, unready member.
func (r *Registry) CreateRoom(ctx context.Context, host domain.Player, cfg Config) (Room, error) {
	if err := domain.Validator().Struct(cfg); err != nil {
		return Room{}, domain.FromValidator(err)
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byParticipant[host.ID]; ok {
		return Room{}, domain.ErrAlreadyInRoom
	}

	room := &Room{
		ID:        r.newID(),
		HostID:    host.ID,
		Stake:     cfg.Stake,
		IsPrivate: cfg.IsPrivate,
		Capacity:  cfg.Capacity,
		Status:    StatusWaiting,
		Members:   []Member{{Player: host}},
		CreatedAt: r.now(),
	}
	r.rooms[room.ID] = room
	r.byParticipant[host.ID] = room.ID

	r.logger.Info("Room created", "room_id", room.ID, "host_id", host.ID, "private", room.IsPrivate)
	r.emit(ctx, EventCreated, room, host.ID, false)
	return room.clone(), nil
}

// JoinRoom adds p to roomID. A room that is fighting or finished rejects
// joins before the capacity check.
func (r *Registry) JoinRoom(ctx context.Context, roomID string, p domain.Player) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return Room{}, domain.ErrRoomNotFound
	}
	if _, ok := r.byParticipant[p.ID]; ok {
		return Room{}, domain.ErrAlreadyInRoom
	}
	if room.Status == StatusFighting || room.Status == StatusFinished {
		return Room{}, domain.ErrGameInProgress
	}
	if room.full() {
		return Room{}, domain.ErrRoomFull
	}

	room.Members = append(room.Members, Member{Player: p})
	r.byParticipant[p.ID] = room.ID
	if room.full() {
		room.Status = StatusReady
	}

	r.logger.Info("Player joined room", "room_id", room.ID, "player_id", p.ID, "members", len(room.Members))
	r.emit(ctx, EventPlayerJoined, room, p.ID, false)
	r.emit(ctx, EventUpdated, room, "", false)
	return room.clone(), nil
}

// LeaveRoom removes playerID from roomID. Leaving a fighting room is
// rejected; the battle must be forfeited instead.
func (r *Registry) LeaveRoom(ctx context.Context, roomID, playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if room.memberIndex(playerID) < 0 {
		return domain.ErrNotInRoom
	}
	if room.Status == StatusFighting {
		return domain.ErrGameInProgress
	}
	r.leaveLocked(ctx, room, playerID)
	return nil
}

func (r *Registry) leaveLocked(ctx context.Context, room *Room, playerID string) {
	i := room.memberIndex(playerID)
	room.Members = slices.Delete(room.Members, i, i+1)
	delete(r.byParticipant, playerID)

	if len(room.Members) == 0 {
		delete(r.rooms, room.ID)
		r.logger.Info("Room closed", "room_id", room.ID, "reason", "empty")
		r.emitTo(ctx, EventPlayerLeft, room, playerID, false, []string{playerID})
		r.emitTo(ctx, EventClosed, room, "", false, []string{playerID})
		return
	}

	if room.HostID == playerID {
		room.HostID = room.Members[0].ID
	}
	if room.Status == StatusReady && !room.full() {
		room.Status = StatusWaiting
		for i := range room.Members {
			room.Members[i].Ready = false
		}
	}

	recipients := append(room.MemberIDs(), playerID)
	r.logger.Info("Player left room", "room_id", room.ID, "player_id", playerID, "host_id", room.HostID)
	r.emitTo(ctx, EventPlayerLeft, room, playerID, false, recipients)
	r.emitTo(ctx, EventUpdated, room, "", false, recipients)
}

// SetReady toggles playerID's ready flag. When the room is full and every
// member is ready the battle starts and the room moves to fighting.
func (r *Registry) SetReady(ctx context.Context, roomID, playerID string) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return Room{}, domain.ErrRoomNotFound
	}
	i := room.memberIndex(playerID)
	if i < 0 {
		return Room{}, domain.ErrNotInRoom
	}
	if room.Status == StatusFighting || room.Status == StatusFinished {
		return Room{}, domain.ErrGameInProgress
	}

	room.Members[i].Ready = !room.Members[i].Ready
	if room.allReady() {
		if err := r.startLocked(ctx, room); err != nil {
			room.Members[i].Ready = false
			return Room{}, err
		}
	}

	r.emit(ctx, EventPlayerReady, room, playerID, room.Members[i].Ready)
	r.emit(ctx, EventUpdated, room, "", false)
	return room.clone(), nil
}

func (r *Registry) startLocked(ctx context.Context, room *Room) error {
	if len(room.Members) != 2 {
		return fmt.Errorf("start battle: room %s has %d members", room.ID, len(room.Members))
	}
	snap, err := r.battles.StartBattle(ctx, battle.StartRequest{
		RoomID:  room.ID,
		HostID:  room.HostID,
		Players: [2]domain.Player{room.Members[0].Player, room.Members[1].Player},
		Stake:   room.Stake,
	})
	if err != nil {
		r.logger.Error("Failed to start battle", "room_id", room.ID, "error", err)
		return err
	}
	room.Status = StatusFighting
	room.BattleID = snap.ID
	r.logger.Info("Room fighting", "room_id", room.ID, "battle_id", snap.ID)
	return nil
}

// HandleDisconnect removes playerID from their room, or forfeits their
// battle if the room is fighting.
func (r *Registry) HandleDisconnect(ctx context.Context, playerID string) error {
	r.mu.Lock()
	roomID, ok := r.byParticipant[playerID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	room, ok := r.rooms[roomID]
	if !ok {
		delete(r.byParticipant, playerID)
		r.mu.Unlock()
		return nil
	}
	if room.Status != StatusFighting {
		r.leaveLocked(ctx, room, playerID)
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	// The engine's end hook calls FinishBattle, which needs the lock.
	_, err := r.battles.Disconnect(ctx, playerID)
	switch {
	case err == nil, errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrBattleNotActive):
		// Already settled by another path.
		return nil
	default:
		return fmt.Errorf("forfeit on disconnect: %w", err)
	}
}

// FinishBattle closes the room bound to battleID once the battle has been
// settled.
func (r *Registry) FinishBattle(ctx context.Context, roomID, battleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok || room.BattleID != battleID {
		return
	}
	room.Status = StatusFinished
	recipients := room.MemberIDs()
	for _, id := range recipients {
		if r.byParticipant[id] == room.ID {
			delete(r.byParticipant, id)
		}
	}
	delete(r.rooms, room.ID)

	r.logger.Info("Room closed", "room_id", room.ID, "reason", "battle finished", "battle_id", battleID)
	r.emitTo(ctx, EventUpdated, room, "", false, recipients)
	r.emitTo(ctx, EventClosed, room, "", false, recipients)
}

// Get returns a copy of a room.
func (r *Registry) Get(roomID string) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return Room{}, domain.ErrRoomNotFound
	}
	return room.clone(), nil
}

// RoomFor returns the room playerID is in.
func (r *Registry) RoomFor(playerID string) (Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byParticipant[playerID]
	if !ok {
		return Room{}, false
	}
	return r.rooms[id].clone(), true
}

// List returns the public waiting rooms, oldest first.
func (r *Registry) List() []Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		if room.Listable() {
			out = append(out, room.clone())
		}
	}
	slices.SortFunc(out, func(a, b Room) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out
}

// Count reports the number of open rooms.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

func (r *Registry) emit(ctx context.Context, kind EventKind, room *Room, playerID string, ready bool) {
	r.emitTo(ctx, kind, room, playerID, ready, room.MemberIDs())
}

func (r *Registry) emitTo(ctx context.Context, kind EventKind, room *Room, playerID string, ready bool, recipients []string) {
	r.listener.RoomChanged(ctx, Event{
		Kind:       kind,
		Room:       room.clone(),
		PlayerID:   playerID,
		Ready:      ready,
		Recipients: recipients,
	})
}
