package lobby

import "context"

// EventKind names a room notification.
type EventKind string

const (
	EventCreated      EventKind = "room.created"
	EventUpdated      EventKind = "room.updated"
	EventPlayerJoined EventKind = "room.playerJoined"
	EventPlayerLeft   EventKind = "room.playerLeft"
	EventPlayerReady  EventKind = "room.playerReady"
	EventClosed       EventKind = "room.closed"
)

// Event is a room change addressed to Recipients. Recipients are the
// members at the time of the change, plus a departing player.
type Event struct {
	Kind       EventKind
	Room       Room
	PlayerID   string
	Ready      bool
	Recipients []string
}

// Listener receives room events. It is called with the registry lock held,
// so implementations must not block or call back into the registry.
type Listener interface {
	RoomChanged(ctx context.Context, ev Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, ev Event)

func (f ListenerFunc) RoomChanged(ctx context.Context, ev Event) { f(ctx, ev) }
