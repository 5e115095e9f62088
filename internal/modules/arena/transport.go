package arena

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/imfiit/arena/internal/domain"
	"github.com/imfiit/arena/internal/modules/arena/battle"
	"github.com/imfiit/arena/internal/modules/arena/events"
	"github.com/imfiit/arena/internal/modules/arena/lobby"
	"github.com/imfiit/arena/internal/modules/arena/topics"
	"github.com/imfiit/arena/internal/presence"
	"github.com/imfiit/arena/internal/pubsub"
	ws "github.com/imfiit/arena/internal/websocket"
)

// Rooms is the part of the room registry the transport drives.
type Rooms interface {
	CreateRoom(ctx context.Context, host domain.Player, cfg lobby.Config) (lobby.Room, error)
	JoinRoom(ctx context.Context, roomID string, p domain.Player) (lobby.Room, error)
	LeaveRoom(ctx context.Context, roomID, playerID string) error
	SetReady(ctx context.Context, roomID, playerID string) (lobby.Room, error)
	HandleDisconnect(ctx context.Context, playerID string) error
	RoomFor(playerID string) (lobby.Room, bool)
	List() []lobby.Room
}

// Battles is the part of the battle engine the transport drives.
type Battles interface {
	SubmitAction(ctx context.Context, battleID, participantID string, kind battle.ActionKind) (battle.TurnRecord, battle.Snapshot, error)
	Forfeit(ctx context.Context, participantID string) (battle.Summary, error)
}

// Transport maps inbound frames to exactly one registry or engine call and
// acknowledges the calling connection. Broadcasts come from the Notifier.
type Transport struct {
	rooms     Rooms
	battles   Battles
	publisher pubsub.Publisher
	logger    *slog.Logger
}

// NewTransport wires a transport.
func NewTransport(rooms Rooms, battles Battles, pub pubsub.Publisher, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		rooms:     rooms,
		battles:   battles,
		publisher: pub,
		logger:    logger.With("service", "arena.transport"),
	}
}

// Start subscribes to inbound frames and to players going offline.
func (t *Transport) Start(ctx context.Context, sub pubsub.Subscriber) error {
	if err := pubsub.Subscribe(ctx, sub, ws.TopicClientMessage, t.handleMessage); err != nil {
		return fmt.Errorf("subscribe %s: %w", ws.TopicClientMessage.Name(), err)
	}
	if err := pubsub.Subscribe(ctx, sub, presence.TopicUserOffline, t.handleOffline); err != nil {
		return fmt.Errorf("subscribe %s: %w", presence.TopicUserOffline.Name(), err)
	}
	t.logger.Info("Arena transport started")
	return nil
}

// handleOffline treats a player going offline as a disconnect: they leave
// their room, or forfeit if it is fighting.
func (t *Transport) handleOffline(ctx context.Context, ch presence.Change, _ pubsub.Message) error {
	if err := t.rooms.HandleDisconnect(ctx, ch.PlayerID); err != nil {
		return fmt.Errorf("disconnect %s: %w", ch.PlayerID, err)
	}
	return nil
}

func (t *Transport) handleMessage(ctx context.Context, frame ws.Frame, msg pubsub.Message) error {
	data, err := t.dispatch(ctx, msg, frame)
	if err != nil {
		code, _ := domain.Describe(err)
		if code == domain.CodeInternal {
			t.logger.Error("Request failed", "type", frame.Type, "player_id", msg.UserID, "error", err)
		} else {
			t.logger.Debug("Request rejected", "type", frame.Type, "player_id", msg.UserID, "code", code)
		}
	}

	ack, encErr := ws.NewAck(frame.RequestID, data, err).Encode()
	if encErr != nil {
		return fmt.Errorf("encode ack: %w", encErr)
	}
	return sendFrame(ctx, t.publisher, ack, msg.UserID, msg.Metadata[ws.MetaConnectionID])
}

func (t *Transport) dispatch(ctx context.Context, msg pubsub.Message, frame ws.Frame) (any, error) {
	playerID := msg.UserID
	switch frame.Type {
	case topics.RoomCreate:
		var cfg lobby.Config
		if err := decode(frame.Payload, &cfg); err != nil {
			return nil, err
		}
		p, err := sender(msg)
		if err != nil {
			return nil, err
		}
		return t.rooms.CreateRoom(ctx, p, cfg)

	case topics.RoomJoin:
		var req events.JoinRoom
		if err := decode(frame.Payload, &req); err != nil {
			return nil, err
		}
		p, err := sender(msg)
		if err != nil {
			return nil, err
		}
		return t.rooms.JoinRoom(ctx, req.RoomID, p)

	case topics.RoomLeave:
		roomID, err := t.roomID(frame.Payload, playerID)
		if err != nil {
			return nil, err
		}
		return nil, t.rooms.LeaveRoom(ctx, roomID, playerID)

	case topics.RoomSetReady:
		roomID, err := t.roomID(frame.Payload, playerID)
		if err != nil {
			return nil, err
		}
		return t.rooms.SetReady(ctx, roomID, playerID)

	case topics.RoomList:
		return t.rooms.List(), nil

	case topics.BattleAction:
		var req events.Action
		if err := decode(frame.Payload, &req); err != nil {
			return nil, err
		}
		rec, snap, err := t.battles.SubmitAction(ctx, req.BattleID, playerID, req.Kind)
		if err != nil {
			return nil, err
		}
		return events.TurnEvent{Record: rec, Battle: snap}, nil

	case topics.BattleForfeit:
		sum, err := t.battles.Forfeit(ctx, playerID)
		if err != nil {
			return nil, err
		}
		return events.EndedFrom(sum), nil
	}
	return nil, domain.NewValidationError("type", fmt.Sprintf("unknown message type %q", frame.Type))
}

// roomID reads an optional room id, falling back to the sender's room.
func (t *Transport) roomID(raw json.RawMessage, playerID string) (string, error) {
	var ref events.RoomRef
	if err := decode(raw, &ref); err != nil {
		return "", err
	}
	if ref.RoomID != "" {
		return ref.RoomID, nil
	}
	room, ok := t.rooms.RoomFor(playerID)
	if !ok {
		return "", domain.ErrNotInRoom
	}
	return room.ID, nil
}

// sender is the snapshot the sending connection authenticated with.
func sender(msg pubsub.Message) (domain.Player, error) {
	p, ok := ws.PlayerFrom(msg)
	if !ok {
		return domain.Player{}, fmt.Errorf("no session snapshot for %s: %w", msg.UserID, domain.ErrUnauthorized)
	}
	return p, nil
}

// decode unmarshals an optional payload into v and validates it.
func decode(raw json.RawMessage, v any) error {
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, v); err != nil {
			return domain.NewValidationError("payload", "malformed payload")
		}
	}
	return domain.FromValidator(domain.Validator().Struct(v))
}
