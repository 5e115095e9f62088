package arena

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/imfiit/arena/internal/modules/arena/battle"
	"github.com/imfiit/arena/internal/modules/arena/events"
	"github.com/imfiit/arena/internal/modules/arena/lobby"
	"github.com/imfiit/arena/internal/modules/arena/topics"
	"github.com/imfiit/arena/internal/pubsub"
	ws "github.com/imfiit/arena/internal/websocket"
)

// Notifier fans engine and registry events out to the players involved
// and hands finished battles to the bus. Delivery failures are logged and
// never reach the operation that caused them.
type Notifier struct {
	publisher pubsub.Publisher
	logger    *slog.Logger
}

var (
	_ battle.Listener = (*Notifier)(nil)
	_ lobby.Listener  = (*Notifier)(nil)
)

// NewNotifier creates a notifier publishing on pub.
func NewNotifier(pub pubsub.Publisher, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{publisher: pub, logger: logger.With("service", "arena.notifier")}
}

// RoomChanged implements lobby.Listener.
func (n *Notifier) RoomChanged(ctx context.Context, ev lobby.Event) {
	payload := events.RoomEvent{Room: ev.Room, PlayerID: ev.PlayerID}
	if ev.Kind == lobby.EventPlayerReady {
		ready := ev.Ready
		payload.Ready = &ready
	}
	n.send(ctx, string(ev.Kind), payload, ev.Recipients)
}

func (n *Notifier) BattleStarted(ctx context.Context, snap battle.Snapshot) {
	n.send(ctx, topics.BattleStarted, snap, fighterIDs(snap.Fighters))
}

func (n *Notifier) TurnResolved(ctx context.Context, rec battle.TurnRecord, snap battle.Snapshot) {
	n.send(ctx, topics.BattleTurn, events.TurnEvent{Record: rec, Battle: snap}, fighterIDs(snap.Fighters))
}

func (n *Notifier) Tick(ctx context.Context, ev battle.TickEvent) {
	n.send(ctx, topics.BattleTick, ev, fighterIDs(ev.Fighters))
}

func (n *Notifier) TurnTimedOut(ctx context.Context, rec battle.TurnRecord, snap battle.Snapshot) {
	n.send(ctx, topics.BattleTurnTimeout, events.TurnEvent{Record: rec, Battle: snap}, fighterIDs(snap.Fighters))
}

// BattleEnded tells both players, then publishes the summary and one
// profile delta per player for the history collaborator.
func (n *Notifier) BattleEnded(ctx context.Context, sum battle.Summary) {
	n.send(ctx, topics.BattleEndedFrame, events.EndedFrom(sum), fighterIDs(sum.Final))

	if err := pubsub.Publish(ctx, n.publisher, topics.BattleEnded, sum); err != nil {
		n.logger.Error("Failed to publish battle summary", "battle_id", sum.BattleID, "error", err)
	}
	for _, delta := range events.DeltasFor(sum) {
		if err := pubsub.Publish(ctx, n.publisher, topics.ProfileDelta, delta, pubsub.From(delta.PlayerID)); err != nil {
			n.logger.Error("Failed to publish profile delta",
				"battle_id", sum.BattleID,
				"player_id", delta.PlayerID,
				"error", err)
		}
	}
}

func (n *Notifier) send(ctx context.Context, msgType string, payload any, recipients []string) {
	frame, err := ws.NewMessage(msgType, payload).Encode()
	if err != nil {
		n.logger.Error("Failed to encode frame", "type", msgType, "error", err)
		return
	}
	for _, id := range recipients {
		if err := sendFrame(ctx, n.publisher, frame, id, ""); err != nil {
			n.logger.Warn("Failed to deliver frame", "type", msgType, "player_id", id, "error", err)
		}
	}
}

// sendFrame addresses an encoded frame to one player, or to one of their
// connections when connectionID is set.
func sendFrame(ctx context.Context, pub pubsub.Publisher, frame []byte, playerID, connectionID string) error {
	opts := []pubsub.PublishOption{pubsub.WithMetadata(ws.MetaRecipientID, playerID)}
	if connectionID != "" {
		opts = append(opts, pubsub.WithMetadata(ws.MetaConnectionID, connectionID))
	}
	return pubsub.Publish(ctx, pub, ws.TopicDataDirect, json.RawMessage(frame), opts...)
}

func fighterIDs(f [2]battle.FighterState) []string {
	return []string{f[0].ID, f[1].ID}
}
