package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/imfiit/arena/internal/domain"
	"github.com/imfiit/arena/internal/middleware"
	"github.com/imfiit/arena/internal/pubsub"
)

const (
	sendBuffer = 256
	writeWait  = 10 * time.Second
	readLimit  = 64 << 10
)

// Bridge manages player websocket connections and routes frames between
// them and the message bus. Inbound frames of allowed types are published
// on TopicClientMessage; anything published on TopicDataDirect or
// TopicDataBroadcast is written out to the matching connections.
type Bridge struct {
	publisher  pubsub.Publisher
	subscriber pubsub.Subscriber
	clients    *ClientManager
	whitelist  *typeWhitelist
	newID      func() string
	logger     *slog.Logger
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithBridgeLogger sets the bridge logger.
func WithBridgeLogger(l *slog.Logger) BridgeOption {
	return func(b *Bridge) { b.logger = l.With("service", "websocket") }
}

// WithConnectionIDs overrides connection id generation.
func WithConnectionIDs(fn func() string) BridgeOption {
	return func(b *Bridge) { b.newID = fn }
}

// NewBridge creates a bridge. Call Start before serving connections.
func NewBridge(pub pubsub.Publisher, sub pubsub.Subscriber, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		publisher:  pub,
		subscriber: sub,
		clients:    NewClientManager(),
		whitelist:  newTypeWhitelist(),
		newID:      uuid.NewString,
		logger:     slog.Default().With("service", "websocket"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AllowTypes lets inbound frames of the given types through to the bus.
func (b *Bridge) AllowTypes(types ...string) error {
	for _, t := range types {
		if err := b.whitelist.Add(t); err != nil && !errors.Is(err, ErrTypeAlreadyAllowed) {
			return fmt.Errorf("allow %q: %w", t, err)
		}
	}
	return nil
}

// Start subscribes to the outbound topics.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.subscriber.Subscribe(ctx, TopicDataDirect.Name(), b.handleDirect); err != nil {
		return err
	}
	if err := b.subscriber.Subscribe(ctx, TopicDataBroadcast.Name(), b.handleBroadcast); err != nil {
		return err
	}
	b.logger.Info("WebSocket bridge started")
	return nil
}

func (b *Bridge) handleDirect(_ context.Context, msg pubsub.Message) error {
	recipient := msg.Metadata[MetaRecipientID]
	if recipient == "" {
		return fmt.Errorf("direct message without %s", MetaRecipientID)
	}
	only := msg.Metadata[MetaConnectionID]
	for _, c := range b.clients.GetByUser(recipient) {
		if only != "" && c.ID != only {
			continue
		}
		c.SendMessage(msg.Payload)
	}
	return nil
}

func (b *Bridge) handleBroadcast(_ context.Context, msg pubsub.Message) error {
	for _, c := range b.clients.All() {
		c.SendMessage(msg.Payload)
	}
	return nil
}

// Handler returns the echo handler that upgrades an authenticated request.
func (b *Bridge) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		player, ok := middleware.PlayerFrom(c)
		if !ok {
			_, reason := domain.Describe(domain.ErrUnauthorized)
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": reason})
		}

		encoded, err := EncodePlayer(*player)
		if err != nil {
			b.logger.Error("Failed to encode player snapshot", "player_id", player.ID, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError)
		}

		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			InsecureSkipVerify: true, // TODO: restrict OriginPatterns once the client is served from a fixed origin.
		})
		if err != nil {
			b.logger.Error("Failed to upgrade connection to WebSocket", "player_id", player.ID, "error", err)
			return nil
		}
		conn.SetReadLimit(readLimit)

		client := newClient(b.newID(), player.ID, conn)
		client.player = encoded
		n := b.clients.Add(client)
		b.logger.Info("Client registered", "player_id", player.ID, "connection_id", client.ID, "connections", n)

		snapshot := *player
		b.publishLifecycle(TopicClientReady, ClientEvent{
			PlayerID:     player.ID,
			ConnectionID: client.ID,
			Connections:  n,
			Player:       &snapshot,
		})

		go b.writePump(client)
		go b.readPump(client)
		return nil
	}
}

func (b *Bridge) publishLifecycle(event pubsub.Event[ClientEvent], ev ClientEvent) {
	err := pubsub.Publish(context.Background(), b.publisher, event, ev,
		pubsub.From(ev.PlayerID),
		pubsub.WithMetadata(MetaConnectionID, ev.ConnectionID),
	)
	if err != nil {
		b.logger.Error("Failed to publish connection event", "topic", event.Name(), "player_id", ev.PlayerID, "error", err)
	}
}

// readPump forwards inbound frames to the bus until the connection drops.
// Publishing blocks until handlers ack, so one connection's frames are
// handled in order.
func (b *Bridge) readPump(c *Client) {
	reason := "client_closed"
	defer func() {
		remaining, ok := b.clients.Remove(c.ID)
		c.conn.Close(websocket.StatusNormalClosure, "")
		if !ok {
			return
		}
		b.logger.Info("Client unregistered", "player_id", c.UserID, "connection_id", c.ID, "connections", remaining, "reason", reason)
		b.publishLifecycle(TopicClientDisconnected, ClientEvent{
			PlayerID:     c.UserID,
			ConnectionID: c.ID,
			Connections:  remaining,
			Reason:       reason,
		})
	}()

	for {
		_, data, err := c.conn.Read(context.Background())
		if err != nil {
			switch status := websocket.CloseStatus(err); {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
			case errors.Is(err, io.EOF):
			default:
				reason = "read_error"
				b.logger.Warn("WebSocket read error", "player_id", c.UserID, "error", err)
			}
			return
		}
		b.handleFrame(c, data)
	}
}

func (b *Bridge) handleFrame(c *Client, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		b.reply(c, NewAck("", nil, domain.NewValidationError("frame", "malformed JSON")))
		return
	}
	if !b.whitelist.IsAllowed(frame.Type) {
		b.reply(c, NewAck(frame.RequestID, nil, domain.NewValidationError("type", fmt.Sprintf("unknown message type %q", frame.Type))))
		return
	}

	err := b.publisher.Publish(context.Background(), pubsub.Message{
		Topic:   TopicClientMessage.Name(),
		UserID:  c.UserID,
		Payload: data,
		Metadata: map[string]string{
			MetaConnectionID: c.ID,
			MetaPlayer:       c.player,
			"received_at":    time.Now().UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		b.logger.Error("Failed to publish inbound frame", "player_id", c.UserID, "type", frame.Type, "error", err)
		b.reply(c, NewAck(frame.RequestID, nil, err))
	}
}

func (b *Bridge) reply(c *Client, m Message) {
	data, err := m.Encode()
	if err != nil {
		b.logger.Error("Failed to encode reply", "error", err)
		return
	}
	c.SendMessage(data)
}

// writePump writes queued frames until the send channel is closed.
func (b *Bridge) writePump(c *Client) {
	defer c.conn.Close(websocket.StatusNormalClosure, "")

	for message := range c.outbound() {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			b.logger.Warn("WebSocket write error", "player_id", c.UserID, "error", err)
			return
		}
	}
}

// Connections reports how many connections playerID has open.
func (b *Bridge) Connections(playerID string) int {
	return b.clients.Connections(playerID)
}

// Shutdown closes every connection with StatusGoingAway.
func (b *Bridge) Shutdown(_ context.Context) error {
	for _, c := range b.clients.All() {
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	return nil
}
