package websocket

import (
	"encoding/json"

	"github.com/imfiit/arena/internal/domain"
	"github.com/imfiit/arena/internal/pubsub"
)

// Metadata keys understood by the bridge. MetaPlayer carries the JSON
// snapshot the connection authenticated with on every inbound frame.
const (
	MetaRecipientID  = "recipient_id"
	MetaConnectionID = "connection_id"
	MetaPlayer       = "player"
)

// EncodePlayer renders p for the MetaPlayer metadata key.
func EncodePlayer(p domain.Player) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PlayerFrom returns the snapshot of the connection that sent msg.
func PlayerFrom(msg pubsub.Message) (domain.Player, bool) {
	raw := msg.Metadata[MetaPlayer]
	if raw == "" {
		return domain.Player{}, false
	}
	var p domain.Player
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p.ID != msg.UserID {
		return domain.Player{}, false
	}
	return p, true
}

// ClientEvent describes a connection coming or going. Connections is the
// number of connections the player still has after the change.
type ClientEvent struct {
	PlayerID     string         `json:"playerId"`
	ConnectionID string         `json:"connectionId"`
	Connections  int            `json:"connections"`
	Player       *domain.Player `json:"player,omitempty"`
	Reason       string         `json:"reason,omitempty"`
}

// Framework topics for websocket routing.
var (
	// TopicDataDirect sends a JSON frame to every connection of the player
	// named in the recipient_id metadata, or only to connection_id if set.
	TopicDataDirect = pubsub.NewFrameworkEvent[json.RawMessage]("ws.data.direct",
		"Send a JSON frame to one player's connections (metadata: recipient_id)")

	// TopicDataBroadcast sends a JSON frame to every connection.
	TopicDataBroadcast = pubsub.NewFrameworkEvent[json.RawMessage]("ws.data.broadcast",
		"Broadcast a JSON frame to all connected players")

	// TopicClientMessage carries a whitelisted inbound frame. UserID is the
	// sending player.
	TopicClientMessage = pubsub.NewFrameworkEvent[Frame]("ws.client.message",
		"Inbound frame received from a player's connection")

	TopicClientReady = pubsub.NewFrameworkEvent[ClientEvent]("ws.client.ready",
		"Published when a player's connection is upgraded and registered")

	TopicClientDisconnected = pubsub.NewFrameworkEvent[ClientEvent]("ws.client.disconnected",
		"Published when a player's connection closes")
)
