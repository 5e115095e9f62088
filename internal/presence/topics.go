package presence

import (
	"time"

	"github.com/imfiit/arena/internal/pubsub"
)

// Change is published when a player's online status flips.
type Change struct {
	PlayerID string    `json:"playerId"`
	Status   Status    `json:"status"`
	At       time.Time `json:"at"`
}

var (
	// TopicUserOnline is published when a player's first connection opens.
	TopicUserOnline = pubsub.NewEvent[Change]("presence.user.online",
		"Published when a player comes online")

	// TopicUserOffline is published once a player's last connection has been
	// closed for the grace period.
	TopicUserOffline = pubsub.NewEvent[Change]("presence.user.offline",
		"Published when a player goes offline")
)
