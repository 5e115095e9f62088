package registry

import (
	"github.com/imfiit/arena/internal/presence"
	"github.com/imfiit/arena/internal/pubsub"
	"github.com/imfiit/arena/internal/rendering"
	"github.com/imfiit/arena/internal/storage"
	"github.com/imfiit/arena/internal/websocket"
)

// Core service keys. Modules define keys for their own services.
const (
	PublisherKey  Key[pubsub.Publisher]   = "core.publisher"
	SubscriberKey Key[pubsub.Subscriber]  = "core.subscriber"
	PresenceKey   Key[*presence.Service]  = "core.presence"
	BridgeKey     Key[*websocket.Bridge]  = "core.websocket.bridge"
	RendererKey   Key[rendering.Renderer] = "core.renderer"
	FilesKey      Key[storage.Store]      = "core.files"
)
