package websocket

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Client is one websocket connection of a player.
type Client struct {
	ID     string
	UserID string
	// player is the encoded snapshot attached to inbound frames.
	player string
	conn   *websocket.Conn
	send   chan []byte
	mu     sync.RWMutex
}

func newClient(id, userID string, conn *websocket.Conn) *Client {
	return &Client{ID: id, UserID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
}

// SendMessage queues msg for the write pump. A full buffer drops the
// message; a closed client ignores it.
func (c *Client) SendMessage(msg []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.send == nil {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		slog.Warn("Client send channel full, dropping message", "connection_id", c.ID, "player_id", c.UserID)
		return false
	}
}

// Close closes the send channel, which stops the write pump.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.send != nil {
		close(c.send)
		c.send = nil
	}
}

func (c *Client) outbound() <-chan []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.send
}
