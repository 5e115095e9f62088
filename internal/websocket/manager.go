package websocket

import (
	"sync"
)

// ClientManager indexes live clients by connection and by player.
type ClientManager struct {
	clients map[string]*Client
	users   map[string]map[string]struct{}
	mu      sync.RWMutex
}

// NewClientManager creates a new ClientManager.
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients: make(map[string]*Client),
		users:   make(map[string]map[string]struct{}),
	}
}

// Add registers a client and returns how many connections its player has.
func (m *ClientManager) Add(client *Client) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clients[client.ID] = client
	if _, ok := m.users[client.UserID]; !ok {
		m.users[client.UserID] = make(map[string]struct{})
	}
	m.users[client.UserID][client.ID] = struct{}{}
	return len(m.users[client.UserID])
}

// Remove unregisters a client, closes its send channel and returns how many
// connections its player has left. ok is false if the client was unknown.
func (m *ClientManager) Remove(clientID string) (remaining int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, ok := m.clients[clientID]
	if !ok {
		return 0, false
	}
	delete(m.clients, clientID)
	delete(m.users[client.UserID], clientID)
	remaining = len(m.users[client.UserID])
	if remaining == 0 {
		delete(m.users, client.UserID)
	}
	client.Close()
	return remaining, true
}

// GetByUser returns all clients for a player.
func (m *ClientManager) GetByUser(userID string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Client, 0, len(m.users[userID]))
	for id := range m.users[userID] {
		out = append(out, m.clients[id])
	}
	return out
}

// All returns every client.
func (m *ClientManager) All() []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, c)
	}
	return out
}

// Count returns the number of connections.
func (m *ClientManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Connections returns the number of connections userID has.
func (m *ClientManager) Connections(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users[userID])
}
