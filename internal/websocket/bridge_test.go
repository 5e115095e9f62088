package websocket_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imfiit/arena/internal/domain"
	"github.com/imfiit/arena/internal/middleware"
	"github.com/imfiit/arena/internal/pubsub"
	ws "github.com/imfiit/arena/internal/websocket"
)

// mockPubSub implements pubsub.Publisher and pubsub.Subscriber and delivers
// synchronously, like the blocking in-memory bus.
type mockPubSub struct {
	mu       sync.RWMutex
	handlers map[string][]pubsub.Handler
	messages map[string][]pubsub.Message
}

func newMockPubSub() *mockPubSub {
	return &mockPubSub{
		handlers: make(map[string][]pubsub.Handler),
		messages: make(map[string][]pubsub.Message),
	}
}

func (m *mockPubSub) Publish(ctx context.Context, msg pubsub.Message) error {
	m.mu.Lock()
	m.messages[msg.Topic] = append(m.messages[msg.Topic], msg)
	handlers := append([]pubsub.Handler(nil), m.handlers[msg.Topic]...)
	m.mu.Unlock()

	for _, h := range handlers {
		_ = h(ctx, msg)
	}
	return nil
}

func (m *mockPubSub) Subscribe(_ context.Context, topic string, handler pubsub.Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = append(m.handlers[topic], handler)
	return nil
}

func (m *mockPubSub) Close() error { return nil }

func (m *mockPubSub) getMessages(topic string) []pubsub.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]pubsub.Message(nil), m.messages[topic]...)
}

type testFixture struct {
	bridge *ws.Bridge
	ps     *mockPubSub
	server *httptest.Server
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	ps := newMockPubSub()
	bridge := ws.NewBridge(ps, ps)
	require.NoError(t, bridge.AllowTypes("room.create", "battle.action"))
	require.NoError(t, bridge.Start(context.Background()))

	e := echo.New()
	e.GET("/ws", bridge.Handler(), func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := c.QueryParam("as"); id != "" {
				c.Set(middleware.UserContextKey, &domain.Player{ID: id, Name: strings.ToUpper(id), Level: 1})
			}
			return next(c)
		}
	})
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	return &testFixture{bridge: bridge, ps: ps, server: server}
}

func (f *testFixture) connect(t *testing.T, playerID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?as=" + playerID
	conn, _, err := websocket.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test complete") })

	require.Eventually(t, func() bool { return f.bridge.Connections(playerID) > 0 }, time.Second, 5*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestBridge_RejectsUnauthenticated(t *testing.T) {
	f := setupTestFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	_, resp, err := websocket.Dial(context.Background(), url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestBridge_PublishesLifecycle(t *testing.T) {
	f := setupTestFixture(t)
	conn := f.connect(t, "alice")

	require.Eventually(t, func() bool {
		return len(f.ps.getMessages(ws.TopicClientReady.Name())) == 1
	}, time.Second, 5*time.Millisecond)
	ready := f.ps.getMessages(ws.TopicClientReady.Name())
	require.Len(t, ready, 1)
	var ev ws.ClientEvent
	require.NoError(t, json.Unmarshal(ready[0].Payload, &ev))
	assert.Equal(t, "alice", ev.PlayerID)
	assert.Equal(t, 1, ev.Connections)
	require.NotNil(t, ev.Player)
	assert.Equal(t, "ALICE", ev.Player.Name)

	conn.Close(websocket.StatusNormalClosure, "bye")
	require.Eventually(t, func() bool {
		return len(f.ps.getMessages(ws.TopicClientDisconnected.Name())) == 1
	}, time.Second, 5*time.Millisecond)

	gone := f.ps.getMessages(ws.TopicClientDisconnected.Name())[0]
	require.NoError(t, json.Unmarshal(gone.Payload, &ev))
	assert.Equal(t, 0, ev.Connections)
	assert.Equal(t, "alice", gone.UserID)
	assert.Zero(t, f.bridge.Connections("alice"))
}

func TestBridge_ForwardsAllowedFrames(t *testing.T) {
	f := setupTestFixture(t)
	conn := f.connect(t, "alice")

	frame := `{"type":"room.create","requestId":"r1","payload":{"stake":10}}`
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, []byte(frame)))

	require.Eventually(t, func() bool {
		return len(f.ps.getMessages(ws.TopicClientMessage.Name())) == 1
	}, time.Second, 5*time.Millisecond)

	msg := f.ps.getMessages(ws.TopicClientMessage.Name())[0]
	assert.Equal(t, "alice", msg.UserID)
	assert.JSONEq(t, frame, string(msg.Payload))
	assert.NotEmpty(t, msg.Metadata[ws.MetaConnectionID])

	p, ok := ws.PlayerFrom(msg)
	require.True(t, ok, "frames carry the connection's snapshot")
	assert.Equal(t, domain.Player{ID: "alice", Name: "ALICE", Level: 1}, p)
}

func TestBridge_RejectsBadFrames(t *testing.T) {
	f := setupTestFixture(t)
	conn := f.connect(t, "alice")

	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, []byte(`{invalid json`)))
	ack := readMessage(t, conn)
	assert.Equal(t, "ack", ack["type"])
	payload := ack["payload"].(map[string]any)
	assert.Equal(t, false, payload["ok"])
	assert.Equal(t, domain.CodeValidation, payload["code"])

	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"chat.say","requestId":"r2"}`)))
	ack = readMessage(t, conn)
	assert.Equal(t, "r2", ack["requestId"])
	assert.Contains(t, ack["payload"].(map[string]any)["error"], "unknown message type")

	// The connection survives and nothing reached the bus.
	assert.Empty(t, f.ps.getMessages(ws.TopicClientMessage.Name()))
	assert.Equal(t, 1, f.bridge.Connections("alice"))
}

func TestBridge_DirectAndBroadcast(t *testing.T) {
	f := setupTestFixture(t)
	alice1 := f.connect(t, "alice")
	alice2 := f.connect(t, "alice")
	bob := f.connect(t, "bob")
	require.Equal(t, 2, f.bridge.Connections("alice"))

	ctx := context.Background()
	require.NoError(t, pubsub.Publish(ctx, f.ps, ws.TopicDataDirect, json.RawMessage(`{"type":"room.updated"}`),
		pubsub.WithMetadata(ws.MetaRecipientID, "alice")))
	assert.Equal(t, "room.updated", readMessage(t, alice1)["type"])
	assert.Equal(t, "room.updated", readMessage(t, alice2)["type"])

	require.NoError(t, pubsub.Publish(ctx, f.ps, ws.TopicDataBroadcast, json.RawMessage(`{"type":"server.notice"}`)))
	assert.Equal(t, "server.notice", readMessage(t, bob)["type"])
	assert.Equal(t, "server.notice", readMessage(t, alice1)["type"])
}

func TestBridge_DirectToOneConnection(t *testing.T) {
	f := setupTestFixture(t)
	alice1 := f.connect(t, "alice")
	alice2 := f.connect(t, "alice")

	ctx := context.Background()
	require.NoError(t, alice1.Write(ctx, websocket.MessageText, []byte(`{"type":"battle.action","requestId":"r1"}`)))
	require.Eventually(t, func() bool {
		return len(f.ps.getMessages(ws.TopicClientMessage.Name())) == 1
	}, time.Second, 5*time.Millisecond)
	connID := f.ps.getMessages(ws.TopicClientMessage.Name())[0].Metadata[ws.MetaConnectionID]

	require.NoError(t, pubsub.Publish(ctx, f.ps, ws.TopicDataDirect, json.RawMessage(`{"type":"ack"}`),
		pubsub.WithMetadata(ws.MetaRecipientID, "alice"),
		pubsub.WithMetadata(ws.MetaConnectionID, connID)))
	require.NoError(t, pubsub.Publish(ctx, f.ps, ws.TopicDataBroadcast, json.RawMessage(`{"type":"server.notice"}`)))

	assert.Equal(t, "ack", readMessage(t, alice1)["type"])
	// The second connection never saw the ack.
	assert.Equal(t, "server.notice", readMessage(t, alice2)["type"])
}
