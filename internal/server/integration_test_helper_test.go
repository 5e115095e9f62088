package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/imfiit/arena/internal/app"
	"github.com/imfiit/arena/internal/config"
	"github.com/imfiit/arena/internal/domain"
	"github.com/imfiit/arena/internal/logging"
	"github.com/imfiit/arena/internal/server"
	"github.com/imfiit/arena/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		Addr:          ":0",
		SessionSecret: "integration-test-secret-0123456789",
		TokenTTL:      time.Hour,
		LogFormat:     "text",
		LogLevel:      "error",
		LoginPerMin:   1000,
		Arena: config.ArenaConfig{
			TurnDuration: 30 * time.Second,
			TickInterval: time.Second,
			MaxTurns:     50,
		},
		History: config.HistoryConfig{Driver: "memory"},
	}
}

type testEnv struct {
	srv *server.Server
	ts  *httptest.Server
}

// setupIntegrationTest builds the full stack the way cmd/server does, with
// an in-memory history store and replay archive.
func setupIntegrationTest(t *testing.T) *testEnv {
	t.Helper()
	cfg := testConfig()
	logger := logging.Discard()
	ctx, cancel := context.WithCancel(context.Background())

	core, err := app.NewCore(ctx, cfg, logger, storage.NewAferoStore(afero.NewMemMapFs()))
	require.NoError(t, err)

	s, err := server.New(server.Dependencies{
		Config:   cfg,
		Registry: core.Registry,
		Bridge:   core.Bridge,
		Renderer: core.Renderer,
		Logger:   logger,
	})
	require.NoError(t, err)
	s.RegisterRoutes()
	require.NoError(t, s.InitModules(ctx, app.NewModules(app.Dependencies{Logger: logger})))

	ts := httptest.NewServer(s.E)
	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		ts.Close()
		_ = s.Shutdown(shutdownCtx)
		cancel()
		_ = core.Close(shutdownCtx)
	})
	return &testEnv{srv: s, ts: ts}
}

func (env *testEnv) login(t *testing.T, p domain.Player) server.SessionResponse {
	t.Helper()
	body, err := json.Marshal(p)
	require.NoError(t, err)
	resp, err := http.Post(env.ts.URL+"/session", echoJSON, bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out server.SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (env *testEnv) getJSON(t *testing.T, path, token string, v any) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, env.ts.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

const echoJSON = "application/json"

// wsFrame is the union of outbound event and ack frames.
type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId"`
	Payload   json.RawMessage `json:"payload"`
}

type wsAck struct {
	OK    bool            `json:"ok"`
	Code  string          `json:"code"`
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data"`
}

type wsClient struct {
	conn *websocket.Conn
}

func (env *testEnv) dial(t *testing.T, token string) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{conn: conn}
}

func (c *wsClient) send(t *testing.T, msgType, requestID string, payload any) {
	t.Helper()
	frame := map[string]any{"type": msgType, "requestId": requestID}
	if payload != nil {
		frame["payload"] = payload
	}
	require.NoError(t, c.conn.WriteJSON(frame))
}

// next reads frames until one satisfies match, failing after a few seconds.
func (c *wsClient) next(t *testing.T, match func(wsFrame) bool) wsFrame {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	require.NoError(t, c.conn.SetReadDeadline(deadline))
	for {
		var f wsFrame
		require.NoError(t, c.conn.ReadJSON(&f), "waiting for frame")
		if match(f) {
			return f
		}
	}
}

func (c *wsClient) event(t *testing.T, msgType string) wsFrame {
	t.Helper()
	return c.next(t, func(f wsFrame) bool { return f.Type == msgType })
}

func (c *wsClient) ack(t *testing.T, requestID string) wsAck {
	t.Helper()
	f := c.next(t, func(f wsFrame) bool { return f.Type == "ack" && f.RequestID == requestID })
	var a wsAck
	require.NoError(t, json.Unmarshal(f.Payload, &a))
	return a
}

// request sends a frame and returns its acknowledgement.
func (c *wsClient) request(t *testing.T, msgType, requestID string, payload any) wsAck {
	t.Helper()
	c.send(t, msgType, requestID, payload)
	return c.ack(t, requestID)
}
