package arena

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imfiit/arena/internal/domain"
	"github.com/imfiit/arena/internal/modules/arena/battle"
	"github.com/imfiit/arena/internal/modules/arena/lobby"
	"github.com/imfiit/arena/internal/modules/arena/topics"
	"github.com/imfiit/arena/internal/presence"
	"github.com/imfiit/arena/internal/pubsub"
	ws "github.com/imfiit/arena/internal/websocket"
)

// recordingPublisher keeps every published message in order.
type recordingPublisher struct {
	mu   sync.Mutex
	msgs []pubsub.Message
}

func (p *recordingPublisher) Publish(_ context.Context, msg pubsub.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) onTopic(topic string) []pubsub.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []pubsub.Message
	for _, m := range p.msgs {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

type wireFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId"`
	Payload   json.RawMessage `json:"payload"`
}

type wireAck struct {
	OK    bool            `json:"ok"`
	Code  string          `json:"code"`
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data"`
}

// framesTo returns the event frames addressed to every connection of
// playerID, oldest first.
func (p *recordingPublisher) framesTo(t *testing.T, playerID string) []wireFrame {
	t.Helper()
	var out []wireFrame
	for _, m := range p.onTopic(ws.TopicDataDirect.Name()) {
		if m.Metadata[ws.MetaRecipientID] != playerID || m.Metadata[ws.MetaConnectionID] != "" {
			continue
		}
		var f wireFrame
		require.NoError(t, json.Unmarshal(m.Payload, &f))
		out = append(out, f)
	}
	return out
}

func frameTypes(frames []wireFrame) []string {
	types := make([]string, len(frames))
	for i, f := range frames {
		types[i] = f.Type
	}
	return types
}

var (
	alice = domain.Player{ID: "alice", Name: "Alice", Level: 3, Strength: 20, Endurance: 10}
	bob   = domain.Player{ID: "bob", Name: "Bob", Level: 5, Strength: 10, Endurance: 25}
)

type fixture struct {
	pub       *recordingPublisher
	engine    *battle.Engine
	rooms     *lobby.Registry
	transport *Transport
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pub := &recordingPublisher{}
	notifier := NewNotifier(pub, nil)

	var rooms *lobby.Registry
	engine := battle.NewEngine(
		battle.WithClock(battle.NopClock),
		battle.WithRNG(battle.NewRNG, func() (int64, error) { return 42, nil }),
		battle.WithListener(notifier),
		battle.WithEndHook(func(ctx context.Context, sum battle.Summary) {
			rooms.FinishBattle(ctx, sum.RoomID, sum.BattleID)
		}),
	)
	rooms = lobby.NewRegistry(engine, lobby.WithListener(notifier))
	t.Cleanup(func() { _ = engine.Shutdown(context.Background()) })

	tr := NewTransport(rooms, engine, pub, nil)
	return &fixture{pub: pub, engine: engine, rooms: rooms, transport: tr}
}

// inbound builds the bus message the bridge publishes for a frame from
// playerID's connection, snapshot included.
func inbound(t *testing.T, p domain.Player, connID string) pubsub.Message {
	t.Helper()
	encoded, err := ws.EncodePlayer(p)
	require.NoError(t, err)
	return pubsub.Message{UserID: p.ID, Metadata: map[string]string{
		ws.MetaConnectionID: connID,
		ws.MetaPlayer:       encoded,
	}}
}

var players = map[string]domain.Player{alice.ID: alice, bob.ID: bob}

// send delivers one frame from playerID's connection "<player>-conn" and
// returns the acknowledgement that connection received.
func (f *fixture) send(t *testing.T, playerID, msgType string, payload any) wireAck {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		raw = b
	}
	connID := playerID + "-conn"
	requestID := msgType + "-req"
	msg := inbound(t, players[playerID], connID)
	require.NoError(t, f.transport.handleMessage(context.Background(), ws.Frame{Type: msgType, RequestID: requestID, Payload: raw}, msg))

	direct := f.pub.onTopic(ws.TopicDataDirect.Name())
	require.NotEmpty(t, direct)
	last := direct[len(direct)-1]
	require.Equal(t, playerID, last.Metadata[ws.MetaRecipientID])
	require.Equal(t, connID, last.Metadata[ws.MetaConnectionID], "acks go to the calling connection only")

	var frame wireFrame
	require.NoError(t, json.Unmarshal(last.Payload, &frame))
	require.Equal(t, ws.TypeAck, frame.Type)
	require.Equal(t, requestID, frame.RequestID)
	var ack wireAck
	require.NoError(t, json.Unmarshal(frame.Payload, &ack))
	return ack
}

// startBattle runs the room flow up to a live battle and returns its id.
func (f *fixture) startBattle(t *testing.T) string {
	t.Helper()
	ack := f.send(t, alice.ID, topics.RoomCreate, map[string]any{"stake": 25})
	require.True(t, ack.OK, ack.Error)
	var room lobby.Room
	require.NoError(t, json.Unmarshal(ack.Data, &room))

	require.True(t, f.send(t, bob.ID, topics.RoomJoin, map[string]any{"roomId": room.ID}).OK)
	require.True(t, f.send(t, alice.ID, topics.RoomSetReady, nil).OK)
	ack = f.send(t, bob.ID, topics.RoomSetReady, map[string]any{"roomId": room.ID})
	require.True(t, ack.OK, ack.Error)
	require.NoError(t, json.Unmarshal(ack.Data, &room))
	require.Equal(t, lobby.StatusFighting, room.Status)
	return room.BattleID
}

func TestTransport_RoomFlowStartsBattle(t *testing.T) {
	f := newFixture(t)
	battleID := f.startBattle(t)

	id, ok := f.engine.BattleFor(alice.ID)
	require.True(t, ok)
	assert.Equal(t, battleID, id)

	snap, err := f.engine.Get(battleID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, snap.CurrentTurn, "host moves first")
	assert.Zero(t, snap.TurnCount)
	for _, fs := range snap.Fighters {
		assert.Equal(t, fs.MaxHealth, fs.Health)
		assert.Equal(t, fs.MaxEnergy, fs.Energy)
	}

	assert.Contains(t, frameTypes(f.pub.framesTo(t, alice.ID)), string(lobby.EventPlayerJoined))
	assert.Contains(t, frameTypes(f.pub.framesTo(t, bob.ID)), topics.BattleStarted)
	assert.Contains(t, frameTypes(f.pub.framesTo(t, alice.ID)), topics.BattleStarted)
}

func TestTransport_RejectionsCarryReason(t *testing.T) {
	f := newFixture(t)

	ack := f.send(t, bob.ID, topics.RoomJoin, map[string]any{"roomId": "nope"})
	assert.False(t, ack.OK)
	assert.Equal(t, domain.CodeNotFound, ack.Code)
	assert.Equal(t, "Room not found", ack.Error)

	ack = f.send(t, bob.ID, topics.RoomJoin, map[string]any{})
	assert.Equal(t, domain.CodeValidation, ack.Code)

	ack = f.send(t, bob.ID, topics.RoomLeave, nil)
	assert.Equal(t, domain.CodeNotInRoom, ack.Code)

	ack = f.send(t, "mallory", topics.RoomCreate, map[string]any{})
	assert.Equal(t, domain.CodeUnauthorized, ack.Code)

	battleID := f.startBattle(t)
	ack = f.send(t, bob.ID, topics.BattleAction, map[string]any{"battleId": battleID, "kind": "punch"})
	assert.Equal(t, domain.CodeNotYourTurn, ack.Code)
	assert.Equal(t, "Not your turn", ack.Error)

	ack = f.send(t, alice.ID, topics.BattleAction, map[string]any{"battleId": battleID, "kind": "headbutt"})
	assert.Equal(t, domain.CodeValidation, ack.Code)

	ack = f.send(t, alice.ID, topics.RoomLeave, nil)
	assert.Equal(t, domain.CodeGameInProgress, ack.Code)
}

func TestTransport_MalformedPayload(t *testing.T) {
	f := newFixture(t)
	msg := pubsub.Message{UserID: alice.ID, Metadata: map[string]string{ws.MetaConnectionID: "c1"}}
	frame := ws.Frame{Type: topics.RoomCreate, RequestID: "r1", Payload: json.RawMessage(`"stake"`)}
	require.NoError(t, f.transport.handleMessage(context.Background(), frame, msg))

	direct := f.pub.onTopic(ws.TopicDataDirect.Name())
	require.Len(t, direct, 1)
	assert.Contains(t, string(direct[0].Payload), `"code":"validation"`)
	assert.Zero(t, f.rooms.Count())
}

func TestTransport_ActionBroadcastsTurn(t *testing.T) {
	f := newFixture(t)
	battleID := f.startBattle(t)

	ack := f.send(t, alice.ID, topics.BattleAction, map[string]any{"battleId": battleID, "kind": "punch"})
	require.True(t, ack.OK, ack.Error)

	var turn struct {
		Record battle.TurnRecord `json:"record"`
		Battle battle.Snapshot   `json:"battle"`
	}
	require.NoError(t, json.Unmarshal(ack.Data, &turn))
	assert.Equal(t, alice.ID, turn.Record.ActorID)
	assert.Equal(t, battle.CausePlayer, turn.Record.Cause)
	assert.Equal(t, 1, turn.Battle.TurnCount)
	assert.Equal(t, bob.ID, turn.Battle.CurrentTurn)

	for _, id := range []string{alice.ID, bob.ID} {
		types := frameTypes(f.pub.framesTo(t, id))
		assert.Equal(t, topics.BattleTurn, types[len(types)-1], "player %s", id)
	}
}

func TestTransport_ForfeitEndsBattle(t *testing.T) {
	f := newFixture(t)
	battleID := f.startBattle(t)

	ack := f.send(t, bob.ID, topics.BattleForfeit, nil)
	require.True(t, ack.OK, ack.Error)

	var ended struct {
		BattleID string           `json:"battleId"`
		WinnerID string           `json:"winnerId"`
		Reason   battle.EndReason `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(ack.Data, &ended))
	assert.Equal(t, battleID, ended.BattleID)
	assert.Equal(t, alice.ID, ended.WinnerID)
	assert.Equal(t, battle.ReasonForfeit, ended.Reason)

	for _, id := range []string{alice.ID, bob.ID} {
		types := frameTypes(f.pub.framesTo(t, id))
		assert.Contains(t, types, topics.BattleEndedFrame)
		assert.Equal(t, string(lobby.EventClosed), types[len(types)-1])
	}

	require.Len(t, f.pub.onTopic(topics.BattleEnded.Name()), 1)
	deltas := f.pub.onTopic(topics.ProfileDelta.Name())
	require.Len(t, deltas, 2)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, []string{deltas[0].UserID, deltas[1].UserID})

	_, inRoom := f.rooms.RoomFor(alice.ID)
	assert.False(t, inRoom)
	assert.Zero(t, f.engine.ActiveCount())
}

func TestTransport_OfflineForfeits(t *testing.T) {
	f := newFixture(t)
	f.startBattle(t)

	change := presence.Change{PlayerID: bob.ID, Status: presence.StatusOffline}
	require.NoError(t, f.transport.handleOffline(context.Background(), change, pubsub.Message{}))

	published := f.pub.onTopic(topics.BattleEnded.Name())
	require.Len(t, published, 1)
	var sum battle.Summary
	require.NoError(t, json.Unmarshal(published[0].Payload, &sum))
	assert.Equal(t, alice.ID, sum.WinnerID)
	assert.Equal(t, battle.ReasonDisconnect, sum.Reason)
	assert.Equal(t, sum.TotalTurns, len(sum.Log))

	// A second offline report for the same player is a no-op.
	require.NoError(t, f.transport.handleOffline(context.Background(), change, pubsub.Message{}))
	assert.Len(t, f.pub.onTopic(topics.BattleEnded.Name()), 1)
}

func TestTransport_LeaveUsesCurrentRoom(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.send(t, alice.ID, topics.RoomCreate, map[string]any{}).OK)

	ack := f.send(t, alice.ID, topics.RoomList, nil)
	require.True(t, ack.OK)
	var listed []lobby.Room
	require.NoError(t, json.Unmarshal(ack.Data, &listed))
	assert.Len(t, listed, 1)

	require.True(t, f.send(t, alice.ID, topics.RoomLeave, nil).OK)
	_, ok := f.rooms.RoomFor(alice.ID)
	assert.False(t, ok)
	assert.Zero(t, f.rooms.Count())
}

func TestTransport_SnapshotComesWithEachFrame(t *testing.T) {
	f := newFixture(t)

	// The old connection going offline must not cost the new one its identity.
	change := presence.Change{PlayerID: alice.ID, Status: presence.StatusOffline}
	require.NoError(t, f.transport.handleOffline(context.Background(), change, pubsub.Message{}))

	ack := f.send(t, alice.ID, topics.RoomCreate, map[string]any{"stake": 5})
	require.True(t, ack.OK, ack.Error)
	var room lobby.Room
	require.NoError(t, json.Unmarshal(ack.Data, &room))
	require.Len(t, room.Members, 1)
	assert.Equal(t, alice.Name, room.Members[0].Name)

	tests := []struct {
		name string
		meta map[string]string
	}{
		{"missing", map[string]string{ws.MetaConnectionID: "c1"}},
		{"garbled", map[string]string{ws.MetaConnectionID: "c1", ws.MetaPlayer: "{"}},
		{"someone else", inbound(t, alice, "c1").Metadata},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := pubsub.Message{UserID: bob.ID, Metadata: tt.meta}
			_, err := f.transport.dispatch(context.Background(), msg, ws.Frame{Type: topics.RoomJoin, Payload: json.RawMessage(`{"roomId":"` + room.ID + `"}`)})
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
	after, err := f.rooms.Get(room.ID)
	require.NoError(t, err)
	assert.Len(t, after.Members, 1)
}
