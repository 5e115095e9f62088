package history

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imfiit/arena/internal/domain"
	"github.com/imfiit/arena/internal/modules/arena/battle"
	"github.com/imfiit/arena/internal/modules/arena/events"
	"github.com/imfiit/arena/internal/modules/arena/topics"
	"github.com/imfiit/arena/internal/pubsub"
	"github.com/imfiit/arena/internal/storage"
)

func TestArchive(t *testing.T) {
	ctx := context.Background()
	a := NewArchive(storage.NewAferoStore(afero.NewMemMapFs()))

	ids, err := a.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	sum := summary("b2", epoch, "alice", "bob")
	require.NoError(t, a.Write(ctx, sum))
	require.NoError(t, a.Write(ctx, summary("b1", epoch, "bob", "alice")))

	replay, err := a.Read(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, int64(42), replay.Seed)
	assert.Equal(t, "alice", replay.WinnerID)
	assert.Equal(t, sum.Participants, replay.Participants)
	require.Len(t, replay.Log, 1)
	assert.Equal(t, 12, replay.Log[0].Damage)

	ids, err = a.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2"}, ids)

	_, err = a.Read(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrBattleNotFound)

	for _, bad := range []string{"", "../etc", "a/b", `a\b`} {
		_, err := a.Read(ctx, bad)
		assert.ErrorIs(t, err, domain.ErrValidation, "id %q", bad)
	}
}

type fakeSubscriber struct {
	mu       sync.Mutex
	handlers map[string]pubsub.Handler
}

func (f *fakeSubscriber) Subscribe(_ context.Context, topic string, h pubsub.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[string]pubsub.Handler)
	}
	f.handlers[topic] = h
	return nil
}

func (f *fakeSubscriber) Close() error { return nil }

func (f *fakeSubscriber) deliver(t *testing.T, topic string, msg pubsub.Message) error {
	t.Helper()
	f.mu.Lock()
	h, ok := f.handlers[topic]
	f.mu.Unlock()
	require.True(t, ok, "no handler for %s", topic)
	msg.Topic = topic
	return h(context.Background(), msg)
}

// capture publishes into a slice so tests can replay real payloads.
type capture struct{ msgs []pubsub.Message }

func (c *capture) Publish(_ context.Context, msg pubsub.Message) error {
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *capture) Close() error { return nil }

func TestSubscriber_RecordsBattle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	archive := NewArchive(storage.NewAferoStore(afero.NewMemMapFs()))
	sub := &fakeSubscriber{}
	require.NoError(t, NewSubscriber(store, archive, nil).Start(ctx, sub))

	sum := summary("b1", epoch, "alice", "bob")
	out := &capture{}
	require.NoError(t, pubsub.Publish(ctx, out, topics.BattleEnded, sum))
	for _, d := range events.DeltasFor(sum) {
		require.NoError(t, pubsub.Publish(ctx, out, topics.ProfileDelta, d, pubsub.From(d.PlayerID)))
	}

	// Delivered twice, as an at-least-once bus may do.
	for range 2 {
		for _, msg := range out.msgs {
			require.NoError(t, sub.deliver(t, msg.Topic, msg))
		}
	}

	recent, err := store.RecentBattles(ctx, "bob", 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "b1", recent[0].BattleID)

	alice, err := store.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 60, alice.XP)
	assert.Equal(t, 1, alice.Wins)

	_, err = archive.Read(ctx, "b1")
	assert.NoError(t, err)
}

type failingStore struct{ *MemoryStore }

func (failingStore) SaveBattle(context.Context, battle.Summary) error {
	return errors.New("disk full")
}

func TestSubscriber_ReturnsStoreErrors(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubscriber{}
	require.NoError(t, NewSubscriber(failingStore{NewMemoryStore()}, nil, nil).Start(ctx, sub))

	out := &capture{}
	require.NoError(t, pubsub.Publish(ctx, out, topics.BattleEnded, summary("b1", epoch, "a", "b")))
	err := sub.deliver(t, topics.BattleEnded.Name(), out.msgs[0])
	assert.ErrorContains(t, err, "disk full")

	err = sub.deliver(t, topics.ProfileDelta.Name(), pubsub.Message{Payload: []byte("not json")})
	assert.Error(t, err)
}
