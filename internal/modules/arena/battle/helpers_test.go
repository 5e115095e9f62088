package battle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/imfiit/arena/internal/domain"
	"github.com/imfiit/arena/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock only ticks when the test calls Fire.
type manualClock struct {
	mu     sync.Mutex
	tick   func()
	starts int
	stops  int
}

func (c *manualClock) Start(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick = fn
	c.starts++
}

func (c *manualClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
}

// Fire runs one tick unless the clock was stopped.
func (c *manualClock) Fire() {
	c.mu.Lock()
	fn, stopped := c.tick, c.stops > 0
	c.mu.Unlock()
	if fn != nil && !stopped {
		fn()
	}
}

// FireLate runs the callback even after Stop, like a ticker racing Stop.
func (c *manualClock) FireLate() {
	c.mu.Lock()
	fn := c.tick
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *manualClock) Stops() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

// seqRNG replays a fixed list of rolls, cycling when exhausted.
type seqRNG struct {
	mu   sync.Mutex
	vals []float64
	i    int
}

func rolls(vals ...float64) *seqRNG { return &seqRNG{vals: vals} }

func (r *seqRNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v
}

type recordingListener struct {
	mu       sync.Mutex
	started  []Snapshot
	turns    []TurnRecord
	ticks    []TickEvent
	timeouts []TurnRecord
	ended    []Summary
}

func (l *recordingListener) BattleStarted(_ context.Context, s Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, s)
}

func (l *recordingListener) TurnResolved(_ context.Context, r TurnRecord, _ Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, r)
}

func (l *recordingListener) Tick(_ context.Context, ev TickEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ticks = append(l.ticks, ev)
}

func (l *recordingListener) TurnTimedOut(_ context.Context, r TurnRecord, _ Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timeouts = append(l.timeouts, r)
}

func (l *recordingListener) BattleEnded(_ context.Context, s Summary) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ended = append(l.ended, s)
}

func (l *recordingListener) endedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ended)
}

type harness struct {
	engine   *Engine
	clock    *manualClock
	listener *recordingListener
	ended    []Summary
	now      time.Time
}

var (
	alice = domain.Player{ID: "alice", Name: "Alice", BodyType: "lean", Level: 3, Strength: 0, Endurance: 0}
	bob   = domain.Player{ID: "bob", Name: "Bob", BodyType: "bulky", Level: 5, Strength: 0, Endurance: 0}
)

func newHarness(t *testing.T, rng RNG, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		clock:    &manualClock{},
		listener: &recordingListener{},
		now:      time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	base := []Option{
		WithLogger(logging.Discard()),
		WithTiming(3*time.Second, time.Second, 50),
		WithClock(func(time.Duration) Clock { return h.clock }),
		WithRNG(func(int64) RNG { return rng }, func() (int64, error) { return 42, nil }),
		WithNow(func() time.Time { return h.now }),
		WithIDs(func() string { return "battle-1" }),
		WithListener(h.listener),
		WithEndHook(func(_ context.Context, s Summary) { h.ended = append(h.ended, s) }),
	}
	h.engine = NewEngine(append(base, opts...)...)
	return h
}

func (h *harness) start(t *testing.T) Snapshot {
	t.Helper()
	snap, err := h.engine.StartBattle(context.Background(), StartRequest{
		RoomID:  "room-1",
		HostID:  alice.ID,
		Players: [2]domain.Player{alice, bob},
	})
	require.NoError(t, err)
	return snap
}

// withBattle runs fn against the live battle under its lock.
func (h *harness) withBattle(t *testing.T, id string, fn func(b *Battle)) {
	t.Helper()
	b, err := h.engine.get(id)
	require.NoError(t, err)
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

// faultyListener panics on the named callbacks and records everything else.
type faultyListener struct {
	*recordingListener
	panicOn map[string]bool
}

func panicking(on ...string) *faultyListener {
	l := &faultyListener{recordingListener: &recordingListener{}, panicOn: map[string]bool{}}
	for _, name := range on {
		l.panicOn[name] = true
	}
	return l
}

func (l *faultyListener) TurnResolved(ctx context.Context, r TurnRecord, s Snapshot) {
	if l.panicOn["turn"] {
		panic("turn listener")
	}
	l.recordingListener.TurnResolved(ctx, r, s)
}

func (l *faultyListener) Tick(ctx context.Context, ev TickEvent) {
	if l.panicOn["tick"] {
		panic("tick listener")
	}
	l.recordingListener.Tick(ctx, ev)
}

func (l *faultyListener) TurnTimedOut(ctx context.Context, r TurnRecord, s Snapshot) {
	if l.panicOn["timeout"] {
		panic("timeout listener")
	}
	l.recordingListener.TurnTimedOut(ctx, r, s)
}

// assertTornDown checks that exactly one end was reported and nothing of the
// battle is left in the engine.
func (h *harness) assertTornDown(t *testing.T, l *recordingListener) Summary {
	t.Helper()
	require.Equal(t, 1, l.endedCount())
	require.Len(t, h.ended, 1)
	assert.Equal(t, 1, h.clock.Stops())
	assert.Zero(t, h.engine.ActiveCount())
	for _, id := range []string{alice.ID, bob.ID} {
		_, ok := h.engine.BattleFor(id)
		assert.False(t, ok, id)
	}
	return h.ended[0]
}
