package battle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/imfiit/arena/internal/domain"
)

const (
	DefaultTurnDuration = 30 * time.Second
	DefaultTickInterval = time.Second
	DefaultMaxTurns     = 50
)

// StartRequest describes a room that has committed to fighting.
type StartRequest struct {
	RoomID  string
	HostID  string
	Players [2]domain.Player
	Stake   int
}

// EndHook runs once per battle after it has been removed from the engine.
type EndHook func(ctx context.Context, sum Summary)

// Engine owns every live battle. Battles are independent: each has its own
// lock, and the engine lock only guards the two indexes.
type Engine struct {
	mu            sync.RWMutex
	battles       map[string]*Battle
	byParticipant map[string]string

	turnDuration time.Duration
	tickInterval time.Duration
	maxTurns     int

	rules    func() Rules
	rewards  RewardPolicy
	newClock ClockFactory
	newRNG   func(seed int64) RNG
	newSeed  func() (int64, error)
	newID    func() string
	now      func() time.Time
	listener Listener
	onEnd    EndHook
	logger   *slog.Logger
}

// Option is a function that configures an Engine.
type Option func(*Engine)

// WithTiming sets the turn budget, tick resolution and max-turn ceiling.
// Zero values keep the defaults.
func WithTiming(turn, tick time.Duration, maxTurns int) Option {
	return func(e *Engine) {
		if turn > 0 {
			e.turnDuration = turn
		}
		if tick > 0 {
			e.tickInterval = tick
		}
		if maxTurns > 0 {
			e.maxTurns = maxTurns
		}
	}
}

// WithRules sets the rules source. It is read once per battle at creation.
func WithRules(fn func() Rules) Option {
	return func(e *Engine) { e.rules = fn }
}

// WithRewardPolicy replaces the built-in reward curve.
func WithRewardPolicy(p RewardPolicy) Option {
	return func(e *Engine) { e.rewards = p }
}

// WithClock sets the factory for per-battle turn timers.
func WithClock(f ClockFactory) Option {
	return func(e *Engine) { e.newClock = f }
}

// WithRNG sets the generator factory and the seed source.
func WithRNG(newRNG func(seed int64) RNG, newSeed func() (int64, error)) Option {
	return func(e *Engine) {
		if newRNG != nil {
			e.newRNG = newRNG
		}
		if newSeed != nil {
			e.newSeed = newSeed
		}
	}
}

// WithNow overrides the wall clock used for timestamps and buff expiry.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs overrides battle id generation.
func WithIDs(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithListener sets the event listener.
func WithListener(l Listener) Option {
	return func(e *Engine) { e.listener = l }
}

// WithEndHook registers the hook run after a battle is torn down.
func WithEndHook(h EndHook) Option {
	return func(e *Engine) { e.onEnd = h }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l.With("service", "battle") }
}

// NewEngine creates an engine with no live battles.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		battles:       make(map[string]*Battle),
		byParticipant: make(map[string]string),
		turnDuration:  DefaultTurnDuration,
		tickInterval:  DefaultTickInterval,
		maxTurns:      DefaultMaxTurns,
		rules:         DefaultRules,
		rewards:       Curve{},
		newClock:      NewTickerClock,
		newRNG:        NewRNG,
		newSeed:       NewSeed,
		newID:         uuid.NewString,
		now:           func() time.Time { return time.Now().UTC() },
		listener:      NopListener{},
		logger:        slog.Default().With("service", "battle"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TurnDuration is the per-turn time budget.
func (e *Engine) TurnDuration() time.Duration { return e.turnDuration }

// StartBattle creates a battle for a room that just committed to fighting
// and makes it active. The host moves first.
func (e *Engine) StartBattle(ctx context.Context, req StartRequest) (Snapshot, error) {
	a, b := req.Players[0], req.Players[1]
	if a.ID == "" || b.ID == "" || a.ID == b.ID {
		return Snapshot{}, domain.NewValidationError("players", "a battle needs two distinct players")
	}
	if req.HostID != a.ID && req.HostID != b.ID {
		return Snapshot{}, domain.NewValidationError("hostId", "host must be one of the players")
	}

	rules := e.rules()
	if err := rules.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("battle rules: %w", err)
	}
	seed, err := e.newSeed()
	if err != nil {
		return Snapshot{}, err
	}

	now := e.now()
	bt := &Battle{
		id:          e.newID(),
		roomID:      req.RoomID,
		stake:       req.Stake,
		seed:        seed,
		rules:       rules,
		rng:         e.newRNG(seed),
		clock:       e.newClock(e.tickInterval),
		status:      StatusWaiting,
		fighters:    [2]*Fighter{NewFighter(a, rules), NewFighter(b, rules)},
		currentTurn: req.HostID,
		timeLeft:    e.turnDuration,
		createdAt:   now,
	}

	bt.mu.Lock()
	defer bt.mu.Unlock()

	e.mu.Lock()
	for _, id := range []string{a.ID, b.ID} {
		if existing, ok := e.byParticipant[id]; ok {
			e.mu.Unlock()
			return Snapshot{}, fmt.Errorf("player %s is in battle %s: %w", id, existing, domain.ErrGameInProgress)
		}
	}
	e.battles[bt.id] = bt
	e.byParticipant[a.ID] = bt.id
	e.byParticipant[b.ID] = bt.id
	e.mu.Unlock()

	bt.status = StatusActive
	bt.startedAt = now
	snap := bt.snapshotLocked()

	e.logger.Info("Battle started",
		"battle_id", bt.id,
		"room_id", bt.roomID,
		"first_turn", bt.currentTurn,
		"seed", seed)

	e.listener.BattleStarted(ctx, snap)
	bt.clock.Start(func() { e.onTick(bt) })
	return snap, nil
}

// SubmitAction resolves the current player's action. Insufficient energy is
// not an error: the turn is logged as a miss and still switches.
func (e *Engine) SubmitAction(ctx context.Context, battleID, participantID string, kind ActionKind) (TurnRecord, Snapshot, error) {
	bt, err := e.get(battleID)
	if err != nil {
		return TurnRecord{}, Snapshot{}, err
	}

	var (
		rec  TurnRecord
		snap Snapshot
		sum  *Summary
	)
	err = func() error {
		bt.mu.Lock()
		defer bt.mu.Unlock()

		if _, err := bt.rules.Action(kind); err != nil {
			return err
		}
		if bt.status != StatusActive {
			return domain.ErrBattleNotActive
		}
		if participantID != bt.currentTurn {
			return domain.ErrNotYourTurn
		}

		r, s, err := e.resolveTurnLocked(bt, kind, CausePlayer)
		if err != nil {
			return err
		}
		rec, sum = r, s
		snap = bt.snapshotLocked()
		e.notify(bt.id, "turn_resolved", func() { e.listener.TurnResolved(ctx, rec, snap) })
		return nil
	}()
	if err != nil {
		return TurnRecord{}, Snapshot{}, err
	}

	if sum != nil {
		e.teardown(ctx, *sum)
	}
	return rec, snap, nil
}

// Forfeit ends the caller's active battle immediately with the opponent as
// winner, regardless of whose turn it is.
func (e *Engine) Forfeit(ctx context.Context, participantID string) (Summary, error) {
	return e.concede(ctx, participantID, CauseForfeit)
}

// Disconnect is Forfeit triggered by the transport losing the participant.
func (e *Engine) Disconnect(ctx context.Context, participantID string) (Summary, error) {
	return e.concede(ctx, participantID, CauseDisconnect)
}

func (e *Engine) concede(ctx context.Context, participantID string, cause Cause) (Summary, error) {
	battleID, ok := e.BattleFor(participantID)
	if !ok {
		return Summary{}, domain.ErrBattleNotFound
	}
	bt, err := e.get(battleID)
	if err != nil {
		return Summary{}, err
	}

	var sum *Summary
	err = func() error {
		bt.mu.Lock()
		defer bt.mu.Unlock()

		if bt.status != StatusActive {
			return domain.ErrBattleNotActive
		}
		self, other := bt.fighter(participantID)
		if self == nil {
			return domain.ErrBattleNotFound
		}
		bt.appendLocked(TurnRecord{ActorID: self.ID, Cause: cause, At: e.now()})
		reason := ReasonForfeit
		if cause == CauseDisconnect {
			reason = ReasonDisconnect
		}
		sum = e.finishLocked(bt, other.ID, reason)
		return nil
	}()
	if err != nil {
		return Summary{}, err
	}

	e.logger.Info("Battle conceded",
		"battle_id", bt.id,
		"player_id", participantID,
		"cause", cause)
	e.teardown(ctx, *sum)
	return *sum, nil
}

// Get returns the projection of a live battle.
func (e *Engine) Get(battleID string) (Snapshot, error) {
	bt, err := e.get(battleID)
	if err != nil {
		return Snapshot{}, err
	}
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return bt.snapshotLocked(), nil
}

// BattleFor returns the id of the live battle participantID is in.
func (e *Engine) BattleFor(participantID string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.byParticipant[participantID]
	return id, ok
}

// ActiveCount reports the number of live battles.
func (e *Engine) ActiveCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.battles)
}

// Shutdown stops every battle timer and drops live battles without
// settling them.
func (e *Engine) Shutdown(_ context.Context) error {
	e.mu.Lock()
	battles := make([]*Battle, 0, len(e.battles))
	for _, bt := range e.battles {
		battles = append(battles, bt)
	}
	e.battles = make(map[string]*Battle)
	e.byParticipant = make(map[string]string)
	e.mu.Unlock()

	for _, bt := range battles {
		bt.mu.Lock()
		if bt.status == StatusActive {
			bt.status = StatusFinished
			bt.reason = ReasonAborted
			bt.finishedAt = e.now()
			bt.clock.Stop()
		}
		bt.mu.Unlock()
	}
	if len(battles) > 0 {
		e.logger.Warn("Engine shut down with live battles", "count", len(battles))
	}
	return nil
}

func (e *Engine) get(battleID string) (*Battle, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	bt, ok := e.battles[battleID]
	if !ok {
		return nil, domain.ErrBattleNotFound
	}
	return bt, nil
}

// onTick is the clock callback. It never surfaces an error; any fault ends
// the battle on standing instead of leaving it stuck.
func (e *Engine) onTick(bt *Battle) {
	ctx := context.Background()

	var sum *Summary
	err := func() (err error) {
		bt.mu.Lock()
		defer bt.mu.Unlock()
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("tick panic: %v", r)
			}
		}()

		if bt.status != StatusActive {
			return nil
		}
		bt.timeLeft -= e.tickInterval
		if bt.timeLeft > 0 {
			e.listener.Tick(ctx, TickEvent{
				BattleID:     bt.id,
				CurrentTurn:  bt.currentTurn,
				TurnTimeLeft: seconds(bt.timeLeft),
				Fighters:     [2]FighterState{bt.fighters[0].State(), bt.fighters[1].State()},
			})
			return nil
		}

		rec, s, err := e.resolveTurnLocked(bt, bt.rules.TimeoutAction, CauseTimeout)
		if err != nil {
			return err
		}
		sum = s
		e.listener.TurnTimedOut(ctx, rec, bt.snapshotLocked())
		return nil
	}()

	if err != nil {
		e.logger.Error("Turn timer failed, ending battle", "battle_id", bt.id, "error", err)
		// The timeout turn may already have finished the battle.
		if sum == nil {
			sum = e.abort(bt)
		}
	}
	if sum != nil {
		e.teardown(ctx, *sum)
	}
}

// notify runs a listener callback for a turn that has already committed. A
// panic is logged so it cannot strand the battle before teardown.
func (e *Engine) notify(battleID, event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Battle listener failed", "battle_id", battleID, "event", event, "panic", r)
		}
	}()
	fn()
}

func (e *Engine) abort(bt *Battle) *Summary {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	if bt.status != StatusActive {
		return nil
	}
	return e.finishLocked(bt, standingWinner(bt.fighters), ReasonAborted)
}

// resolveTurnLocked resolves kind for the current turn holder, appends the
// record and either finishes the battle or hands the turn over.
func (e *Engine) resolveTurnLocked(bt *Battle, kind ActionKind, cause Cause) (TurnRecord, *Summary, error) {
	spec, err := bt.rules.Action(kind)
	if err != nil {
		return TurnRecord{}, nil, err
	}
	attacker, defender := bt.fighter(bt.currentTurn)
	if attacker == nil {
		return TurnRecord{}, nil, fmt.Errorf("current turn %q is not a participant", bt.currentTurn)
	}

	now := e.now()
	attacker.PruneBuffs(now)
	defender.PruneBuffs(now)

	rec := resolveAction(bt.rules, kind, spec, attacker, defender, bt.rng, now, e.turnDuration)
	rec.ActorID = attacker.ID
	rec.Cause = cause
	rec.At = now
	rec = bt.appendLocked(rec)

	switch {
	case !defender.Alive():
		return rec, e.finishLocked(bt, attacker.ID, ReasonKnockout), nil
	case bt.turnCount >= e.maxTurns:
		return rec, e.finishLocked(bt, standingWinner(bt.fighters), ReasonMaxTurns), nil
	}

	bt.currentTurn = defender.ID
	bt.timeLeft = e.turnDuration
	attacker.Regen(bt.rules.EnergyRegen)
	defender.Regen(bt.rules.EnergyRegen)
	return rec, nil, nil
}

// appendLocked numbers rec and appends it. Every record counts as a turn.
func (bt *Battle) appendLocked(rec TurnRecord) TurnRecord {
	bt.turnCount++
	rec.Turn = bt.turnCount
	bt.log = append(bt.log, rec)
	return rec
}

// finishLocked is the single termination path. It returns nil if the battle
// already finished, so callers tear down at most once.
func (e *Engine) finishLocked(bt *Battle, winnerID string, reason EndReason) *Summary {
	if bt.status == StatusFinished {
		return nil
	}
	bt.status = StatusFinished
	bt.reason = reason
	bt.winnerID = winnerID
	bt.finishedAt = e.now()
	bt.clock.Stop()

	a, b := bt.fighters[0], bt.fighters[1]
	sum := Summary{
		BattleID:     bt.id,
		RoomID:       bt.roomID,
		Reason:       reason,
		Participants: []domain.Player{a.Player, b.Player},
		Final:        [2]FighterState{a.State(), b.State()},
		StartedAt:    bt.startedAt,
		FinishedAt:   bt.finishedAt,
		DurationMs:   bt.finishedAt.Sub(bt.startedAt).Milliseconds(),
		TotalTurns:   bt.turnCount,
		DamageDealt:  map[string]int{a.ID: 0, b.ID: 0},
		Log:          append([]TurnRecord(nil), bt.log...),
		Seed:         bt.seed,
		Stake:        bt.stake,
	}
	for _, rec := range bt.log {
		sum.TotalDamage += rec.Damage
		sum.DamageDealt[rec.ActorID] += rec.Damage
	}

	if winnerID == "" {
		sum.Draw = true
		ra, rb := ComputeDrawRewards(a.Player, b.Player, bt.turnCount)
		sum.Rewards = []Reward{ra, rb}
		return &sum
	}

	winner, loser := bt.fighter(winnerID)
	sum.WinnerID = winner.ID
	sum.LoserID = loser.ID
	win, lose := e.rewards.Compute(winner.Player, loser.Player, bt.turnCount)
	sum.Rewards = []Reward{win, lose}
	return &sum
}

// teardown drops the battle from the indexes, then notifies. It runs
// without the battle lock held.
func (e *Engine) teardown(ctx context.Context, sum Summary) {
	e.mu.Lock()
	delete(e.battles, sum.BattleID)
	for _, p := range sum.Participants {
		if e.byParticipant[p.ID] == sum.BattleID {
			delete(e.byParticipant, p.ID)
		}
	}
	e.mu.Unlock()

	e.logger.Info("Battle ended",
		"battle_id", sum.BattleID,
		"winner_id", sum.WinnerID,
		"draw", sum.Draw,
		"reason", sum.Reason,
		"turns", sum.TotalTurns)

	e.notify(sum.BattleID, "battle_ended", func() { e.listener.BattleEnded(ctx, sum) })
	if e.onEnd != nil {
		e.onEnd(ctx, sum)
	}
}

// standingWinner picks the winner of a battle decided on points: higher
// health, then higher energy. An exact tie is a draw.
func standingWinner(f [2]*Fighter) string {
	a, b := f[0], f[1]
	switch {
	case a.Health != b.Health:
		if a.Health > b.Health {
			return a.ID
		}
		return b.ID
	case a.Energy != b.Energy:
		if a.Energy > b.Energy {
			return a.ID
		}
		return b.ID
	}
	return ""
}
