package battle

import "context"

// TickEvent is the per-second heartbeat of an active battle.
type TickEvent struct {
	BattleID     string          `json:"battleId"`
	CurrentTurn  string          `json:"currentTurn"`
	TurnTimeLeft int             `json:"turnTimeLeft"`
	Fighters     [2]FighterState `json:"fighters"`
}

// Listener receives engine events in resolution order for a given battle.
// Every call except BattleEnded is made with the battle lock held, so
// implementations must not block and must not call back into the engine.
type Listener interface {
	BattleStarted(ctx context.Context, snap Snapshot)
	TurnResolved(ctx context.Context, rec TurnRecord, snap Snapshot)
	Tick(ctx context.Context, ev TickEvent)
	TurnTimedOut(ctx context.Context, rec TurnRecord, snap Snapshot)
	BattleEnded(ctx context.Context, sum Summary)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) BattleStarted(context.Context, Snapshot)            {}
func (NopListener) TurnResolved(context.Context, TurnRecord, Snapshot) {}
func (NopListener) Tick(context.Context, TickEvent)                    {}
func (NopListener) TurnTimedOut(context.Context, TurnRecord, Snapshot) {}
func (NopListener) BattleEnded(context.Context, Summary)               {}
