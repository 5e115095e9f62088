package battle

import (
	"math"
	"sync"
	"time"

	"github.com/imfiit/arena/internal/domain"
)

// Status is the battle lifecycle state.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// EndReason says which termination path finished a battle.
type EndReason string

const (
	ReasonKnockout   EndReason = "knockout"
	ReasonMaxTurns   EndReason = "max_turns"
	ReasonForfeit    EndReason = "forfeit"
	ReasonDisconnect EndReason = "disconnect"
	ReasonAborted    EndReason = "aborted"
)

// Battle is the live state of one contest. Every field below mu is guarded
// by it; the engine is the only writer.
type Battle struct {
	id     string
	roomID string
	stake  int
	seed   int64
	rules  Rules
	rng    RNG
	clock  Clock

	mu          sync.Mutex
	status      Status
	fighters    [2]*Fighter
	currentTurn string
	timeLeft    time.Duration
	turnCount   int
	winnerID    string
	reason      EndReason
	log         []TurnRecord
	createdAt   time.Time
	startedAt   time.Time
	finishedAt  time.Time
}

// ID returns the battle id.
func (b *Battle) ID() string { return b.id }

func (b *Battle) fighter(id string) (self, other *Fighter) {
	switch id {
	case b.fighters[0].ID:
		return b.fighters[0], b.fighters[1]
	case b.fighters[1].ID:
		return b.fighters[1], b.fighters[0]
	}
	return nil, nil
}

// Snapshot is the broadcastable projection of a battle.
type Snapshot struct {
	ID           string             `json:"id"`
	RoomID       string             `json:"roomId"`
	Status       Status             `json:"status"`
	Fighters     [2]FighterState    `json:"fighters"`
	CurrentTurn  string             `json:"currentTurn,omitempty"`
	TurnTimeLeft int                `json:"turnTimeLeft"`
	TurnCount    int                `json:"turnCount"`
	WinnerID     string             `json:"winnerId,omitempty"`
	Stake        int                `json:"stake,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	StartedAt    time.Time          `json:"startedAt"`
	FinishedAt   *time.Time         `json:"finishedAt,omitempty"`
	Actions      map[ActionKind]int `json:"actions"`
}

// snapshotLocked must be called with b.mu held.
func (b *Battle) snapshotLocked() Snapshot {
	s := Snapshot{
		ID:           b.id,
		RoomID:       b.roomID,
		Status:       b.status,
		Fighters:     [2]FighterState{b.fighters[0].State(), b.fighters[1].State()},
		TurnTimeLeft: seconds(b.timeLeft),
		TurnCount:    b.turnCount,
		WinnerID:     b.winnerID,
		Stake:        b.stake,
		CreatedAt:    b.createdAt,
		StartedAt:    b.startedAt,
		Actions:      make(map[ActionKind]int, len(b.rules.Actions)),
	}
	if b.status == StatusActive {
		s.CurrentTurn = b.currentTurn
	}
	if !b.finishedAt.IsZero() {
		t := b.finishedAt
		s.FinishedAt = &t
	}
	for kind, spec := range b.rules.Actions {
		s.Actions[kind] = spec.EnergyCost
	}
	return s
}

// Summary is the persistence-ready record handed off when a battle ends.
type Summary struct {
	BattleID     string          `json:"battleId"`
	RoomID       string          `json:"roomId"`
	WinnerID     string          `json:"winnerId,omitempty"`
	LoserID      string          `json:"loserId,omitempty"`
	Draw         bool            `json:"draw"`
	Reason       EndReason       `json:"reason"`
	Participants []domain.Player `json:"participants"`
	Final        [2]FighterState `json:"final"`
	Rewards      []Reward        `json:"rewards"`
	StartedAt    time.Time       `json:"startedAt"`
	FinishedAt   time.Time       `json:"finishedAt"`
	DurationMs   int64           `json:"durationMs"`
	TotalTurns   int             `json:"totalTurns"`
	TotalDamage  int             `json:"totalDamage"`
	DamageDealt  map[string]int  `json:"damageDealt"`
	Log          []TurnRecord    `json:"log"`
	Seed         int64           `json:"seed"`
	Stake        int             `json:"stake,omitempty"`
}

// RewardFor returns the reward earned by playerID.
func (s Summary) RewardFor(playerID string) (Reward, bool) {
	for _, r := range s.Rewards {
		if r.PlayerID == playerID {
			return r, true
		}
	}
	return Reward{}, false
}

func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
