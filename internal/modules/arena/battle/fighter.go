package battle

import (
	"time"

	"github.com/imfiit/arena/internal/domain"
)

// BuffKind identifies a time-bounded modifier on a fighter.
type BuffKind string

// BuffGuard scales incoming damage by its multiplier.
const BuffGuard BuffKind = "guard"

// Buff is a modifier that lapses at ExpiresAt.
type Buff struct {
	Kind       BuffKind  `json:"kind"`
	Multiplier float64   `json:"multiplier"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Fighter is one combatant's in-battle state. It is only mutated by the
// engine while holding the owning battle's lock.
type Fighter struct {
	domain.Player

	Health    int
	MaxHealth int
	Energy    int
	MaxEnergy int
	Buffs     []Buff
}

// NewFighter builds a fighter at full health and energy from a pre-battle
// snapshot. Prior battle results never carry over.
func NewFighter(p domain.Player, r Rules) *Fighter {
	return &Fighter{
		Player:    p,
		Health:    r.MaxHealth,
		MaxHealth: r.MaxHealth,
		Energy:    r.MaxEnergy,
		MaxEnergy: r.MaxEnergy,
	}
}

// Alive reports whether the fighter can still act.
func (f *Fighter) Alive() bool {
	return f.Health > 0
}

// TakeDamage lowers health, clamped at zero, and returns the damage applied.
func (f *Fighter) TakeDamage(n int) int {
	if n <= 0 {
		return 0
	}
	if n > f.Health {
		n = f.Health
	}
	f.Health -= n
	return n
}

// Spend consumes energy. It reports false and leaves energy untouched when
// the fighter cannot afford the cost.
func (f *Fighter) Spend(cost int) bool {
	if cost < 0 || f.Energy < cost {
		return false
	}
	f.Energy -= cost
	return true
}

// Regen restores energy up to the maximum.
func (f *Fighter) Regen(n int) {
	if n <= 0 {
		return
	}
	f.Energy = min(f.MaxEnergy, f.Energy+n)
}

// AddBuff applies a buff, replacing any existing buff of the same kind.
func (f *Fighter) AddBuff(b Buff) {
	for i := range f.Buffs {
		if f.Buffs[i].Kind == b.Kind {
			f.Buffs[i] = b
			return
		}
	}
	f.Buffs = append(f.Buffs, b)
}

// PruneBuffs drops buffs that expired at or before now.
func (f *Fighter) PruneBuffs(now time.Time) {
	kept := f.Buffs[:0]
	for _, b := range f.Buffs {
		if b.ExpiresAt.After(now) {
			kept = append(kept, b)
		}
	}
	f.Buffs = kept
}

// IncomingMultiplier is the product of active damage-scaling buffs.
func (f *Fighter) IncomingMultiplier(now time.Time) float64 {
	m := 1.0
	for _, b := range f.Buffs {
		if b.Kind == BuffGuard && b.ExpiresAt.After(now) {
			m *= b.Multiplier
		}
	}
	return m
}

// FighterState is the public projection of a fighter.
type FighterState struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BodyType  string `json:"bodyType,omitempty"`
	Level     int    `json:"level"`
	Strength  int    `json:"strength"`
	Endurance int    `json:"endurance"`
	Health    int    `json:"health"`
	MaxHealth int    `json:"maxHealth"`
	Energy    int    `json:"energy"`
	MaxEnergy int    `json:"maxEnergy"`
	Buffs     []Buff `json:"buffs,omitempty"`
}

// State copies the fighter into its projection.
func (f *Fighter) State() FighterState {
	var buffs []Buff
	if len(f.Buffs) > 0 {
		buffs = append([]Buff(nil), f.Buffs...)
	}
	return FighterState{
		ID:        f.ID,
		Name:      f.Name,
		BodyType:  f.BodyType,
		Level:     f.Level,
		Strength:  f.Strength,
		Endurance: f.Endurance,
		Health:    f.Health,
		MaxHealth: f.MaxHealth,
		Energy:    f.Energy,
		MaxEnergy: f.MaxEnergy,
		Buffs:     buffs,
	}
}
