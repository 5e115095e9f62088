package battle

import (
	"fmt"

	"github.com/imfiit/arena/internal/domain"
)

// ActionKind names a move a fighter can request on their turn.
type ActionKind string

const (
	ActionPunch   ActionKind = "punch"
	ActionKick    ActionKind = "kick"
	ActionSpecial ActionKind = "special"
	ActionBlock   ActionKind = "block"
)

// ActionSpec is one row of the balance table.
type ActionSpec struct {
	EnergyCost  int     `json:"energyCost"`
	HitChance   float64 `json:"hitChance"`
	BaseDamage  int     `json:"baseDamage"`
	CritChance  float64 `json:"critChance"`
	BlockChance float64 `json:"blockChance"`
	// Guard marks an action that raises a guard buff on the actor instead of
	// attacking.
	Guard bool `json:"guard,omitempty"`
}

// Rules is the balance snapshot a battle is created with. A running battle
// never sees later changes.
type Rules struct {
	MaxHealth   int `json:"maxHealth"`
	MaxEnergy   int `json:"maxEnergy"`
	EnergyRegen int `json:"energyRegen"`

	CritMultiplier  float64 `json:"critMultiplier"`
	BlockMultiplier float64 `json:"blockMultiplier"`
	JitterMin       float64 `json:"jitterMin"`
	JitterMax       float64 `json:"jitterMax"`

	// Per stat point bonuses added to the action's base chances.
	StrengthCritBonus   float64 `json:"strengthCritBonus"`
	EnduranceBlockBonus float64 `json:"enduranceBlockBonus"`
	ChanceCap           float64 `json:"chanceCap"`

	GuardMultiplier float64 `json:"guardMultiplier"`
	// GuardTurns is the guard lifetime in turn durations.
	GuardTurns int `json:"guardTurns"`

	TimeoutAction ActionKind                `json:"timeoutAction"`
	Actions       map[ActionKind]ActionSpec `json:"actions"`
}

// DefaultRules returns the stock balance table.
func DefaultRules() Rules {
	return Rules{
		MaxHealth:           100,
		MaxEnergy:           100,
		EnergyRegen:         5,
		CritMultiplier:      1.5,
		BlockMultiplier:     0.3,
		JitterMin:           0.8,
		JitterMax:           1.2,
		StrengthCritBonus:   0.001,
		EnduranceBlockBonus: 0.001,
		ChanceCap:           0.75,
		GuardMultiplier:     0.5,
		GuardTurns:          2,
		TimeoutAction:       ActionPunch,
		Actions: map[ActionKind]ActionSpec{
			ActionPunch:   {EnergyCost: 10, HitChance: 0.85, BaseDamage: 10, CritChance: 0.10, BlockChance: 0.10},
			ActionKick:    {EnergyCost: 20, HitChance: 0.75, BaseDamage: 18, CritChance: 0.15, BlockChance: 0.15},
			ActionSpecial: {EnergyCost: 35, HitChance: 0.90, BaseDamage: 28, CritChance: 0.20, BlockChance: 0.05},
			ActionBlock:   {EnergyCost: 5, HitChance: 1, Guard: true},
		},
	}
}

// Action looks up a spec by kind.
func (r Rules) Action(kind ActionKind) (ActionSpec, error) {
	spec, ok := r.Actions[kind]
	if !ok {
		return ActionSpec{}, domain.NewValidationError("action", fmt.Sprintf("unknown action %q", kind))
	}
	return spec, nil
}

// Validate rejects tables that would break the fighter invariants or the
// probability rolls.
func (r Rules) Validate() error {
	switch {
	case r.MaxHealth <= 0:
		return domain.NewValidationError("maxHealth", "must be positive")
	case r.MaxEnergy <= 0:
		return domain.NewValidationError("maxEnergy", "must be positive")
	case r.EnergyRegen < 0:
		return domain.NewValidationError("energyRegen", "must not be negative")
	case r.CritMultiplier < 1:
		return domain.NewValidationError("critMultiplier", "must be at least 1")
	case r.BlockMultiplier < 0 || r.BlockMultiplier > 1:
		return domain.NewValidationError("blockMultiplier", "must be within [0,1]")
	case r.JitterMin <= 0 || r.JitterMax < r.JitterMin:
		return domain.NewValidationError("jitter", "need 0 < jitterMin <= jitterMax")
	case !isProbability(r.ChanceCap):
		return domain.NewValidationError("chanceCap", "must be within [0,1]")
	case r.StrengthCritBonus < 0 || r.EnduranceBlockBonus < 0:
		return domain.NewValidationError("bonus", "must not be negative")
	case r.GuardMultiplier < 0 || r.GuardMultiplier > 1:
		return domain.NewValidationError("guardMultiplier", "must be within [0,1]")
	case r.GuardTurns < 0:
		return domain.NewValidationError("guardTurns", "must not be negative")
	case len(r.Actions) == 0:
		return domain.NewValidationError("actions", "at least one action is required")
	}

	for kind, spec := range r.Actions {
		field := "actions." + string(kind)
		if kind == "" {
			return domain.NewValidationError("actions", "empty action name")
		}
		if spec.EnergyCost < 0 || spec.EnergyCost > r.MaxEnergy {
			return domain.NewValidationError(field, "energyCost must be within [0,maxEnergy]")
		}
		if spec.BaseDamage < 0 {
			return domain.NewValidationError(field, "baseDamage must not be negative")
		}
		if !isProbability(spec.HitChance) || !isProbability(spec.CritChance) || !isProbability(spec.BlockChance) {
			return domain.NewValidationError(field, "chances must be within [0,1]")
		}
	}

	if _, ok := r.Actions[r.TimeoutAction]; !ok {
		return domain.NewValidationError("timeoutAction", fmt.Sprintf("unknown action %q", r.TimeoutAction))
	}
	return nil
}

func isProbability(p float64) bool {
	return p >= 0 && p <= 1
}
