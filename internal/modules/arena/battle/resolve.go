package battle

import (
	"math"
	"time"
)

// Cause records why a turn record was appended.
type Cause string

const (
	CausePlayer     Cause = "player"
	CauseTimeout    Cause = "timeout"
	CauseForfeit    Cause = "forfeit"
	CauseDisconnect Cause = "disconnect"
)

// NoteTooTired marks an action the actor could not afford.
const NoteTooTired = "too tired"

// TurnRecord is one entry of the battle log. Entries are never modified
// after they are appended.
type TurnRecord struct {
	Turn     int        `json:"turn"`
	ActorID  string     `json:"actorId"`
	Action   ActionKind `json:"action,omitempty"`
	Cause    Cause      `json:"cause"`
	Hit      bool       `json:"hit"`
	Damage   int        `json:"damage"`
	Critical bool       `json:"critical"`
	Blocked  bool       `json:"blocked"`
	Note     string     `json:"note,omitempty"`
	At       time.Time  `json:"at"`
}

// resolveAction applies one action from attacker against defender and
// returns the partially filled record (turn, actor, cause and time are set
// by the caller). Rolls are drawn in a fixed order: hit, crit, block,
// jitter.
func resolveAction(r Rules, kind ActionKind, spec ActionSpec, attacker, defender *Fighter, rng RNG, now time.Time, turnDuration time.Duration) TurnRecord {
	rec := TurnRecord{Action: kind}

	if !attacker.Spend(spec.EnergyCost) {
		rec.Note = NoteTooTired
		return rec
	}

	if rng.Float64() >= spec.HitChance {
		return rec
	}
	rec.Hit = true

	if spec.Guard {
		if r.GuardTurns > 0 {
			attacker.AddBuff(Buff{
				Kind:       BuffGuard,
				Multiplier: r.GuardMultiplier,
				ExpiresAt:  now.Add(time.Duration(r.GuardTurns) * turnDuration),
			})
		}
		return rec
	}
	if spec.BaseDamage == 0 {
		return rec
	}

	dmg := float64(spec.BaseDamage) * (1 + float64(attacker.Strength)/100)

	critChance := math.Min(r.ChanceCap, spec.CritChance+r.StrengthCritBonus*float64(attacker.Strength))
	if rng.Float64() < critChance {
		rec.Critical = true
		dmg *= r.CritMultiplier
	}

	blockChance := math.Min(r.ChanceCap, spec.BlockChance+r.EnduranceBlockBonus*float64(defender.Endurance))
	if rng.Float64() < blockChance {
		rec.Blocked = true
		dmg *= r.BlockMultiplier
	}

	dmg *= defender.IncomingMultiplier(now)
	dmg *= r.JitterMin + rng.Float64()*(r.JitterMax-r.JitterMin)

	final := int(math.Round(dmg))
	if final < 1 {
		final = 1
	}
	rec.Damage = defender.TakeDamage(final)
	return rec
}
