package domain

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator instance. A single instance caches
// struct metadata across calls.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Player is the authenticated identity plus the stat snapshot taken when
// the session was issued. It is what the rest of the system knows about a
// user; profile persistence lives elsewhere.
type Player struct {
	ID        string `json:"id" form:"id" validate:"required,max=64"`
	Name      string `json:"name" form:"name" validate:"required,min=1,max=40"`
	BodyType  string `json:"bodyType" form:"bodyType" validate:"omitempty,max=32"`
	Level     int    `json:"level" form:"level" validate:"gte=1,lte=100"`
	Strength  int    `json:"strength" form:"strength" validate:"gte=0,lte=200"`
	Endurance int    `json:"endurance" form:"endurance" validate:"gte=0,lte=200"`
}

// Validate checks the snapshot against its field constraints.
func (p *Player) Validate() error {
	return FromValidator(Validator().Struct(p))
}
