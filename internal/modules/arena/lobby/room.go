package lobby

import (
	"time"

	"github.com/imfiit/arena/internal/domain"
)

// Status is the room lifecycle state.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusReady    Status = "ready"
	StatusFighting Status = "fighting"
	StatusFinished Status = "finished"
)

// DefaultCapacity is the only capacity the battle mode supports.
const DefaultCapacity = 2

// Config is what a host chooses when opening a room.
type Config struct {
	Stake     int  `json:"stake" validate:"gte=0,lte=1000000"`
	IsPrivate bool `json:"isPrivate"`
	Capacity  int  `json:"capacity" validate:"omitempty,eq=2"`
}

// Member is a joined player's pre-battle snapshot plus their ready flag.
type Member struct {
	domain.Player
	Ready bool `json:"ready"`
}

// Room is both the registry's record and the projection sent to clients.
// Values returned by the registry are copies.
type Room struct {
	ID        string    `json:"id"`
	HostID    string    `json:"hostId"`
	Stake     int       `json:"stake"`
	IsPrivate bool      `json:"isPrivate"`
	Capacity  int       `json:"capacity"`
	Status    Status    `json:"status"`
	Members   []Member  `json:"members"`
	BattleID  string    `json:"battleId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r *Room) clone() Room {
	c := *r
	c.Members = append([]Member(nil), r.Members...)
	return c
}

func (r *Room) memberIndex(playerID string) int {
	for i, m := range r.Members {
		if m.ID == playerID {
			return i
		}
	}
	return -1
}

func (r *Room) full() bool {
	return len(r.Members) >= r.Capacity
}

func (r *Room) allReady() bool {
	if len(r.Members) != r.Capacity {
		return false
	}
	for _, m := range r.Members {
		if !m.Ready {
			return false
		}
	}
	return true
}

// MemberIDs lists member ids in join order.
func (r Room) MemberIDs() []string {
	ids := make([]string, len(r.Members))
	for i, m := range r.Members {
		ids[i] = m.ID
	}
	return ids
}

// Listable reports whether the room shows up in public discovery.
func (r Room) Listable() bool {
	return r.Status == StatusWaiting && !r.IsPrivate
}
