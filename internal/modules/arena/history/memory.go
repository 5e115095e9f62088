package history

import (
	"context"
	"slices"
	"sync"

	"github.com/imfiit/arena/internal/modules/arena/battle"
	"github.com/imfiit/arena/internal/modules/arena/events"
)

// MemoryStore keeps history in process. It is the default driver and the
// store used in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	battles  map[string]Record
	profiles map[string]Profile
	applied  map[[2]string]struct{}
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		battles:  make(map[string]Record),
		profiles: make(map[string]Profile),
		applied:  make(map[[2]string]struct{}),
	}
}

func (s *MemoryStore) SaveBattle(ctx context.Context, sum battle.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.battles[sum.BattleID]; !ok {
		s.battles[sum.BattleID] = RecordFrom(sum)
	}
	return nil
}

func (s *MemoryStore) ApplyStatDelta(ctx context.Context, d events.ProfileDelta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]string{d.BattleID, d.PlayerID}
	if _, ok := s.applied[key]; ok {
		return nil
	}
	s.applied[key] = struct{}{}
	p := s.profiles[d.PlayerID]
	p.PlayerID = d.PlayerID
	p.apply(d)
	s.profiles[d.PlayerID] = p
	return nil
}

func (s *MemoryStore) RecentBattles(ctx context.Context, playerID string, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.battles {
		if slices.Contains(r.Players, playerID) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, newestFirst)
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Profile(ctx context.Context, playerID string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[playerID]
	if !ok {
		return Profile{PlayerID: playerID}, nil
	}
	return p, nil
}

func (s *MemoryStore) Close() error { return nil }

func newestFirst(a, b Record) int {
	if c := b.FinishedAt.Compare(a.FinishedAt); c != 0 {
		return c
	}
	switch {
	case a.BattleID < b.BattleID:
		return -1
	case a.BattleID > b.BattleID:
		return 1
	}
	return 0
}
