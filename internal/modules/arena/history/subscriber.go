package history

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/imfiit/arena/internal/modules/arena/battle"
	"github.com/imfiit/arena/internal/modules/arena/events"
	"github.com/imfiit/arena/internal/modules/arena/topics"
	"github.com/imfiit/arena/internal/pubsub"
)

// Subscriber applies the arena's end of battle events to a Store and an
// optional Archive.
type Subscriber struct {
	store   Store
	archive *Archive
	logger  *slog.Logger
}

func NewSubscriber(store Store, archive *Archive, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{store: store, archive: archive, logger: logger.With("service", "arena.history")}
}

// Start subscribes to the summary and profile delta topics.
func (s *Subscriber) Start(ctx context.Context, sub pubsub.Subscriber) error {
	if err := pubsub.Subscribe(ctx, sub, topics.BattleEnded, s.handleBattleEnded); err != nil {
		return fmt.Errorf("subscribe %s: %w", topics.BattleEnded.Name(), err)
	}
	if err := pubsub.Subscribe(ctx, sub, topics.ProfileDelta, s.handleProfileDelta); err != nil {
		return fmt.Errorf("subscribe %s: %w", topics.ProfileDelta.Name(), err)
	}
	s.logger.Info("History subscriber started")
	return nil
}

func (s *Subscriber) handleBattleEnded(ctx context.Context, sum battle.Summary, _ pubsub.Message) error {
	if err := s.store.SaveBattle(ctx, sum); err != nil {
		return fmt.Errorf("save battle %s: %w", sum.BattleID, err)
	}
	if s.archive != nil {
		if err := s.archive.Write(ctx, sum); err != nil {
			return err
		}
	}
	s.logger.Debug("Battle recorded", "battle_id", sum.BattleID, "turns", sum.TotalTurns)
	return nil
}

func (s *Subscriber) handleProfileDelta(ctx context.Context, d events.ProfileDelta, _ pubsub.Message) error {
	if err := s.store.ApplyStatDelta(ctx, d); err != nil {
		return fmt.Errorf("apply delta %s/%s: %w", d.BattleID, d.PlayerID, err)
	}
	return nil
}
