package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/imfiit/arena/internal/domain"
	"github.com/imfiit/arena/internal/modules/arena/battle"
	"github.com/imfiit/arena/internal/storage"
)

const (
	replayDir = "replays"
	replayExt = ".json"
)

// Replay is everything needed to re-run a battle: the seed, the fighters'
// pre-battle stats and the ordered turn log.
type Replay struct {
	BattleID     string              `json:"battleId"`
	RoomID       string              `json:"roomId"`
	Seed         int64               `json:"seed"`
	Participants []domain.Player     `json:"participants"`
	WinnerID     string              `json:"winnerId,omitempty"`
	Reason       battle.EndReason    `json:"reason"`
	Log          []battle.TurnRecord `json:"log"`
	FinishedAt   time.Time           `json:"finishedAt"`
}

// Archive writes one replay file per battle to a file store.
type Archive struct {
	files storage.Store
}

func NewArchive(files storage.Store) *Archive {
	return &Archive{files: files}
}

// Write stores the replay of sum, replacing any earlier copy.
func (a *Archive) Write(ctx context.Context, sum battle.Summary) error {
	if err := checkID(sum.BattleID); err != nil {
		return err
	}
	data, err := json.Marshal(Replay{
		BattleID:     sum.BattleID,
		RoomID:       sum.RoomID,
		Seed:         sum.Seed,
		Participants: sum.Participants,
		WinnerID:     sum.WinnerID,
		Reason:       sum.Reason,
		Log:          sum.Log,
		FinishedAt:   sum.FinishedAt,
	})
	if err != nil {
		return fmt.Errorf("encode replay: %w", err)
	}
	if _, err := a.files.Save(ctx, replayPath(sum.BattleID), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("save replay %s: %w", sum.BattleID, err)
	}
	return nil
}

// Read loads a replay. A missing replay is domain.ErrBattleNotFound.
func (a *Archive) Read(ctx context.Context, battleID string) (Replay, error) {
	if err := checkID(battleID); err != nil {
		return Replay{}, err
	}
	rc, err := a.files.Open(ctx, replayPath(battleID))
	if errors.Is(err, storage.ErrNotFound) {
		return Replay{}, domain.ErrBattleNotFound
	}
	if err != nil {
		return Replay{}, fmt.Errorf("open replay %s: %w", battleID, err)
	}
	defer rc.Close()

	var r Replay
	if err := json.NewDecoder(rc).Decode(&r); err != nil {
		return Replay{}, fmt.Errorf("decode replay %s: %w", battleID, err)
	}
	return r, nil
}

// List returns the archived battle ids in name order.
func (a *Archive) List(ctx context.Context) ([]string, error) {
	names, err := a.files.List(ctx, replayDir)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(names))
	for _, n := range names {
		if id, ok := strings.CutSuffix(n, replayExt); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func replayPath(battleID string) string {
	return replayDir + "/" + battleID + replayExt
}

func checkID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return domain.NewValidationError("battleId", "invalid battle id")
	}
	return nil
}
