package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantReason string
	}{
		{"room not found", fmt.Errorf("join: %w", ErrRoomNotFound), CodeNotFound, "Room not found"},
		{"battle not found", ErrBattleNotFound, CodeNotFound, "Battle not found"},
		{"room full", ErrRoomFull, CodeRoomFull, "Room is full"},
		{"not your turn", fmt.Errorf("submit: %w", ErrNotYourTurn), CodeNotYourTurn, "Not your turn"},
		{"inactive", ErrBattleNotActive, CodeBattleNotActive, "Battle is not active"},
		{"already in room", ErrAlreadyInRoom, CodeAlreadyInRoom, "Already in a room"},
		{"in progress", ErrGameInProgress, CodeGameInProgress, "Game already in progress"},
		{"validation", NewValidationError("kind", "unknown action"), CodeValidation, "kind: unknown action"},
		{"unknown", errors.New("boom"), CodeInternal, "Internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, reason := Describe(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestNotFoundSentinelsWrapBase(t *testing.T) {
	assert.ErrorIs(t, ErrRoomNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrBattleNotFound, ErrNotFound)
	assert.NotErrorIs(t, ErrRoomNotFound, ErrBattleNotFound)
}

func TestPlayerValidate(t *testing.T) {
	p := &Player{ID: "u1", Name: "Ada", Level: 3, Strength: 20, Endurance: 10}
	require.NoError(t, p.Validate())

	p.Name = ""
	err := p.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
}
