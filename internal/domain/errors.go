package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Sentinel errors for the domain layer. These provide consistent, checkable
// errors for common business logic failures.
var (
	ErrNotFound        = errors.New("requested resource not found")
	ErrRoomNotFound    = fmt.Errorf("room: %w", ErrNotFound)
	ErrBattleNotFound  = fmt.Errorf("battle: %w", ErrNotFound)
	ErrAlreadyInRoom   = errors.New("already in a room")
	ErrRoomFull        = errors.New("room is full")
	ErrGameInProgress  = errors.New("game already in progress")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrBattleNotActive = errors.New("battle is not active")
	ErrNotInRoom       = errors.New("not in a room")
	ErrValidation      = errors.New("validation failed")
	ErrUnauthorized    = errors.New("unauthorized")
)

// Error codes returned to realtime clients alongside the reason string.
const (
	CodeNotFound        = "not_found"
	CodeAlreadyInRoom   = "already_in_room"
	CodeRoomFull        = "room_full"
	CodeGameInProgress  = "game_in_progress"
	CodeNotYourTurn     = "not_your_turn"
	CodeBattleNotActive = "battle_not_active"
	CodeNotInRoom       = "not_in_room"
	CodeValidation      = "validation"
	CodeUnauthorized    = "unauthorized"
	CodeInternal        = "internal"
)

// ValidationError describes a malformed payload. Field is empty when the
// failure is not tied to a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// FromValidator converts go-playground validation failures into a
// ValidationError. Other errors are wrapped as-is under ErrValidation.
func FromValidator(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s must satisfy %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return &ValidationError{Field: strings.ToLower(verrs[0].Field()), Reason: strings.Join(parts, "; ")}
}

// Describe maps an error to the code and user-facing reason that the
// transport returns to the caller. Unknown errors are reported as internal
// without leaking their text.
func Describe(err error) (code, reason string) {
	var verr *ValidationError
	switch {
	case err == nil:
		return "", ""
	case errors.As(err, &verr):
		return CodeValidation, verr.Error()
	case errors.Is(err, ErrRoomNotFound):
		return CodeNotFound, "Room not found"
	case errors.Is(err, ErrBattleNotFound):
		return CodeNotFound, "Battle not found"
	case errors.Is(err, ErrNotFound):
		return CodeNotFound, "Not found"
	case errors.Is(err, ErrAlreadyInRoom):
		return CodeAlreadyInRoom, "Already in a room"
	case errors.Is(err, ErrRoomFull):
		return CodeRoomFull, "Room is full"
	case errors.Is(err, ErrGameInProgress):
		return CodeGameInProgress, "Game already in progress"
	case errors.Is(err, ErrNotYourTurn):
		return CodeNotYourTurn, "Not your turn"
	case errors.Is(err, ErrBattleNotActive):
		return CodeBattleNotActive, "Battle is not active"
	case errors.Is(err, ErrNotInRoom):
		return CodeNotInRoom, "Not in a room"
	case errors.Is(err, ErrValidation):
		return CodeValidation, err.Error()
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized, "Unauthorized"
	default:
		return CodeInternal, "Internal error"
	}
}
