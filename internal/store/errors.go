package store

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyRegistered = errors.New("player already registered")
	ErrSceneNotFound     = errors.New("scene not found")
	ErrInvalidName       = errors.New("invalid player name")
	ErrNotRegistered     = errors.New("player not registered")
	ErrCoinNotFound      = errors.New("coin not found")
	ErrAlreadyCollected  = errors.New("coin already collected")
	ErrInvalidScene      = errors.New("invalid scene")
	ErrInvalidState      = errors.New("invalid player state")
	ErrUnknownReducer    = errors.New("unknown reducer")
)

// ReducerError reports which reducer rejected a call.
type ReducerError struct {
	Reducer string
	Err     error
}

func (e *ReducerError) Error() string {
	return fmt.Sprintf("reducer %s: %v", e.Reducer, e.Err)
}

func (e *ReducerError) Unwrap() error {
	return e.Err
}

var errorCodes = map[error]string{
	ErrAlreadyRegistered: "already_registered",
	ErrSceneNotFound:     "scene_not_found",
	ErrInvalidName:       "invalid_name",
	ErrNotRegistered:     "not_registered",
	ErrCoinNotFound:      "coin_not_found",
	ErrAlreadyCollected:  "already_collected",
	ErrInvalidScene:      "invalid_scene",
	ErrInvalidState:      "invalid_state",
	ErrUnknownReducer:    "unknown_reducer",
}

// ErrorCode returns the wire code of the sentinel wrapped by err, or
// "internal" when err wraps none of them.
func ErrorCode(err error) string {
	for sentinel, code := range errorCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return "internal"
}

// ErrorFromCode maps a wire code back onto its sentinel.
func ErrorFromCode(code string) error {
	for sentinel, c := range errorCodes {
		if c == code {
			return sentinel
		}
	}
	return fmt.Errorf("reducer failed: %s", code)
}
