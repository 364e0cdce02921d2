package savestate

import (
	"errors"
	"fmt"
)

// Reasons a state buffer is rejected.
var (
	ErrTooShort  = errors.New("save state too short")
	ErrBadMagic  = errors.New("invalid save state magic")
	ErrVersion   = errors.New("unsupported save state version")
	ErrCorrupt   = errors.New("save state data is corrupted")
	ErrTruncated = errors.New("save state data is truncated")

	ErrOtherCartridge = errors.New("save state belongs to another cartridge")
)

// StateFormatError reports a save state buffer that could not be restored.
// The engine that produced it keeps running its previous state.
type StateFormatError struct {
	Reason error
	Detail string
}

func (e *StateFormatError) Error() string {
	if e.Detail == "" {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%v: %s", e.Reason, e.Detail)
}

func (e *StateFormatError) Unwrap() error {
	return e.Reason
}

func formatError(reason error, format string, args ...any) *StateFormatError {
	return &StateFormatError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
