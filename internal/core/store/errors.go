package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a session id or action index does not resolve
var ErrNotFound = errors.New("not found")

// ErrInvalidAction is returned when an action fails validation
var ErrInvalidAction = errors.New("invalid action")

// PersistError reports a failed write or removal of a session record.
// The in-memory mutation that preceded it is kept.
type PersistError struct {
	SessionID string
	Op        string // "save" or "remove"
	Err       error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s session %s: %v", e.Op, e.SessionID, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

func sessionNotFound(id string) error {
	return fmt.Errorf("session %s: %w", id, ErrNotFound)
}

func indexNotFound(id string, index int) error {
	return fmt.Errorf("action %d in session %s: %w", index, id, ErrNotFound)
}
