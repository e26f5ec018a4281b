// Package persistence provides storage abstraction for engine state.
package persistence

import (
	"errors"
	"fmt"
)

// ErrStateNotFound indicates no persisted state exists yet.
var ErrStateNotFound = errors.New("engine state not found")

// StateError wraps state I/O failures with operation context.
type StateError struct {
	Op   string // Operation being performed ("Load", "Save")
	Path string // Backing file path
	Err  error  // Underlying error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s of engine state at %s failed: %v", e.Op, e.Path, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

func (e *StateError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStateError creates a state error with context.
func NewStateError(op, path string, err error) *StateError {
	return &StateError{Op: op, Path: path, Err: err}
}
