// Package registry owns the in-memory map of automation instances.
package registry

import "errors"

var (
	// ErrAutomationNotFound indicates an operation referenced an unknown automation id.
	ErrAutomationNotFound = errors.New("automation not found")

	// ErrAutomationAlreadyExists indicates a duplicate id on register.
	ErrAutomationAlreadyExists = errors.New("automation already exists")
)

// IsNotFound checks if an error indicates an unknown automation id.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAutomationNotFound)
}

// IsAlreadyExists checks if an error indicates a duplicate automation id.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAutomationAlreadyExists)
}
