package graph

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the repository. Callers classify with errors.Is;
// the API layer maps each kind to an HTTP status.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrCycleDetected = errors.New("cycle detected")
	ErrInvalidTree   = errors.New("invalid tree")
	ErrInvalidInput  = errors.New("invalid input")
)

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsCycleDetected checks if an error is a cycle detection error
func IsCycleDetected(err error) bool {
	return errors.Is(err, ErrCycleDetected)
}

// IsInvalidTree checks if an error is a malformed bulk submission error
func IsInvalidTree(err error) bool {
	return errors.Is(err, ErrInvalidTree)
}

// IsInvalidInput checks if an error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func cyclef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrCycleDetected, fmt.Sprintf(format, args...))
}

func invalidTreef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidTree, fmt.Sprintf(format, args...))
}

func invalidInputf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
