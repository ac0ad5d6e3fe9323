package users

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable indicates the initial load from the remote source failed.
	ErrSourceUnavailable = errors.New("users: source unavailable")
	// ErrNotFound indicates the referenced user is not in the cache.
	ErrNotFound = errors.New("users: not found")
	// ErrMutationFailed indicates a local write could not be confirmed remotely and was rolled back.
	ErrMutationFailed = errors.New("users: mutation failed")
	// ErrValidation indicates input rejected before reaching the cache.
	ErrValidation = errors.New("users: validation failed")
)

// Operation names used in errors, logs and metrics.
const (
	OpLoad       = "load"
	OpGet        = "get"
	OpCreate     = "create"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpDeleteMany = "delete_many"
)

// OpError describes which operation failed, on which id, and why.
// It matches both its Kind and its Cause under errors.Is.
type OpError struct {
	Op    string
	ID    string
	Kind  error
	Cause error
}

func (e *OpError) Error() string {
	msg := e.Op
	if e.ID != "" {
		msg += " " + e.ID
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %v", msg, e.Kind)
}

func (e *OpError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func notFound(op, id string) error {
	return &OpError{Op: op, ID: id, Kind: ErrNotFound}
}

func mutationFailed(op, id string, cause error) error {
	return &OpError{Op: op, ID: id, Kind: ErrMutationFailed, Cause: cause}
}
