package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a cycle failure. The API layer maps kinds to HTTP
// status codes; the orchestrator logs them with the failing collaborator.
type ErrorKind string

const (
	// ErrClientInput is a validation failure of the caller's request
	ErrClientInput ErrorKind = "client_input"
	// ErrCollaboratorUnavailable is a network error or 5xx from an
	// analyzer, the advisor or the sizer
	ErrCollaboratorUnavailable ErrorKind = "collaborator_unavailable"
	// ErrCollaboratorContract is a parseable response that violates its
	// schema (missing field, out-of-range value)
	ErrCollaboratorContract ErrorKind = "collaborator_contract"
	// ErrTimeout is a deadline expiry on a collaborator call or the cycle
	ErrTimeout ErrorKind = "timeout"
	// ErrExchangeRejected is a terminal non-filled reply from the exchange
	ErrExchangeRejected ErrorKind = "exchange_rejected"
	// ErrExchangeUnknown means the exchange call was cut off after send;
	// the order may or may not have executed
	ErrExchangeUnknown ErrorKind = "exchange_unknown"
	// ErrPersistence means the receipt could not be written after a fill
	ErrPersistence ErrorKind = "persistence"
	// ErrConfiguration is a fatal startup configuration problem
	ErrConfiguration ErrorKind = "configuration"
)

// CycleError wraps an underlying failure with its taxonomy kind and the
// collaborator that produced it.
type CycleError struct {
	Kind         ErrorKind
	Collaborator string
	Err          error
}

// NewCycleError constructs a classified cycle error
func NewCycleError(kind ErrorKind, collaborator string, err error) *CycleError {
	return &CycleError{Kind: kind, Collaborator: collaborator, Err: err}
}

func (e *CycleError) Error() string {
	if e.Collaborator != "" {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Collaborator, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }

// KindOf extracts the taxonomy kind of an error chain. Unclassified errors
// report as collaborator_unavailable, the conservative default.
func KindOf(err error) ErrorKind {
	var ce *CycleError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ErrCollaboratorUnavailable
}
