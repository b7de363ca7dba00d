// Package apperr defines the error taxonomy shared by the booking, wallet and
// messaging components. Handlers map these onto HTTP status codes; the core
// never returns untyped errors from its public operations.
package apperr

import "fmt"

// ValidationError reports malformed input (bad duration, negative amount).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// PolicyViolation reports a broken business rule (self-booking, free booking
// without eligibility).
type PolicyViolation struct {
	Reason string
}

func (e *PolicyViolation) Error() string {
	return "policy: " + e.Reason
}

// InvalidTransition reports an illegal state-machine move.
type InvalidTransition struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition: %s cannot move from %q to %q", e.Entity, e.From, e.To)
}

// InsufficientBalance reports a withdrawal attempt below the minimum, or
// against an already-drained balance.
type InsufficientBalance struct {
	Balance int64
	Minimum int64
}

func (e *InsufficientBalance) Error() string {
	return fmt.Sprintf("insufficient balance: have %d, need at least %d", e.Balance, e.Minimum)
}

// PersistenceFailure wraps a store write that did not durably save state.
// Money-affecting callers must treat it as fatal; cosmetic callers may
// downgrade it to a warning.
type PersistenceFailure struct {
	Key string
	Err error
}

func (e *PersistenceFailure) Error() string {
	return fmt.Sprintf("persistence: write of %q failed: %v", e.Key, e.Err)
}

func (e *PersistenceFailure) Unwrap() error {
	return e.Err
}
