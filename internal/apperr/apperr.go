// Package apperr defines the error taxonomy shared across the payment
// pipeline. Provider-facing errors are converted into these types at the
// adapter boundary; only typed errors cross component boundaries.
package apperr

import "fmt"

// ValidationError means caller-supplied data failed a precondition. Surfaced
// synchronously as a 4xx response and never retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError.
func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ProviderTransportError is a network or timeout failure talking to a
// provider. Disbursements retry it with backoff; initiation surfaces it to
// the caller as a transient failure.
type ProviderTransportError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderTransportError) Error() string {
	return fmt.Sprintf("%s %s: transport: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderTransportError) Unwrap() error { return e.Err }

// Transport wraps a network-level provider failure.
func Transport(provider, op string, err error) *ProviderTransportError {
	return &ProviderTransportError{Provider: provider, Op: op, Err: err}
}

// ProviderRejection means the provider explicitly declined the request.
// Terminal for the attempt but still inside the disbursement retry budget.
type ProviderRejection struct {
	Provider string
	Code     string
	Message  string
}

func (e *ProviderRejection) Error() string {
	return fmt.Sprintf("%s rejected: %s: %s", e.Provider, e.Code, e.Message)
}

// Rejection builds a ProviderRejection.
func Rejection(provider, code, message string) *ProviderRejection {
	return &ProviderRejection{Provider: provider, Code: code, Message: message}
}

// ReconciliationAnomaly records a callback for an unknown reference or a
// second terminal transition on an already-terminal record. Logged and
// alerted, never raised to a user-facing error.
type ReconciliationAnomaly struct {
	Reference string
	Detail    string
}

func (e *ReconciliationAnomaly) Error() string {
	return fmt.Sprintf("reconciliation anomaly for %q: %s", e.Reference, e.Detail)
}

// Anomaly builds a ReconciliationAnomaly.
func Anomaly(reference, detail string) *ReconciliationAnomaly {
	return &ReconciliationAnomaly{Reference: reference, Detail: detail}
}

// InvalidStateTransition means a transition was requested that the state
// machine does not permit. Logged at high severity; must never crash the
// ingesting worker.
type InvalidStateTransition struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid %s transition %s -> %s", e.Entity, e.From, e.To)
}

// BadTransition builds an InvalidStateTransition.
func BadTransition(entity, from, to string) *InvalidStateTransition {
	return &InvalidStateTransition{Entity: entity, From: from, To: to}
}
