// Package corerr defines the typed error kinds surfaced by the scheduling
// core (spec §7) and a validation aggregator used at job-create time.
// The aggregator is grounded on the teacher's custom_errors.ValidationError
// (Add/HasError/Error), generalized from a flat error list to a Kind-tagged
// error so callers can branch on the failure category.
package corerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error surfaced by the core.
type Kind string

const (
	NotFound               Kind = "not_found"
	InvalidSchedule        Kind = "invalid_schedule"
	IllegalStateTransition Kind = "illegal_state_transition"
	QueueUnavailable       Kind = "queue_unavailable"
	StoreUnavailable       Kind = "store_unavailable"
	TimeoutElapsed         Kind = "timeout_elapsed"
	AdapterFailure         Kind = "adapter_failure"
	ConfigurationError     Kind = "configuration_error"
)

// Error is a typed, wrapped error carrying one of the Kind values above.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, corerr.New(corerr.NotFound, "")) style checks:
// any *Error target with the same Kind matches, whatever its message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// New builds a new typed error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a typed error wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind of err, if it (or something it wraps) is a
// *Error. Returns ("", false) otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// ValidationErrors aggregates multiple field-level validation failures raised
// while constructing or mutating a Job, mirroring the teacher's
// custom_errors.ValidationError Add/HasError/Error trio.
type ValidationErrors struct {
	errs []error
}

func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.errs = append(v.errs, err)
	}
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.errs) > 0
}

func (v *ValidationErrors) Error() string {
	if len(v.errs) == 0 {
		return ""
	}
	return fmt.Sprintf("%v", errors.Join(v.errs...))
}

// AsError returns v as an *Error of kind InvalidSchedule if it carries any
// failures, else nil.
func (v *ValidationErrors) AsError() error {
	if !v.HasErrors() {
		return nil
	}
	return Wrap(InvalidSchedule, "job validation failed", v)
}
