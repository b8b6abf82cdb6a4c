// Package executor defines the capability the worker pool dispatches each
// attempt to, external to the scheduling core per spec §1 ("the core
// consumes a JobTypeExecutor capability"). Adapters live under adapters/.
package executor

import (
	"context"
	"encoding/json"
	"time"
)

// Result is the success outcome of one attempt, whose shape is adapter
// specific but always JSON-serializable for storage in Execution.Result.
type Result struct {
	Data json.RawMessage
}

// Error is an attempt failure carrying both a human message and, where the
// adapter captured one, a stack/trace detail for Execution.error.stack.
type Error struct {
	Message string
	Stack   string
}

func (e *Error) Error() string { return e.Message }

// JobTypeExecutor runs one attempt of a job's payload against deadline and
// reports success or failure. Implementations must respect ctx cancellation
// promptly: the worker pool's timeout enforcement cancels ctx at deadline
// and treats a still-running executor past that point as a `timeout`.
type JobTypeExecutor interface {
	Execute(ctx context.Context, payload json.RawMessage, deadline time.Time) (Result, error)
}

// Registry dispatches by model.JobType name to a concrete JobTypeExecutor,
// the polymorphic capability §9's design notes call for.
type Registry map[string]JobTypeExecutor

func (r Registry) Lookup(jobType string) (JobTypeExecutor, bool) {
	ex, ok := r[jobType]
	return ex, ok
}
