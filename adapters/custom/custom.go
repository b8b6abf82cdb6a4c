// Package custom implements the "custom" JobTypeExecutor: dispatch by a
// caller-registered handler name, for job types the five built-in adapters
// don't cover.
package custom

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RezaEskandarii/jobcore/executor"
)

// Handler runs one named custom job type against its raw args.
type Handler func(ctx context.Context, args json.RawMessage, deadline time.Time) (executor.Result, error)

// envelope is the {name, args} bag a custom job carries: name selects the
// registered Handler, args is passed through opaque.
type envelope struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Executor dispatches to a Handler registered under the payload's name.
type Executor struct {
	handlers map[string]Handler
}

func New() *Executor {
	return &Executor{handlers: make(map[string]Handler)}
}

// Register adds or replaces the handler for name.
func (e *Executor) Register(name string, h Handler) {
	e.handlers[name] = h
}

func (e *Executor) Execute(ctx context.Context, raw json.RawMessage, deadline time.Time) (executor.Result, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return executor.Result{}, &executor.Error{Message: fmt.Sprintf("invalid custom payload: %v", err)}
	}
	if env.Name == "" {
		return executor.Result{}, &executor.Error{Message: "custom payload requires name"}
	}

	h, ok := e.handlers[env.Name]
	if !ok {
		return executor.Result{}, &executor.Error{Message: fmt.Sprintf("no custom handler registered for %q", env.Name)}
	}
	return h(ctx, env.Args, deadline)
}
