// Package queue defines the Ready Queue contract of spec §4.3/§5: the
// single source of truth for pending work, with delayed visibility,
// priority ordering, and repeatable (recurring) registrations. Grounded on
// the teacher's redis.Client wiring (sketched in config/dependency_factory.go
// but never implemented — every driver branch there panics with
// "unsupported storage driver"); this package makes that branch real.
package queue

import (
	"context"
	"time"
)

// Envelope is a single popped unit of work: enough to run one attempt and
// ack/nack it afterward.
type Envelope struct {
	JobID         string
	AttemptsMade  int
	EnqueuedAt    time.Time
	VisibleAt     time.Time
	Priority      int
	IdempotencyID string // opaque token the queue uses to match Ack/Nack back to this delivery
}

// ReadyQueue is the single source of truth for pending work (spec §5
// "the queue is the single source of truth for pending work").
type ReadyQueue interface {
	// Enqueue makes a job immediately visible to Pop, subject to priority
	// ordering.
	Enqueue(ctx context.Context, jobID string, priority int, attemptsMade int) error

	// EnqueueDelayed makes a job visible no earlier than visibleAt, used for
	// retry backoff and scheduled one-shot jobs.
	EnqueueDelayed(ctx context.Context, jobID string, visibleAt time.Time, priority int, attemptsMade int) error

	// RegisterRepeatable records a recurring job's next-fire time; the queue
	// re-derives subsequent fires only when the planner calls this again
	// (the queue itself does not evaluate cron expressions).
	RegisterRepeatable(ctx context.Context, jobID string, nextFireAt time.Time, priority int) error

	// RemoveRepeatable cancels a previously registered repeatable fire
	// (used by Pause/Cancel/Delete).
	RemoveRepeatable(ctx context.Context, jobID string) error

	// Pop returns the next envelope whose VisibleAt has elapsed, highest
	// priority first and first-in, first-out within a priority. It does not
	// block: when none is ready it returns (nil, nil).
	Pop(ctx context.Context) (*Envelope, error)

	// Ack permanently removes the delivery so it cannot be re-delivered by a
	// stall sweep.
	Ack(ctx context.Context, env *Envelope) error

	// Nack makes the delivery visible again at retryAt (or returns it to the
	// immediate-visibility band if retryAt is zero).
	Nack(ctx context.Context, env *Envelope, retryAt time.Time) error
}
