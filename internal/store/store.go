// Package store defines the Durable Store contracts of spec §3/§4.4: a
// transactional, indexed home for Job, Execution, and JobLog rows. Shaped
// after the teacher's store.CronJobStore / store.EnqueuedJobStore interfaces,
// generalized from two job kinds into the spec's single richer Job entity
// plus its Execution/JobLog children.
package store

import (
	"context"
	"time"

	"github.com/RezaEskandarii/jobcore/internal/jobstate"
	"github.com/RezaEskandarii/jobcore/internal/model"
)

// JobStore persists and queries Job rows.
type JobStore interface {
	Create(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	Delete(ctx context.Context, id string) error

	// SetStatus performs an unconditional status write, used by the planner
	// to complete a recurring job at its end condition (pause/resume/cancel
	// go through CompareAndSetStatus instead).
	SetStatus(ctx context.Context, id string, status jobstate.JobStatus) error

	// CompareAndSetStatus performs `UPDATE ... WHERE status = from`, the
	// per-field conditional update spec's design notes recommend to avoid
	// lost updates when the planner and worker pipeline race on the same
	// row. Returns false (no error) if the row's current status isn't from.
	CompareAndSetStatus(ctx context.Context, id string, from, to jobstate.JobStatus) (bool, error)

	SetSchedule(ctx context.Context, id string, scheduleType model.ScheduleType, scheduledAt *time.Time, cronExpression *string, timezone string, nextExecutionAt *time.Time) error

	SetNextExecutionAt(ctx context.Context, id string, next *time.Time) error

	ListByOwner(ctx context.Context, ownerID string, page, pageSize int) (*model.Page[model.Job], error)
}

// ExecutionStore persists and queries Execution rows.
type ExecutionStore interface {
	Create(ctx context.Context, exec *model.Execution) error
	Get(ctx context.Context, id string) (*model.Execution, error)
	ListByJob(ctx context.Context, jobID string, page, pageSize int) (*model.Page[model.Execution], error)
}

// LogStore appends and queries JobLog rows. Entries are never mutated after
// write (spec §3).
type LogStore interface {
	Append(ctx context.Context, entry *model.JobLog) error
	ListByJob(ctx context.Context, jobID string, limit int) ([]model.JobLog, error)
}

// OwnerStore manages the owning-user records jobs cascade from.
type OwnerStore interface {
	Create(ctx context.Context, username string) (*model.Owner, error)
	Get(ctx context.Context, id string) (*model.Owner, error)
	Delete(ctx context.Context, id string) error // cascades Jobs, per spec §3 ownership
}

// FinalizeInput is the atomic write of an attempt's terminal outcome plus the
// job counter/status update it drives (spec §4.4's "all mutations for a
// single attempt outcome MUST be applied atomically").
type FinalizeInput struct {
	Execution *model.Execution

	JobID          string
	Success        bool
	LastExecutedAt time.Time

	NewJobStatus    *jobstate.JobStatus
	NextExecutionAt *time.Time
	ClearNext       bool

	// IdempotencyKey is (job_id, execution_id, "finalize"); a second
	// FinalizeAttempt call with the same key is a no-op, letting a crashed
	// worker retry without double-counting (spec §4.4).
	IdempotencyKey string
}

// Store aggregates the three durable tables behind one transactional root.
type Store interface {
	Jobs() JobStore
	Executions() ExecutionStore
	Logs() LogStore
	Owners() OwnerStore

	// FinalizeAttempt applies in.Execution plus the Job counter/status
	// update in a single transaction (or is itself idempotent via
	// in.IdempotencyKey for non-transactional backends). Returns
	// (applied=false, err=nil) if the key was already finalized.
	FinalizeAttempt(ctx context.Context, in FinalizeInput) (applied bool, err error)

	Close() error
}
