// Package model defines the persistent entities of spec §3: Job, Execution,
// JobLog, and the owning Owner. Field shapes follow the teacher's
// types.CronJob / types.EnqueuedJob pattern (plain structs, nullable
// pointers for optional columns) generalized to the spec's richer Job model.
package model

import (
	"encoding/json"
	"time"

	"github.com/RezaEskandarii/jobcore/internal/jobstate"
)

// JobType selects the executor adapter used to run a Job.
type JobType string

const (
	JobTypeHTTP    JobType = "http"
	JobTypeWebhook JobType = "webhook"
	JobTypeScript  JobType = "script"
	JobTypeEmail   JobType = "email"
	JobTypeCustom  JobType = "custom"
)

func (t JobType) Valid() bool {
	switch t {
	case JobTypeHTTP, JobTypeWebhook, JobTypeScript, JobTypeEmail, JobTypeCustom:
		return true
	default:
		return false
	}
}

// ScheduleType selects how a Job's NextExecutionAt is computed.
type ScheduleType string

const (
	ScheduleImmediate ScheduleType = "immediate"
	ScheduleScheduled ScheduleType = "scheduled"
	ScheduleRecurring ScheduleType = "recurring"
)

func (t ScheduleType) Valid() bool {
	switch t {
	case ScheduleImmediate, ScheduleScheduled, ScheduleRecurring:
		return true
	default:
		return false
	}
}

// RetryBackoff selects the delay curve applied between retry attempts.
type RetryBackoff string

const (
	BackoffFixed       RetryBackoff = "fixed"
	BackoffExponential RetryBackoff = "exponential"
)

func (b RetryBackoff) Valid() bool {
	return b == BackoffFixed || b == BackoffExponential
}

// Job is a persistent specification of scheduled work (spec §3).
type Job struct {
	ID      string
	OwnerID string

	Name        string
	Description string
	Tags        []string
	Metadata    map[string]any

	Type    JobType
	Payload json.RawMessage

	ScheduleType   ScheduleType
	ScheduledAt    *time.Time
	CronExpression *string
	Timezone       string

	Status jobstate.JobStatus

	Priority     int
	MaxRetries   int
	RetryDelayMs int
	RetryBackoff RetryBackoff
	TimeoutMs    int

	LastExecutedAt  *time.Time
	NextExecutionAt *time.Time

	TotalExecutions      int
	SuccessfulExecutions int
	FailedExecutions     int

	EndAt         *time.Time
	MaxExecutions *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReachedEndCondition reports whether the recurring job's termination
// conditions (spec §4.2 "post-attempt recurring advance") are satisfied as
// of now.
func (j *Job) ReachedEndCondition(now time.Time) bool {
	if j.EndAt != nil && !j.EndAt.After(now) {
		return true
	}
	if j.MaxExecutions != nil && j.TotalExecutions >= *j.MaxExecutions {
		return true
	}
	return false
}

// ExecutionError captures an attempt's failure detail (spec §3 Execution).
type ExecutionError struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Execution is a single attempt record (spec §3).
type Execution struct {
	ID    string
	JobID string

	Status jobstate.ExecutionStatus
	Attempt int

	StartedAt   *time.Time
	CompletedAt *time.Time
	DurationMs  *int64

	Result json.RawMessage
	Error  *ExecutionError

	IsRetry              bool
	PreviousExecutionID *string

	WorkerID string

	Input  json.RawMessage
	Output json.RawMessage

	CreatedAt time.Time
}

// JobLog is an append-only audit line (spec §3).
type JobLog struct {
	ID          string
	JobID       string
	ExecutionID *string
	Level       string
	Message     string
	Data        json.RawMessage
	Timestamp   time.Time
}

// Owner is the principal that owns Jobs (spec §3 "the user owner"; adapted
// from the teacher's dashboard-login User into a pure ownership record since
// authentication itself is out of scope).
type Owner struct {
	ID        string
	Username  string
	CreatedAt time.Time
}

// Page is a generic pagination envelope, adapted from the teacher's
// types.PaginationResult[T].
type Page[T any] struct {
	Items           []T
	TotalItems      int
	Page            int
	PageSize        int
	TotalPages      int
	HasNextPage     bool
	HasPreviousPage bool
}
