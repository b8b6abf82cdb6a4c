// Package jobstate defines the Job and Execution status enums and the
// transition tables that govern the scheduling planner and worker pool.
// Modeled on the teacher's internal/state.ValidTransitions table, generalized
// to the five Job statuses and seven planner actions named in the spec.
package jobstate

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobActive    JobStatus = "active"
	JobPaused    JobStatus = "paused"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// Action is a planner-facing intent that moves a Job between statuses.
type Action string

const (
	ActionCreate      Action = "create"
	ActionTrigger     Action = "trigger"
	ActionPause       Action = "pause"
	ActionResume      Action = "resume"
	ActionReschedule  Action = "reschedule"
	ActionCancel      Action = "cancel"
	ActionComplete    Action = "complete"
	ActionFailPerm    Action = "fail"
)

type transition struct {
	from   JobStatus
	action Action
}

// jobTransitions models the table in spec §4.2. "create" has no from-state
// (handled separately by the planner). "trigger" on active is a self-loop
// that doesn't change status; reject actions are absent from this table and
// surface as IllegalStateTransition.
var jobTransitions = map[transition]JobStatus{
	{JobActive, ActionTrigger}:    JobActive,
	{JobActive, ActionPause}:      JobPaused,
	{JobActive, ActionReschedule}: JobActive,
	{JobActive, ActionCancel}:     JobCancelled,
	{JobActive, ActionComplete}:   JobCompleted,
	{JobActive, ActionFailPerm}:   JobFailed,

	{JobPaused, ActionResume}:      JobActive,
	{JobPaused, ActionReschedule}:  JobPaused,
	{JobPaused, ActionCancel}:      JobCancelled,

	{JobCompleted, ActionCancel}: JobCompleted,
	{JobFailed, ActionCancel}:    JobFailed,
	{JobCancelled, ActionCancel}: JobCancelled,
}

// Apply returns the resulting status of applying action to from, and whether
// the transition is legal. Cancel on an already-terminal job is idempotent
// (returns the same status, ok=true) per spec §4.2.
func Apply(from JobStatus, action Action) (JobStatus, bool) {
	to, ok := jobTransitions[transition{from, action}]
	return to, ok
}

// ExecutionStatus is the lifecycle state of a single attempt.
type ExecutionStatus string

const (
	ExecPending   ExecutionStatus = "pending"
	ExecRunning   ExecutionStatus = "running"
	ExecCompleted ExecutionStatus = "completed"
	ExecFailed    ExecutionStatus = "failed"
	ExecCancelled ExecutionStatus = "cancelled"
	ExecTimeout   ExecutionStatus = "timeout"
)

func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecCompleted, ExecFailed, ExecCancelled, ExecTimeout:
		return true
	default:
		return false
	}
}

var executionTransitions = map[ExecutionStatus]map[ExecutionStatus]bool{
	ExecPending: {ExecRunning: true},
	ExecRunning: {
		ExecCompleted: true,
		ExecFailed:    true,
		ExecCancelled: true,
		ExecTimeout:   true,
	},
}

// IsValidExecutionTransition reports whether moving an Execution from from to
// to is monotonic per spec §8 ("pending -> running -> terminal").
func IsValidExecutionTransition(from, to ExecutionStatus) bool {
	next, ok := executionTransitions[from]
	return ok && next[to]
}
