// Package planner implements the Scheduling Planner of spec §4.2: it writes
// Job.status and Job.next_execution_at for every user intent and for the
// recurring advance step (the worker's finalize step sets the completed or
// failed status of non-recurring jobs), translating user intents
// into store mutations and Ready Queue registrations. Grounded on the
// teacher's job manager layer (internal/gofire.job_managers.go), which
// likewise centralizes create/activate/deactivate against a CronJobStore and
// an EnqueuedJobStore — generalized here into the single queue abstraction
// and five-state machine the spec defines.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RezaEskandarii/jobcore/internal/calendar"
	"github.com/RezaEskandarii/jobcore/internal/clock"
	"github.com/RezaEskandarii/jobcore/internal/corerr"
	"github.com/RezaEskandarii/jobcore/internal/jobstate"
	"github.com/RezaEskandarii/jobcore/internal/model"
	"github.com/RezaEskandarii/jobcore/internal/queue"
	"github.com/RezaEskandarii/jobcore/internal/store"
)

// TriggerPriority is the elevated priority band a manual Trigger call
// enqueues at, per spec §4.2 ("highest tier").
const TriggerPriority = 100

// Planner implements create/trigger/pause/resume/reschedule/cancel/delete
// plus the worker pipeline's post-attempt recurring advance step.
type Planner struct {
	store    store.Store
	queue    queue.ReadyQueue
	calendar calendar.Engine
	clock    clock.Clock
	log      zerolog.Logger
}

func New(st store.Store, q queue.ReadyQueue, cal calendar.Engine, clk clock.Clock, log zerolog.Logger) *Planner {
	return &Planner{store: st, queue: q, calendar: cal, clock: clk, log: log.With().Str("component", "planner").Logger()}
}

// CreateInput is the caller-supplied shape of a new Job; fields the planner
// itself computes (ID, status, counters, timestamps) are excluded.
type CreateInput struct {
	OwnerID string

	Name        string
	Description string
	Tags        []string
	Metadata    map[string]any

	Type    model.JobType
	Payload []byte

	ScheduleType   model.ScheduleType
	ScheduledAt    *time.Time
	CronExpression *string
	Timezone       string

	Priority     int
	MaxRetries   int
	RetryDelayMs int
	RetryBackoff model.RetryBackoff
	TimeoutMs    int

	EndAt         *time.Time
	MaxExecutions *int
}

func (in *CreateInput) validate() error {
	var verrs corerr.ValidationErrors
	if in.OwnerID == "" {
		verrs.Add(fmt.Errorf("owner_id is required"))
	}
	if in.Name == "" {
		verrs.Add(fmt.Errorf("name is required"))
	}
	if !in.Type.Valid() {
		verrs.Add(fmt.Errorf("type %q is invalid", in.Type))
	}
	if !in.ScheduleType.Valid() {
		verrs.Add(fmt.Errorf("schedule_type %q is invalid", in.ScheduleType))
	}
	if in.ScheduleType == model.ScheduleScheduled && in.ScheduledAt == nil {
		verrs.Add(fmt.Errorf("scheduled_at is required for schedule_type=scheduled"))
	}
	if in.ScheduleType == model.ScheduleRecurring && (in.CronExpression == nil || *in.CronExpression == "") {
		verrs.Add(fmt.Errorf("cron_expression is required for schedule_type=recurring"))
	}
	if in.Priority < 0 || in.Priority > 10 {
		verrs.Add(fmt.Errorf("priority must be within 0..10"))
	}
	if in.MaxRetries < 0 || in.MaxRetries > 10 {
		verrs.Add(fmt.Errorf("max_retries must be within 0..10"))
	}
	if in.RetryBackoff != "" && !in.RetryBackoff.Valid() {
		verrs.Add(fmt.Errorf("retry_backoff %q is invalid", in.RetryBackoff))
	}
	if in.TimeoutMs != 0 && (in.TimeoutMs < 1000 || in.TimeoutMs > 3_600_000) {
		verrs.Add(fmt.Errorf("timeout_ms must be within 1000..3600000"))
	}
	return verrs.AsError()
}

// Create validates in, computes the initial next_execution_at, persists the
// Job row, and registers it with the Ready Queue (spec §4.2 Create).
func (p *Planner) Create(ctx context.Context, in CreateInput) (*model.Job, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := p.clock.Now()
	if in.Timezone == "" {
		in.Timezone = "UTC"
	}
	if in.RetryBackoff == "" {
		in.RetryBackoff = model.BackoffFixed
	}
	if in.TimeoutMs == 0 {
		in.TimeoutMs = 30_000
	}

	if in.ScheduleType == model.ScheduleScheduled && !in.ScheduledAt.After(now) {
		return nil, corerr.New(corerr.InvalidSchedule, "scheduled_at must be in the future")
	}
	if in.ScheduleType == model.ScheduleRecurring {
		if err := p.calendar.Validate(*in.CronExpression); err != nil {
			return nil, corerr.Wrap(corerr.InvalidSchedule, "invalid cron_expression", err)
		}
	}

	next, err := p.computeNext(in.ScheduleType, in.ScheduledAt, in.CronExpression, in.Timezone, now)
	if err != nil {
		return nil, err
	}

	job := &model.Job{
		ID:      uuid.NewString(),
		OwnerID: in.OwnerID,

		Name:        in.Name,
		Description: in.Description,
		Tags:        in.Tags,
		Metadata:    in.Metadata,

		Type:    in.Type,
		Payload: in.Payload,

		ScheduleType:   in.ScheduleType,
		ScheduledAt:    in.ScheduledAt,
		CronExpression: in.CronExpression,
		Timezone:       in.Timezone,

		Status: jobstate.JobActive,

		Priority:     in.Priority,
		MaxRetries:   in.MaxRetries,
		RetryDelayMs: in.RetryDelayMs,
		RetryBackoff: in.RetryBackoff,
		TimeoutMs:    in.TimeoutMs,

		NextExecutionAt: next,

		EndAt:         in.EndAt,
		MaxExecutions: in.MaxExecutions,

		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := p.store.Jobs().Create(ctx, job); err != nil {
		return nil, corerr.Wrap(corerr.StoreUnavailable, "create job", err)
	}

	if err := p.register(ctx, job); err != nil {
		return nil, err
	}

	p.logEvent(ctx, job.ID, nil, "created", nil)
	return job, nil
}

// computeNext implements §4.2's "for immediate, now; for scheduled,
// scheduled_at; for recurring, CalendarEngine.next(expr, zone, now)".
func (p *Planner) computeNext(scheduleType model.ScheduleType, scheduledAt *time.Time, cronExpr *string, zone string, now time.Time) (*time.Time, error) {
	switch scheduleType {
	case model.ScheduleImmediate:
		return &now, nil
	case model.ScheduleScheduled:
		return scheduledAt, nil
	case model.ScheduleRecurring:
		next, err := p.calendar.Next(*cronExpr, zone, now)
		if err != nil {
			return nil, corerr.Wrap(corerr.InvalidSchedule, "compute next fire", err)
		}
		return &next, nil
	default:
		return nil, corerr.New(corerr.InvalidSchedule, "unknown schedule_type")
	}
}

// register enqueues job with the Ready Queue per the rules Create and
// Resume/Reschedule share.
func (p *Planner) register(ctx context.Context, job *model.Job) error {
	switch job.ScheduleType {
	case model.ScheduleImmediate:
		if err := p.queue.Enqueue(ctx, job.ID, job.Priority, 0); err != nil {
			return corerr.Wrap(corerr.QueueUnavailable, "enqueue immediate job", err)
		}
	case model.ScheduleScheduled:
		if err := p.queue.EnqueueDelayed(ctx, job.ID, *job.ScheduledAt, job.Priority, 0); err != nil {
			return corerr.Wrap(corerr.QueueUnavailable, "enqueue delayed job", err)
		}
	case model.ScheduleRecurring:
		if err := p.queue.RegisterRepeatable(ctx, job.ID, *job.NextExecutionAt, job.Priority); err != nil {
			return corerr.Wrap(corerr.QueueUnavailable, "register repeatable job", err)
		}
	}
	return nil
}

// deregister removes job's repeatable registration (recurring jobs only),
// used by Pause, Cancel, Delete, and as the first half of Reschedule.
// Immediate and delayed one-shot envelopes already in the queue are not
// removed.
func (p *Planner) deregister(ctx context.Context, job *model.Job) error {
	if job.ScheduleType == model.ScheduleRecurring {
		if err := p.queue.RemoveRepeatable(ctx, job.ID); err != nil {
			return corerr.Wrap(corerr.QueueUnavailable, "remove repeatable registration", err)
		}
	}
	// One-shot (immediate/scheduled) envelopes already popped cannot be
	// un-popped; spec §5 "Pause/cancel ... does not abort the in-flight
	// executor" covers that case. Not-yet-popped one-shot envelopes stay
	// queued: the worker skips them while the job is not active, and runs
	// them if the job is active when they become visible (for example after
	// Resume, or after Reschedule of an active job).
	return nil
}

// Trigger enqueues a one-shot, elevated-priority attempt without touching
// next_execution_at (spec §4.2 Trigger). Allowed only on active jobs.
func (p *Planner) Trigger(ctx context.Context, jobID string) error {
	job, err := p.getActive(ctx, jobID)
	if err != nil {
		return err
	}

	if _, ok := jobstate.Apply(job.Status, jobstate.ActionTrigger); !ok {
		return corerr.New(corerr.IllegalStateTransition, fmt.Sprintf("cannot trigger job in status %q", job.Status))
	}

	if err := p.queue.Enqueue(ctx, job.ID, TriggerPriority, 0); err != nil {
		return corerr.Wrap(corerr.QueueUnavailable, "enqueue manual trigger", err)
	}
	p.logEvent(ctx, job.ID, nil, "manually triggered", nil)
	return nil
}

// Pause removes the job's repeatable registration and sets status=paused
// (spec §4.2 Pause); one-shot envelopes already queued are not removed.
func (p *Planner) Pause(ctx context.Context, jobID string) error {
	job, err := p.store.Jobs().Get(ctx, jobID)
	if err != nil {
		return corerr.Wrap(corerr.NotFound, "job not found", err)
	}

	if _, ok := jobstate.Apply(job.Status, jobstate.ActionPause); !ok {
		return corerr.New(corerr.IllegalStateTransition, fmt.Sprintf("cannot pause job in status %q", job.Status))
	}

	if err := p.deregister(ctx, job); err != nil {
		return err
	}
	ok, err := p.store.Jobs().CompareAndSetStatus(ctx, jobID, job.Status, jobstate.JobPaused)
	if err != nil {
		return corerr.Wrap(corerr.StoreUnavailable, "pause job", err)
	}
	if !ok {
		return corerr.New(corerr.IllegalStateTransition, "job status changed concurrently")
	}
	p.logEvent(ctx, job.ID, nil, "paused", nil)
	return nil
}

// Resume recomputes next_execution_at and re-registers with the queue using
// Create's rules, then sets status=active (spec §4.2 Resume).
func (p *Planner) Resume(ctx context.Context, jobID string) error {
	job, err := p.store.Jobs().Get(ctx, jobID)
	if err != nil {
		return corerr.Wrap(corerr.NotFound, "job not found", err)
	}

	if _, ok := jobstate.Apply(job.Status, jobstate.ActionResume); !ok {
		return corerr.New(corerr.IllegalStateTransition, fmt.Sprintf("cannot resume job in status %q", job.Status))
	}

	now := p.clock.Now()
	next, err := p.computeNext(job.ScheduleType, job.ScheduledAt, job.CronExpression, job.Timezone, now)
	if err != nil {
		return err
	}
	job.NextExecutionAt = next

	if err := p.register(ctx, job); err != nil {
		return err
	}
	if err := p.store.Jobs().SetNextExecutionAt(ctx, jobID, next); err != nil {
		return corerr.Wrap(corerr.StoreUnavailable, "set next_execution_at on resume", err)
	}
	ok, err := p.store.Jobs().CompareAndSetStatus(ctx, jobID, job.Status, jobstate.JobActive)
	if err != nil {
		return corerr.Wrap(corerr.StoreUnavailable, "resume job", err)
	}
	if !ok {
		return corerr.New(corerr.IllegalStateTransition, "job status changed concurrently")
	}
	p.logEvent(ctx, job.ID, nil, "resumed", nil)
	return nil
}

// RescheduleInput carries the new schedule; exactly one of the two forms
// must be set, switching schedule_type accordingly (spec §4.2 Reschedule).
type RescheduleInput struct {
	ScheduledAt    *time.Time
	CronExpression *string
	Timezone       string
}

func (p *Planner) Reschedule(ctx context.Context, jobID string, in RescheduleInput) error {
	job, err := p.store.Jobs().Get(ctx, jobID)
	if err != nil {
		return corerr.Wrap(corerr.NotFound, "job not found", err)
	}
	if _, ok := jobstate.Apply(job.Status, jobstate.ActionReschedule); !ok {
		return corerr.New(corerr.IllegalStateTransition, fmt.Sprintf("cannot reschedule job in status %q", job.Status))
	}

	switch {
	case in.ScheduledAt != nil:
		job.ScheduleType = model.ScheduleScheduled
		job.ScheduledAt = in.ScheduledAt
		job.CronExpression = nil
	case in.CronExpression != nil:
		if err := p.calendar.Validate(*in.CronExpression); err != nil {
			return corerr.Wrap(corerr.InvalidSchedule, "invalid cron_expression", err)
		}
		job.ScheduleType = model.ScheduleRecurring
		job.CronExpression = in.CronExpression
		job.ScheduledAt = nil
	default:
		return corerr.New(corerr.InvalidSchedule, "reschedule requires scheduled_at or cron_expression")
	}
	if in.Timezone != "" {
		job.Timezone = in.Timezone
	}

	now := p.clock.Now()
	next, err := p.computeNext(job.ScheduleType, job.ScheduledAt, job.CronExpression, job.Timezone, now)
	if err != nil {
		return err
	}

	if err := p.deregister(ctx, job); err != nil {
		return err
	}
	job.NextExecutionAt = next
	if job.Status == jobstate.JobActive {
		if err := p.register(ctx, job); err != nil {
			return err
		}
	}

	if err := p.store.Jobs().SetSchedule(ctx, jobID, job.ScheduleType, job.ScheduledAt, job.CronExpression, job.Timezone, next); err != nil {
		return corerr.Wrap(corerr.StoreUnavailable, "reschedule job", err)
	}
	p.logEvent(ctx, job.ID, nil, "rescheduled", nil)
	return nil
}

// Cancel removes the job's repeatable registration and sets
// status=cancelled; one-shot envelopes already queued are not removed.
// Idempotent on an already-terminal job (spec §4.2 table).
func (p *Planner) Cancel(ctx context.Context, jobID string) error {
	job, err := p.store.Jobs().Get(ctx, jobID)
	if err != nil {
		return corerr.Wrap(corerr.NotFound, "job not found", err)
	}

	to, ok := jobstate.Apply(job.Status, jobstate.ActionCancel)
	if !ok {
		return corerr.New(corerr.IllegalStateTransition, fmt.Sprintf("cannot cancel job in status %q", job.Status))
	}
	if job.Status.Terminal() {
		return nil // idempotent no-op
	}

	if err := p.deregister(ctx, job); err != nil {
		return err
	}
	ok2, err := p.store.Jobs().CompareAndSetStatus(ctx, jobID, job.Status, to)
	if err != nil {
		return corerr.Wrap(corerr.StoreUnavailable, "cancel job", err)
	}
	if !ok2 {
		return corerr.New(corerr.IllegalStateTransition, "job status changed concurrently")
	}
	p.logEvent(ctx, job.ID, nil, "cancelled", nil)
	return nil
}

// Delete performs Cancel then removes the persistent row, cascading
// executions and logs at the store layer (spec §4.2 Delete).
func (p *Planner) Delete(ctx context.Context, jobID string) error {
	if err := p.Cancel(ctx, jobID); err != nil {
		if kind, ok := corerr.KindOf(err); !ok || kind != corerr.IllegalStateTransition {
			return err
		}
	}
	if err := p.store.Jobs().Delete(ctx, jobID); err != nil {
		return corerr.Wrap(corerr.StoreUnavailable, "delete job", err)
	}
	return nil
}

// AdvanceRecurring implements the "post-attempt recurring advance" step:
// called by the worker pipeline after a recurring job's attempt reaches a
// terminal, non-retrying outcome. Computes the next fire, evaluates end
// conditions, and either re-registers the repeatable or completes the job.
func (p *Planner) AdvanceRecurring(ctx context.Context, job *model.Job) error {
	now := p.clock.Now()

	if job.ReachedEndCondition(now) {
		if err := p.store.Jobs().SetStatus(ctx, job.ID, jobstate.JobCompleted); err != nil {
			return corerr.Wrap(corerr.StoreUnavailable, "complete recurring job at end condition", err)
		}
		if err := p.store.Jobs().SetNextExecutionAt(ctx, job.ID, nil); err != nil {
			return corerr.Wrap(corerr.StoreUnavailable, "clear next_execution_at", err)
		}
		if err := p.queue.RemoveRepeatable(ctx, job.ID); err != nil {
			return corerr.Wrap(corerr.QueueUnavailable, "remove repeatable registration at end condition", err)
		}
		p.logEvent(ctx, job.ID, nil, "recurring job reached end condition", nil)
		return nil
	}

	next, err := p.calendar.Next(*job.CronExpression, job.Timezone, now)
	if err != nil {
		return corerr.Wrap(corerr.InvalidSchedule, "compute next recurring fire", err)
	}
	if err := p.store.Jobs().SetNextExecutionAt(ctx, job.ID, &next); err != nil {
		return corerr.Wrap(corerr.StoreUnavailable, "advance next_execution_at", err)
	}
	if job.Status == jobstate.JobActive {
		if err := p.queue.RegisterRepeatable(ctx, job.ID, next, job.Priority); err != nil {
			return corerr.Wrap(corerr.QueueUnavailable, "re-register repeatable job", err)
		}
	}
	return nil
}

func (p *Planner) getActive(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := p.store.Jobs().Get(ctx, jobID)
	if err != nil {
		return nil, corerr.Wrap(corerr.NotFound, "job not found", err)
	}
	return job, nil
}

func (p *Planner) logEvent(ctx context.Context, jobID string, executionID *string, message string, data []byte) {
	entry := &model.JobLog{
		ID:          uuid.NewString(),
		JobID:       jobID,
		ExecutionID: executionID,
		Level:       "info",
		Message:     message,
		Data:        data,
		Timestamp:   p.clock.Now(),
	}
	if err := p.store.Logs().Append(ctx, entry); err != nil {
		p.log.Warn().Err(err).Str("job_id", jobID).Msg("planner: append log failed")
	}
}
