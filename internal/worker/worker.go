// Package worker implements the Worker Pool & Execution Lifecycle of spec
// §4.4: bounded concurrency via golang.org/x/sync/semaphore, a global
// dispatch rate cap via golang.org/x/time/rate, and the deterministic
// per-attempt pipeline (open Execution, dispatch executor with deadline,
// finalize outcome, decide retry). Grounded on the teacher's
// enqueueJobsManager.Start/processDueJobs/handleJob loop (semaphore +
// WaitGroup fan-out over popped jobs), generalized from its two-state
// succeeded/failed result to the spec's full retry/backoff/recurring-advance
// decision tree.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/RezaEskandarii/jobcore/internal/clock"
	"github.com/RezaEskandarii/jobcore/internal/jobstate"
	"github.com/RezaEskandarii/jobcore/internal/lock"
	"github.com/RezaEskandarii/jobcore/internal/model"
	"github.com/RezaEskandarii/jobcore/internal/notifier"
	"github.com/RezaEskandarii/jobcore/internal/planner"
	"github.com/RezaEskandarii/jobcore/internal/queue"
	"github.com/RezaEskandarii/jobcore/internal/store"

	"github.com/RezaEskandarii/jobcore/executor"
)

// Config holds the per-process tunables spec §4.4 defaults (C=5 concurrency,
// 100 dispatches per 60s).
type Config struct {
	WorkerID    string
	Concurrency int64
	RateLimit   int
	RateWindow  time.Duration
	PollIdle    time.Duration
}

func (c *Config) setDefaults() {
	if c.WorkerID == "" {
		c.WorkerID = uuid.NewString()
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 100
	}
	if c.RateWindow <= 0 {
		c.RateWindow = 60 * time.Second
	}
	if c.PollIdle <= 0 {
		c.PollIdle = 250 * time.Millisecond
	}
}

// Pool is one worker process: a bounded-concurrency loop popping envelopes
// from the Ready Queue and running them through the attempt pipeline.
type Pool struct {
	cfg Config

	store     store.Store
	queue     queue.ReadyQueue
	executors executor.Registry
	notify    notifier.Notifier
	planner   *planner.Planner
	lock      lock.DistributedLockManager
	clock     clock.Clock
	log       zerolog.Logger

	sem     *semaphore.Weighted
	limiter *rate.Limiter

	inFlightMu sync.Mutex
	inFlight   map[string]bool
}

func New(cfg Config, st store.Store, q queue.ReadyQueue, executors executor.Registry, notify notifier.Notifier, pl *planner.Planner, lk lock.DistributedLockManager, clk clock.Clock, log zerolog.Logger) *Pool {
	cfg.setDefaults()
	return &Pool{
		cfg:       cfg,
		store:     st,
		queue:     q,
		executors: executors,
		notify:    notify,
		planner:   pl,
		lock:      lk,
		clock:     clk,
		log:       log.With().Str("component", "worker").Str("worker_id", cfg.WorkerID).Logger(),
		sem:       semaphore.NewWeighted(cfg.Concurrency),
		limiter:   rate.NewLimiter(rate.Every(cfg.RateWindow/time.Duration(cfg.RateLimit)), cfg.RateLimit),
		inFlight:  make(map[string]bool),
	}
}

// Run claims the single-active-dispatcher role (spec §1's "no leader
// election across schedulers" Non-goal: one instance suffices, enforced
// with a Postgres advisory lock), then pops and dispatches envelopes until
// ctx is cancelled, then waits up to grace for in-flight attempts to drain
// (spec §5 "wait a bounded grace period... then force-exit"), mirroring the
// teacher's ctx.Done() -> wg.Wait() -> return shutdown shape.
func (p *Pool) Run(ctx context.Context, grace time.Duration) error {
	if err := p.claimDispatcherRole(ctx); err != nil {
		return err
	}
	defer func() {
		if err := p.lock.Release(context.Background(), lock.PlannerLockID); err != nil {
			p.log.Error().Err(err).Msg("worker pool: release dispatcher lock failed")
		}
	}()

	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(grace):
				p.log.Warn().Msg("worker pool: grace period elapsed with attempts still in flight")
			}
			return ctx.Err()
		default:
		}

		if err := p.limiter.Wait(ctx); err != nil {
			continue // ctx cancelled mid-wait; loop will exit on next select
		}

		env, err := p.queue.Pop(ctx)
		if err != nil {
			p.log.Error().Err(err).Msg("worker pool: pop failed")
			time.Sleep(p.cfg.PollIdle)
			continue
		}
		if env == nil {
			time.Sleep(p.cfg.PollIdle)
			continue
		}

		if err := p.sem.Acquire(ctx, 1); err != nil {
			return ctx.Err()
		}
		wg.Add(1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					p.log.Error().Interface("panic", r).Str("job_id", env.JobID).Msg("worker pool: recovered panic in attempt")
				}
				p.sem.Release(1)
				wg.Done()
			}()
			p.handleEnvelope(ctx, env)
		}()
	}
}

// claimDispatcherRole blocks, polling at PollIdle, until this process wins
// the dispatcher advisory lock or ctx is cancelled. Only the winner sweeps
// and pops the Ready Queue, so redundant worker processes never race on the
// same envelope.
func (p *Pool) claimDispatcherRole(ctx context.Context) error {
	for {
		ok, err := p.lock.TryAcquire(ctx, lock.PlannerLockID)
		if err != nil {
			p.log.Error().Err(err).Msg("worker pool: try-acquire dispatcher lock failed")
		} else if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.PollIdle):
		}
	}
}

const triggerPriority = planner.TriggerPriority

func (p *Pool) handleEnvelope(ctx context.Context, env *queue.Envelope) {
	job, err := p.store.Jobs().Get(ctx, env.JobID)
	if err != nil {
		p.log.Warn().Err(err).Str("job_id", env.JobID).Msg("worker: job vanished, acking stale envelope")
		_ = p.queue.Ack(ctx, env)
		return
	}

	isManualTrigger := env.Priority >= triggerPriority

	if job.Status != jobstate.JobActive && !isManualTrigger {
		p.logAppend(ctx, job.ID, nil, "skipped: job not active")
		_ = p.queue.Ack(ctx, env)
		return
	}

	if job.ScheduleType == model.ScheduleRecurring && !isManualTrigger {
		p.inFlightMu.Lock()
		if p.inFlight[job.ID] {
			p.inFlightMu.Unlock()
			p.logAppend(ctx, job.ID, nil, "skipped_overlap")
			_ = p.queue.Ack(ctx, env)
			return
		}
		p.inFlight[job.ID] = true
		p.inFlightMu.Unlock()
		defer func() {
			p.inFlightMu.Lock()
			delete(p.inFlight, job.ID)
			p.inFlightMu.Unlock()
		}()
	}

	p.runAttempt(ctx, job, env)
}

// transitionExecution moves execution.Status to to, guarding the move
// through jobstate's monotonicity table (spec §8: "an Execution's status is
// monotonic: pending -> running -> terminal"). A rejected transition is
// logged, not fatal — the pipeline never constructs one in practice, but the
// guard is what makes that claim checked rather than assumed.
func (p *Pool) transitionExecution(execution *model.Execution, to jobstate.ExecutionStatus) {
	if !jobstate.IsValidExecutionTransition(execution.Status, to) {
		p.log.Error().Str("execution_id", execution.ID).Str("from", string(execution.Status)).Str("to", string(to)).Msg("worker: rejected non-monotonic execution transition")
		return
	}
	execution.Status = to
}

func (p *Pool) runAttempt(ctx context.Context, job *model.Job, env *queue.Envelope) {
	attempt := env.AttemptsMade + 1
	startedAt := p.clock.Now()

	execution := &model.Execution{
		ID:        uuid.NewString(),
		JobID:     job.ID,
		Status:    jobstate.ExecPending,
		Attempt:   attempt,
		StartedAt: &startedAt,
		WorkerID:  p.cfg.WorkerID,
		Input:     job.Payload,
		IsRetry:   attempt > 1,
		CreatedAt: startedAt,
	}
	p.transitionExecution(execution, jobstate.ExecRunning)
	if attempt > 1 {
		if prev, err := p.latestExecutionID(ctx, job.ID); err == nil {
			execution.PreviousExecutionID = prev
		}
	}

	if err := p.store.Executions().Create(ctx, execution); err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("worker: open execution row failed")
		// Infra error opening the attempt record: nack rather than ack, so
		// the envelope is re-queued instead of being silently dropped
		// (spec §7). The zero retryAt makes it visible again at once; no
		// stall delay is applied.
		_ = p.queue.Nack(ctx, env, time.Time{})
		return
	}
	p.logAppend(ctx, job.ID, &execution.ID, "started")

	timeout := time.Duration(job.TimeoutMs) * time.Millisecond
	deadline := startedAt.Add(timeout)
	// context cancellation always runs against real wall-clock time, so the
	// timer itself must be relative (WithTimeout), not derived from p.clock
	// (which callers may fake for scheduling tests); deadline above is kept
	// only as the value handed to the executor.
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ex, ok := p.executors.Lookup(string(job.Type))
	var result executor.Result
	var runErr error
	if !ok {
		runErr = &executor.Error{Message: fmt.Sprintf("no executor registered for job type %q", job.Type)}
	} else {
		result, runErr = ex.Execute(attemptCtx, job.Payload, deadline)
	}

	completedAt := p.clock.Now()
	durationMs := completedAt.Sub(startedAt).Milliseconds()

	execution.CompletedAt = &completedAt
	execution.DurationMs = &durationMs

	timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
	success := runErr == nil && !timedOut
	if success {
		p.transitionExecution(execution, jobstate.ExecCompleted)
		execution.Result = result.Data
		execution.Output = result.Data
	} else if timedOut {
		p.transitionExecution(execution, jobstate.ExecTimeout)
		execution.Error = &model.ExecutionError{Message: "attempt exceeded timeout_ms"}
	} else {
		p.transitionExecution(execution, jobstate.ExecFailed)
		var adapterErr *executor.Error
		if errors.As(runErr, &adapterErr) {
			execution.Error = &model.ExecutionError{Message: adapterErr.Message, Stack: adapterErr.Stack}
		} else {
			execution.Error = &model.ExecutionError{Message: runErr.Error()}
		}
	}

	if success {
		p.logAppend(ctx, job.ID, &execution.ID, fmt.Sprintf("completed in %dms", durationMs))
	} else {
		p.logAppend(ctx, job.ID, &execution.ID, fmt.Sprintf("failed: %s", execution.Error.Message))
	}

	key := fmt.Sprintf("%s:%s:finalize", job.ID, execution.ID)

	if success {
		p.finalizeSuccess(ctx, job, execution, env, key)
		return
	}
	p.finalizeFailure(ctx, job, execution, env, attempt, key)
}

func (p *Pool) finalizeSuccess(ctx context.Context, job *model.Job, execution *model.Execution, env *queue.Envelope, key string) {
	var newStatus *jobstate.JobStatus
	clearNext := false
	if job.ScheduleType != model.ScheduleRecurring {
		s := jobstate.JobCompleted
		newStatus = &s
		clearNext = true
	}

	applied, err := p.store.FinalizeAttempt(ctx, store.FinalizeInput{
		Execution:      execution,
		JobID:          job.ID,
		Success:        true,
		LastExecutedAt: *execution.CompletedAt,
		NewJobStatus:   newStatus,
		ClearNext:      clearNext,
		IdempotencyKey: key,
	})
	if err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("worker: finalize success failed")
		// Infra error finalizing: nack so the envelope is re-queued, visible
		// again at once, instead of dropping an outcome that was never
		// recorded.
		_ = p.queue.Nack(ctx, env, time.Time{})
		return
	}
	_ = p.queue.Ack(ctx, env)

	if !applied {
		return // idempotent replay of an already-finalized attempt
	}

	if job.ScheduleType == model.ScheduleRecurring {
		p.advanceRecurring(ctx, job.ID)
	}

	p.notify.NotifyJobCompleted(notifier.JobCompleted{Job: job, Execution: execution, DurationMs: *execution.DurationMs})
}

func (p *Pool) finalizeFailure(ctx context.Context, job *model.Job, execution *model.Execution, env *queue.Envelope, attempt int, key string) {
	max := job.MaxRetries
	isLast := attempt >= max+1

	if !isLast {
		applied, err := p.store.FinalizeAttempt(ctx, store.FinalizeInput{
			Execution:      execution,
			JobID:          job.ID,
			Success:        false,
			LastExecutedAt: *execution.CompletedAt,
			IdempotencyKey: key,
		})
		if err != nil {
			p.log.Error().Err(err).Str("job_id", job.ID).Msg("worker: finalize retry-pending failure failed")
			_ = p.queue.Nack(ctx, env, time.Time{})
			return
		}
		_ = p.queue.Ack(ctx, env)

		if applied {
			delayMs := retryDelayMs(job.RetryDelayMs, job.RetryBackoff, attempt)
			retryAt := execution.CompletedAt.Add(time.Duration(delayMs) * time.Millisecond)
			if err := p.queue.EnqueueDelayed(ctx, job.ID, retryAt, job.Priority, attempt); err != nil {
				p.log.Error().Err(err).Str("job_id", job.ID).Msg("worker: re-enqueue retry failed")
			}
			p.notify.NotifyJobRetry(notifier.JobRetry{Job: job, Attempt: attempt, MaxRetries: max, ErrorMessage: execution.Error.Message})
		}
		return
	}

	var newStatus *jobstate.JobStatus
	if job.ScheduleType != model.ScheduleRecurring {
		s := jobstate.JobFailed
		newStatus = &s
	}

	applied, err := p.store.FinalizeAttempt(ctx, store.FinalizeInput{
		Execution:      execution,
		JobID:          job.ID,
		Success:        false,
		LastExecutedAt: *execution.CompletedAt,
		NewJobStatus:   newStatus,
		IdempotencyKey: key,
	})
	if err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("worker: finalize exhausted-retries failure failed")
		_ = p.queue.Nack(ctx, env, time.Time{})
		return
	}
	_ = p.queue.Ack(ctx, env)

	if applied {
		if job.ScheduleType == model.ScheduleRecurring {
			p.advanceRecurring(ctx, job.ID)
		}
		p.notify.NotifyMaxRetriesExceeded(notifier.MaxRetriesExceeded{Job: job, MaxRetries: max, LastError: execution.Error.Message})
		if job.ScheduleType != model.ScheduleRecurring {
			p.notify.NotifyJobFailed(notifier.JobFailed{Job: job, Execution: execution, Error: execution.Error.Message, Attempts: attempt})
		}
	}
}

// advanceRecurring re-fetches job (to see finalize's counter update) before
// handing off to the planner's end-condition/next-fire computation.
func (p *Pool) advanceRecurring(ctx context.Context, jobID string) {
	updated, err := p.store.Jobs().Get(ctx, jobID)
	if err != nil {
		p.log.Error().Err(err).Str("job_id", jobID).Msg("worker: refetch job for recurring advance failed")
		return
	}
	if err := p.planner.AdvanceRecurring(ctx, updated); err != nil {
		p.log.Error().Err(err).Str("job_id", jobID).Msg("worker: advance recurring job failed")
	}
}

func (p *Pool) latestExecutionID(ctx context.Context, jobID string) (*string, error) {
	page, err := p.store.Executions().ListByJob(ctx, jobID, 1, 1)
	if err != nil || len(page.Items) == 0 {
		return nil, fmt.Errorf("no prior execution for job %s", jobID)
	}
	id := page.Items[0].ID
	return &id, nil
}

func (p *Pool) logAppend(ctx context.Context, jobID string, executionID *string, message string) {
	entry := &model.JobLog{
		ID:          uuid.NewString(),
		JobID:       jobID,
		ExecutionID: executionID,
		Level:       "info",
		Message:     message,
		Timestamp:   p.clock.Now(),
	}
	if err := p.store.Logs().Append(ctx, entry); err != nil {
		p.log.Warn().Err(err).Str("job_id", jobID).Msg("worker: append log failed")
	}
}

// retryDelayMs implements spec §4.4's backoff formula:
// retry_delay_ms × (exponential ? 2^(attempt-1) : 1).
func retryDelayMs(base int, backoff model.RetryBackoff, attempt int) int {
	if backoff != model.BackoffExponential {
		return base
	}
	multiplier := 1 << (attempt - 1)
	return base * multiplier
}
