package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RezaEskandarii/jobcore/internal/calendar"
	"github.com/RezaEskandarii/jobcore/internal/clock"
	"github.com/RezaEskandarii/jobcore/internal/jobstate"
	"github.com/RezaEskandarii/jobcore/internal/lock"
	"github.com/RezaEskandarii/jobcore/internal/model"
	"github.com/RezaEskandarii/jobcore/internal/notifier"
	"github.com/RezaEskandarii/jobcore/internal/planner"
	"github.com/RezaEskandarii/jobcore/internal/queue"
	"github.com/RezaEskandarii/jobcore/internal/store/storetest"

	"github.com/RezaEskandarii/jobcore/executor"

	"github.com/rs/zerolog"
)

// scriptedExecutor returns canned results/errors in sequence, one per call,
// for driving the literal worker-lifecycle scenarios.
type scriptedExecutor struct {
	mu      sync.Mutex
	results []executor.Result
	errs    []error
	sleep   time.Duration
	calls   int
}

func (s *scriptedExecutor) Execute(ctx context.Context, _ json.RawMessage, _ time.Time) (executor.Result, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	s.mu.Unlock()

	if s.sleep > 0 {
		select {
		case <-time.After(s.sleep):
		case <-ctx.Done():
			return executor.Result{}, ctx.Err()
		}
	}

	if i < len(s.errs) && s.errs[i] != nil {
		return executor.Result{}, s.errs[i]
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return executor.Result{}, nil
}

type harness struct {
	st    *storetest.Store
	q     *queue.Memory
	notif *notifier.Memory
	clk   *clock.Fake
	pl    *planner.Planner
	pool  *Pool
}

func newHarness(t *testing.T, ex executor.JobTypeExecutor, jobType model.JobType) *harness {
	t.Helper()

	st := storetest.New()
	q := queue.NewMemory()
	fakeClock := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	cal := calendar.New()
	log := zerolog.Nop()

	pl := planner.New(st, q, cal, fakeClock, log)
	notif := notifier.NewMemory()
	registry := executor.Registry{string(jobType): ex}
	pool := New(Config{WorkerID: "test-worker", Concurrency: 2}, st, q, registry, notif, pl, lock.NewInMemory(), fakeClock, log)

	return &harness{st: st, q: q, notif: notif, clk: fakeClock, pl: pl, pool: pool}
}

func (h *harness) popAndHandleOnce(ctx context.Context) bool {
	env, err := h.q.Pop(ctx)
	if err != nil || env == nil {
		return false
	}
	h.pool.handleEnvelope(ctx, env)
	return true
}

func TestWorker_ImmediateSuccess(t *testing.T) {
	ex := &scriptedExecutor{results: []executor.Result{{Data: json.RawMessage(`{"ok":true}`)}}}
	h := newHarness(t, ex, model.JobTypeHTTP)
	ctx := context.Background()

	job, err := h.pl.Create(ctx, planner.CreateInput{
		OwnerID: "owner-1", Name: "job", Type: model.JobTypeHTTP,
		ScheduleType: model.ScheduleImmediate, TimeoutMs: 5000,
	})
	require.NoError(t, err)

	require.True(t, h.popAndHandleOnce(ctx))

	got, err := h.st.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobstate.JobCompleted, got.Status)
	assert.Equal(t, 1, got.SuccessfulExecutions)
	assert.Len(t, h.notif.Completed, 1)
}

func TestWorker_RetryThenSuccess(t *testing.T) {
	ex := &scriptedExecutor{
		errs:    []error{&executor.Error{Message: "server returned 500"}},
		results: []executor.Result{{}, {Data: json.RawMessage(`{"ok":true}`)}},
	}
	h := newHarness(t, ex, model.JobTypeHTTP)
	ctx := context.Background()

	job, err := h.pl.Create(ctx, planner.CreateInput{
		OwnerID: "owner-1", Name: "job", Type: model.JobTypeHTTP,
		ScheduleType: model.ScheduleImmediate, TimeoutMs: 5000,
		MaxRetries: 2, RetryDelayMs: 5000, RetryBackoff: model.BackoffExponential,
	})
	require.NoError(t, err)

	require.True(t, h.popAndHandleOnce(ctx)) // attempt 1: fails
	got, _ := h.st.Jobs().Get(ctx, job.ID)
	assert.Equal(t, jobstate.JobActive, got.Status)
	assert.Equal(t, 1, got.FailedExecutions)
	assert.Len(t, h.notif.Retries, 1)

	h.clk.Advance(6 * time.Second)
	require.True(t, h.popAndHandleOnce(ctx)) // attempt 2: succeeds

	got, _ = h.st.Jobs().Get(ctx, job.ID)
	assert.Equal(t, jobstate.JobCompleted, got.Status)
	assert.Equal(t, 1, got.SuccessfulExecutions)
	assert.Equal(t, 1, got.FailedExecutions)
}

func TestWorker_ExhaustedRetries(t *testing.T) {
	failure := &executor.Error{Message: "boom"}
	ex := &scriptedExecutor{errs: []error{failure, failure, failure}}
	h := newHarness(t, ex, model.JobTypeHTTP)
	ctx := context.Background()

	job, err := h.pl.Create(ctx, planner.CreateInput{
		OwnerID: "owner-1", Name: "job", Type: model.JobTypeHTTP,
		ScheduleType: model.ScheduleImmediate, TimeoutMs: 5000,
		MaxRetries: 2, RetryDelayMs: 5000, RetryBackoff: model.BackoffExponential,
	})
	require.NoError(t, err)

	require.True(t, h.popAndHandleOnce(ctx))
	h.clk.Advance(6 * time.Second)
	require.True(t, h.popAndHandleOnce(ctx))
	h.clk.Advance(11 * time.Second)
	require.True(t, h.popAndHandleOnce(ctx))

	got, err := h.st.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobstate.JobFailed, got.Status)
	assert.Equal(t, 3, got.FailedExecutions)
	assert.Len(t, h.notif.MaxRetriesExceededs, 1)
}

func TestWorker_TimeoutTreatedAsFailure(t *testing.T) {
	ex := &scriptedExecutor{sleep: 1200 * time.Millisecond}
	h := newHarness(t, ex, model.JobTypeHTTP)
	ctx := context.Background()

	job, err := h.pl.Create(ctx, planner.CreateInput{
		OwnerID: "owner-1", Name: "job", Type: model.JobTypeHTTP,
		ScheduleType: model.ScheduleImmediate, TimeoutMs: 1000,
	})
	require.NoError(t, err)

	require.True(t, h.popAndHandleOnce(ctx))

	got, err := h.st.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobstate.JobFailed, got.Status)
	assert.Equal(t, 1, got.FailedExecutions)

	page, err := h.st.Executions().ListByJob(ctx, job.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, jobstate.ExecTimeout, page.Items[0].Status)
}
