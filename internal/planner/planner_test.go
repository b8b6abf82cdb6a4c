package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RezaEskandarii/jobcore/internal/calendar"
	"github.com/RezaEskandarii/jobcore/internal/clock"
	"github.com/RezaEskandarii/jobcore/internal/corerr"
	"github.com/RezaEskandarii/jobcore/internal/jobstate"
	"github.com/RezaEskandarii/jobcore/internal/model"
	"github.com/RezaEskandarii/jobcore/internal/queue"
	"github.com/RezaEskandarii/jobcore/internal/store/storetest"

	"github.com/rs/zerolog"
)

func newPlanner() (*Planner, *storetest.Store, *queue.Memory, *clock.Fake) {
	st := storetest.New()
	q := queue.NewMemory()
	clk := clock.NewFake(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	return New(st, q, calendar.New(), clk, zerolog.Nop()), st, q, clk
}

func TestPlanner_Create_Immediate(t *testing.T) {
	p, _, q, clk := newPlanner()
	ctx := context.Background()

	job, err := p.Create(ctx, CreateInput{
		OwnerID: "owner-1", Name: "job", Type: model.JobTypeHTTP,
		ScheduleType: model.ScheduleImmediate,
	})
	require.NoError(t, err)
	assert.Equal(t, clk.Now(), *job.NextExecutionAt)
	assert.Equal(t, jobstate.JobActive, job.Status)
	assert.Equal(t, 1, q.Len())
}

func TestPlanner_Create_ScheduledInPast_Rejected(t *testing.T) {
	p, _, _, clk := newPlanner()
	ctx := context.Background()

	past := clk.Now().Add(-time.Hour)
	_, err := p.Create(ctx, CreateInput{
		OwnerID: "owner-1", Name: "job", Type: model.JobTypeHTTP,
		ScheduleType: model.ScheduleScheduled, ScheduledAt: &past,
	})
	require.Error(t, err)
	kind, ok := corerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, corerr.InvalidSchedule, kind)
}

func TestPlanner_Create_Recurring_RegistersRepeatable(t *testing.T) {
	p, _, q, _ := newPlanner()
	ctx := context.Background()

	expr := "* * * * *" // every minute, 5-field expression
	job, err := p.Create(ctx, CreateInput{
		OwnerID: "owner-1", Name: "job", Type: model.JobTypeHTTP,
		ScheduleType: model.ScheduleRecurring, CronExpression: &expr, Timezone: "UTC",
	})
	require.NoError(t, err)
	require.NotNil(t, job.NextExecutionAt)
	assert.Equal(t, 1, q.RepeatableLen())
}

func TestPlanner_Trigger_EnqueuesAtElevatedPriority(t *testing.T) {
	p, _, q, _ := newPlanner()
	ctx := context.Background()

	job, err := p.Create(ctx, CreateInput{
		OwnerID: "owner-1", Name: "job", Type: model.JobTypeHTTP,
		ScheduleType: model.ScheduleImmediate,
	})
	require.NoError(t, err)

	require.NoError(t, p.Trigger(ctx, job.ID))

	// The manual trigger's elevated priority sorts ahead of the job's own
	// create-time envelope, so it pops first.
	env, err := q.Pop(ctx)
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, TriggerPriority, env.Priority)

	env2, err := q.Pop(ctx)
	require.NoError(t, err)
	require.NotNil(t, env2)
	assert.Equal(t, job.Priority, env2.Priority)
}

func TestPlanner_PauseThenResume(t *testing.T) {
	p, st, q, _ := newPlanner()
	ctx := context.Background()

	expr := "* * * * *"
	job, err := p.Create(ctx, CreateInput{
		OwnerID: "owner-1", Name: "job", Type: model.JobTypeHTTP,
		ScheduleType: model.ScheduleRecurring, CronExpression: &expr, Timezone: "UTC",
	})
	require.NoError(t, err)

	require.NoError(t, p.Pause(ctx, job.ID))
	got, err := st.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobstate.JobPaused, got.Status)
	assert.Equal(t, 0, q.RepeatableLen())

	require.NoError(t, p.Resume(ctx, job.ID))
	got, err = st.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobstate.JobActive, got.Status)
	assert.Equal(t, 1, q.RepeatableLen())
}

func TestPlanner_CancelIsIdempotent(t *testing.T) {
	p, st, _, _ := newPlanner()
	ctx := context.Background()

	job, err := p.Create(ctx, CreateInput{
		OwnerID: "owner-1", Name: "job", Type: model.JobTypeHTTP,
		ScheduleType: model.ScheduleImmediate,
	})
	require.NoError(t, err)

	require.NoError(t, p.Cancel(ctx, job.ID))
	require.NoError(t, p.Cancel(ctx, job.ID)) // second call on an already-terminal job is a no-op

	got, err := st.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobstate.JobCancelled, got.Status)
}

func TestPlanner_AdvanceRecurring_ReachedEndCondition_Completes(t *testing.T) {
	p, st, q, clk := newPlanner()
	ctx := context.Background()

	expr := "* * * * *"
	endAt := clk.Now().Add(30 * time.Second)
	job, err := p.Create(ctx, CreateInput{
		OwnerID: "owner-1", Name: "job", Type: model.JobTypeHTTP,
		ScheduleType: model.ScheduleRecurring, CronExpression: &expr, Timezone: "UTC",
		EndAt: &endAt,
	})
	require.NoError(t, err)

	clk.Advance(time.Minute)
	got, err := st.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	require.NoError(t, p.AdvanceRecurring(ctx, got))

	got, err = st.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobstate.JobCompleted, got.Status)
	assert.Nil(t, got.NextExecutionAt)
	assert.Equal(t, 0, q.RepeatableLen())
}

func TestPlanner_AdvanceRecurring_ReRegistersNextFire(t *testing.T) {
	p, st, q, clk := newPlanner()
	ctx := context.Background()

	expr := "* * * * *"
	job, err := p.Create(ctx, CreateInput{
		OwnerID: "owner-1", Name: "job", Type: model.JobTypeHTTP,
		ScheduleType: model.ScheduleRecurring, CronExpression: &expr, Timezone: "UTC",
	})
	require.NoError(t, err)
	firstNext := *job.NextExecutionAt

	clk.Advance(time.Minute)
	got, err := st.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	require.NoError(t, p.AdvanceRecurring(ctx, got))

	got, err = st.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobstate.JobActive, got.Status)
	require.NotNil(t, got.NextExecutionAt)
	assert.True(t, got.NextExecutionAt.After(firstNext))
	assert.Equal(t, 1, q.RepeatableLen())
}
