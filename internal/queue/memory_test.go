package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_EnqueueAndPop(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "job-1", 0, 0))

	env, err := q.Pop(ctx)
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, "job-1", env.JobID)

	env2, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Nil(t, env2)
}

func TestMemory_DelayedNotVisibleUntilDue(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()

	require.NoError(t, q.EnqueueDelayed(ctx, "job-1", time.Now().Add(time.Hour), 0, 0))

	env, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Nil(t, env)
}

func TestMemory_PriorityOrdering(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "low", 0, 0))
	require.NoError(t, q.Enqueue(ctx, "high", 10, 0))

	env, err := q.Pop(ctx)
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, "high", env.JobID)
}

func TestMemory_NackRequeuesWithDelay(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "job-1", 0, 0))
	env, err := q.Pop(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Nack(ctx, env, time.Now().Add(time.Hour)))

	again, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Nil(t, again)
	assert.Equal(t, 1, q.Len())
}

func TestMemory_AckRemovesFromProcessing(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "job-1", 0, 0))
	env, err := q.Pop(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Ack(ctx, env))
	assert.Empty(t, q.processing)
}

func TestMemory_RepeatableFiresWhenDue(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()

	require.NoError(t, q.RegisterRepeatable(ctx, "cron-job", time.Now().Add(-time.Second), 0))

	env, err := q.Pop(ctx)
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, "cron-job", env.JobID)
}

func TestMemory_RemoveRepeatable(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()

	require.NoError(t, q.RegisterRepeatable(ctx, "cron-job", time.Now().Add(-time.Second), 0))
	require.NoError(t, q.RemoveRepeatable(ctx, "cron-job"))

	env, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Nil(t, env)
}
