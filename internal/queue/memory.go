package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type pendingItem struct {
	id           string
	jobID        string
	visibleAt    time.Time
	priority     int
	attemptsMade int
	enqueuedAt   time.Time
}

// Memory is a single-process ReadyQueue, used by planner/worker unit tests
// in place of RedisQueue.
type Memory struct {
	mu sync.Mutex

	pending    []pendingItem
	processing map[string]pendingItem
	repeatable map[string]pendingItem // keyed by jobID
}

func NewMemory() *Memory {
	return &Memory{
		processing: make(map[string]pendingItem),
		repeatable: make(map[string]pendingItem),
	}
}

func (m *Memory) Enqueue(_ context.Context, jobID string, priority int, attemptsMade int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, pendingItem{
		id: uuid.NewString(), jobID: jobID, visibleAt: time.Now(), priority: priority,
		attemptsMade: attemptsMade, enqueuedAt: time.Now(),
	})
	return nil
}

func (m *Memory) EnqueueDelayed(_ context.Context, jobID string, visibleAt time.Time, priority int, attemptsMade int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, pendingItem{
		id: uuid.NewString(), jobID: jobID, visibleAt: visibleAt, priority: priority,
		attemptsMade: attemptsMade, enqueuedAt: time.Now(),
	})
	return nil
}

func (m *Memory) RegisterRepeatable(_ context.Context, jobID string, nextFireAt time.Time, priority int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repeatable[jobID] = pendingItem{jobID: jobID, visibleAt: nextFireAt, priority: priority}
	return nil
}

func (m *Memory) RemoveRepeatable(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.repeatable, jobID)
	return nil
}

func (m *Memory) Pop(_ context.Context) (*Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for jobID, rep := range m.repeatable {
		if !rep.visibleAt.After(now) {
			delete(m.repeatable, jobID)
			m.pending = append(m.pending, pendingItem{
				id: uuid.NewString(), jobID: jobID, visibleAt: rep.visibleAt, priority: rep.priority,
				enqueuedAt: now,
			})
		}
	}

	var idx = -1
	sort.SliceStable(m.pending, func(i, j int) bool {
		return m.pending[i].priority > m.pending[j].priority
	})
	for i, item := range m.pending {
		if !item.visibleAt.After(now) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, nil
	}

	item := m.pending[idx]
	m.pending = append(m.pending[:idx], m.pending[idx+1:]...)
	m.processing[item.id] = item

	return &Envelope{
		JobID:         item.jobID,
		AttemptsMade:  item.attemptsMade,
		EnqueuedAt:    item.enqueuedAt,
		VisibleAt:     now,
		Priority:      item.priority,
		IdempotencyID: item.id,
	}, nil
}

func (m *Memory) Ack(_ context.Context, env *Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.processing, env.IdempotencyID)
	return nil
}

func (m *Memory) Nack(_ context.Context, env *Envelope, retryAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.processing, env.IdempotencyID)

	visibleAt := retryAt
	if visibleAt.IsZero() {
		visibleAt = time.Now()
	}
	m.pending = append(m.pending, pendingItem{
		id: uuid.NewString(), jobID: env.JobID, visibleAt: visibleAt, priority: env.Priority,
		attemptsMade: env.AttemptsMade, enqueuedAt: time.Now(),
	})
	return nil
}

// Len reports the number of not-yet-visible-or-popped pending items, for
// test assertions.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// RepeatableLen reports the number of active repeatable registrations, for
// test assertions.
func (m *Memory) RepeatableLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.repeatable)
}
