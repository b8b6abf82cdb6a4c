package lock

import (
	"context"
	"sync"
)

// InMemory is a single-process DistributedLockManager for tests: a plain
// mutex per lockID rather than a real cross-process primitive.
type InMemory struct {
	mu   sync.Mutex
	held map[int64]bool
}

func NewInMemory() *InMemory {
	return &InMemory{held: make(map[int64]bool)}
}

func (m *InMemory) Acquire(_ context.Context, lockID int64) error {
	for {
		m.mu.Lock()
		if !m.held[lockID] {
			m.held[lockID] = true
			m.mu.Unlock()
			return nil
		}
		m.mu.Unlock()
	}
}

func (m *InMemory) TryAcquire(_ context.Context, lockID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[lockID] {
		return false, nil
	}
	m.held[lockID] = true
	return true, nil
}

func (m *InMemory) Release(_ context.Context, lockID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, lockID)
	return nil
}
