package notifier

import "sync"

// Memory records every event it receives, for test assertions.
type Memory struct {
	mu                  sync.Mutex
	Completed           []JobCompleted
	Retries             []JobRetry
	MaxRetriesExceededs []MaxRetriesExceeded
	Failed              []JobFailed
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) NotifyJobCompleted(e JobCompleted) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Completed = append(m.Completed, e)
}

func (m *Memory) NotifyJobRetry(e JobRetry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Retries = append(m.Retries, e)
}

func (m *Memory) NotifyMaxRetriesExceeded(e MaxRetriesExceeded) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MaxRetriesExceededs = append(m.MaxRetriesExceededs, e)
}

func (m *Memory) NotifyJobFailed(e JobFailed) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failed = append(m.Failed, e)
}
