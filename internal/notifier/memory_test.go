package notifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/RezaEskandarii/jobcore/internal/model"
)

func TestMemory_RecordsEachEventKind(t *testing.T) {
	m := NewMemory()
	job := &model.Job{ID: "job-1"}

	m.NotifyJobCompleted(JobCompleted{Job: job, DurationMs: 120})
	m.NotifyJobRetry(JobRetry{Job: job, Attempt: 1, MaxRetries: 3})
	m.NotifyMaxRetriesExceeded(MaxRetriesExceeded{Job: job, MaxRetries: 3})
	m.NotifyJobFailed(JobFailed{Job: job, Attempts: 4})

	assert.Len(t, m.Completed, 1)
	assert.Len(t, m.Retries, 1)
	assert.Len(t, m.MaxRetriesExceededs, 1)
	assert.Len(t, m.Failed, 1)
	assert.Equal(t, int64(120), m.Completed[0].DurationMs)
}
