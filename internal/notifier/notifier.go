// Package notifier fans out the worker pipeline's four trigger-point events
// (spec's §4.5) to a best-effort transport. A notification failure must
// never alter job or execution state, so every Notifier method swallows its
// own transport error after logging it rather than returning it upstream.
package notifier

import (
	"time"

	"github.com/RezaEskandarii/jobcore/internal/model"
)

// JobCompleted is emitted when a non-recurring job reaches status=completed
// or a recurring job's fire succeeds.
type JobCompleted struct {
	Job        *model.Job
	Execution  *model.Execution
	DurationMs int64
}

// JobRetry is emitted when a failed attempt is re-enqueued rather than being
// the job's last attempt.
type JobRetry struct {
	Job          *model.Job
	Attempt      int
	MaxRetries   int
	ErrorMessage string
}

// MaxRetriesExceeded is emitted once, when the last allowed attempt also
// fails.
type MaxRetriesExceeded struct {
	Job        *model.Job
	MaxRetries int
	LastError  string
}

// JobFailed is emitted alongside MaxRetriesExceeded for non-recurring jobs
// whose terminal status becomes failed, carrying the full attempt count.
type JobFailed struct {
	Job       *model.Job
	Execution *model.Execution
	Error     string
	Attempts  int
}

// Notifier is the fan-out surface the worker pipeline calls at its four
// trigger points. Implementations must not block the caller for longer than
// a short, bounded send attempt.
type Notifier interface {
	NotifyJobCompleted(JobCompleted)
	NotifyJobRetry(JobRetry)
	NotifyMaxRetriesExceeded(MaxRetriesExceeded)
	NotifyJobFailed(JobFailed)
}

// eventEnvelope is the wire shape published to the broker, one topic per
// event kind via the routing key.
type eventEnvelope struct {
	Kind      string    `json:"kind"`
	EmittedAt time.Time `json:"emitted_at"`
	Payload   any       `json:"payload"`
}
