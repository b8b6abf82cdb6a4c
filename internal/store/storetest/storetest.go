// Package storetest provides an in-memory store.Store used by planner and
// worker tests in place of a real Postgres instance, grounded on the
// teacher's hand-rolled in-memory fakes (e.g. its mockCronJobStore) rather
// than a generated mock, since the contracts here carry real invariants
// (compare-and-set, atomic finalize) that a field-by-field stub would not
// exercise faithfully.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/RezaEskandarii/jobcore/internal/jobstate"
	"github.com/RezaEskandarii/jobcore/internal/model"
	"github.com/RezaEskandarii/jobcore/internal/store"
)

// Store is a single-process, mutex-guarded implementation of store.Store.
type Store struct {
	mu sync.Mutex

	jobs       map[string]*model.Job
	executions map[string]*model.Execution
	logs       []model.JobLog
	owners     map[string]*model.Owner
	finalized  map[string]bool
}

func New() *Store {
	return &Store{
		jobs:       make(map[string]*model.Job),
		executions: make(map[string]*model.Execution),
		owners:     make(map[string]*model.Owner),
		finalized:  make(map[string]bool),
	}
}

func (s *Store) Jobs() store.JobStore             { return &jobStore{s} }
func (s *Store) Executions() store.ExecutionStore { return &executionStore{s} }
func (s *Store) Logs() store.LogStore             { return &logStore{s} }
func (s *Store) Owners() store.OwnerStore         { return &ownerStore{s} }
func (s *Store) Close() error                     { return nil }

func cloneJob(j *model.Job) *model.Job {
	cp := *j
	return &cp
}

func cloneExecution(e *model.Execution) *model.Execution {
	cp := *e
	return &cp
}

// FinalizeAttempt applies the finalize_ledger idempotency check and the
// Execution + Job counter/status mutation atomically under s.mu, mirroring
// the transactional semantics of the Postgres implementation.
func (s *Store) FinalizeAttempt(_ context.Context, in store.FinalizeInput) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized[in.IdempotencyKey] {
		return false, nil
	}
	s.finalized[in.IdempotencyKey] = true

	s.executions[in.Execution.ID] = cloneExecution(in.Execution)

	job, ok := s.jobs[in.JobID]
	if !ok {
		return false, fmt.Errorf("job %s not found", in.JobID)
	}
	job.TotalExecutions++
	if in.Success {
		job.SuccessfulExecutions++
	} else {
		job.FailedExecutions++
	}
	job.LastExecutedAt = &in.LastExecutedAt

	if in.NewJobStatus != nil {
		job.Status = *in.NewJobStatus
	}
	switch {
	case in.ClearNext:
		job.NextExecutionAt = nil
	case in.NextExecutionAt != nil:
		job.NextExecutionAt = in.NextExecutionAt
	}

	return true, nil
}

type jobStore struct{ s *Store }

func (j *jobStore) Create(_ context.Context, job *model.Job) error {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	if _, exists := j.s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	j.s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (j *jobStore) Get(_ context.Context, id string) (*model.Job, error) {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	job, ok := j.s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	return cloneJob(job), nil
}

func (j *jobStore) Delete(_ context.Context, id string) error {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	delete(j.s.jobs, id)
	return nil
}

func (j *jobStore) SetStatus(_ context.Context, id string, status jobstate.JobStatus) error {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	job, ok := j.s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	job.Status = status
	return nil
}

func (j *jobStore) CompareAndSetStatus(_ context.Context, id string, from, to jobstate.JobStatus) (bool, error) {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	job, ok := j.s.jobs[id]
	if !ok {
		return false, fmt.Errorf("job %s not found", id)
	}
	if job.Status != from {
		return false, nil
	}
	job.Status = to
	return true, nil
}

func (j *jobStore) SetSchedule(_ context.Context, id string, scheduleType model.ScheduleType, scheduledAt *time.Time, cronExpression *string, timezone string, nextExecutionAt *time.Time) error {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	job, ok := j.s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	job.ScheduleType = scheduleType
	job.ScheduledAt = scheduledAt
	job.CronExpression = cronExpression
	job.Timezone = timezone
	job.NextExecutionAt = nextExecutionAt
	return nil
}

func (j *jobStore) SetNextExecutionAt(_ context.Context, id string, next *time.Time) error {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	job, ok := j.s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	job.NextExecutionAt = next
	return nil
}

func (j *jobStore) ListByOwner(_ context.Context, ownerID string, page, pageSize int) (*model.Page[model.Job], error) {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()

	var matched []model.Job
	for _, job := range j.s.jobs {
		if job.OwnerID == ownerID {
			matched = append(matched, *job)
		}
	}
	sort.Slice(matched, func(i, k int) bool { return matched[i].CreatedAt.After(matched[k].CreatedAt) })

	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	total := len(matched)
	totalPages := (total + pageSize - 1) / pageSize
	return &model.Page[model.Job]{
		Items:           matched[start:end],
		TotalItems:      total,
		Page:            page,
		PageSize:        pageSize,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}, nil
}

type logStore struct{ s *Store }

func (l *logStore) Append(_ context.Context, entry *model.JobLog) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	cp := *entry
	l.s.logs = append(l.s.logs, cp)
	return nil
}

func (l *logStore) ListByJob(_ context.Context, jobID string, limit int) ([]model.JobLog, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	var out []model.JobLog
	for i := len(l.s.logs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if l.s.logs[i].JobID == jobID {
			out = append(out, l.s.logs[i])
		}
	}
	return out, nil
}

type ownerStore struct{ s *Store }

func (o *ownerStore) Create(_ context.Context, username string) (*model.Owner, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	owner := &model.Owner{ID: fmt.Sprintf("owner-%d", len(o.s.owners)+1), Username: username}
	o.s.owners[owner.ID] = owner
	return owner, nil
}

func (o *ownerStore) Get(_ context.Context, id string) (*model.Owner, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	owner, ok := o.s.owners[id]
	if !ok {
		return nil, fmt.Errorf("owner %s not found", id)
	}
	return owner, nil
}

func (o *ownerStore) Delete(_ context.Context, id string) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	delete(o.s.owners, id)
	for jobID, job := range o.s.jobs {
		if job.OwnerID == id {
			delete(o.s.jobs, jobID)
		}
	}
	return nil
}

type executionStore struct{ s *Store }

func (e *executionStore) Create(_ context.Context, exec *model.Execution) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	e.s.executions[exec.ID] = cloneExecution(exec)
	return nil
}

func (e *executionStore) Get(_ context.Context, id string) (*model.Execution, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	exec, ok := e.s.executions[id]
	if !ok {
		return nil, fmt.Errorf("execution %s not found", id)
	}
	return cloneExecution(exec), nil
}

func (e *executionStore) ListByJob(_ context.Context, jobID string, page, pageSize int) (*model.Page[model.Execution], error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	var matched []model.Execution
	for _, exec := range e.s.executions {
		if exec.JobID == jobID {
			matched = append(matched, *exec)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	total := len(matched)
	totalPages := (total + pageSize - 1) / pageSize
	return &model.Page[model.Execution]{
		Items:           matched[start:end],
		TotalItems:      total,
		Page:            page,
		PageSize:        pageSize,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}, nil
}
