package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/RezaEskandarii/jobcore/internal/jobstate"
	"github.com/RezaEskandarii/jobcore/internal/model"
)

type jobStore struct {
	db *sql.DB
}

const jobColumns = `
	id, owner_id, name, description, tags, metadata, type, payload,
	schedule_type, scheduled_at, cron_expression, timezone, status,
	priority, max_retries, retry_delay_ms, retry_backoff, timeout_ms,
	last_executed_at, next_execution_at,
	total_executions, successful_executions, failed_executions,
	end_at, max_executions, created_at, updated_at
`

func (s jobStore) Create(ctx context.Context, job *model.Job) error {
	tagsJSON, err := json.Marshal(job.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	metaJSON, err := json.Marshal(job.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	payload := job.Payload
	if payload == nil {
		payload = json.RawMessage("{}")
	}

	query := `
		INSERT INTO jobcore.jobs (
			id, owner_id, name, description, tags, metadata, type, payload,
			schedule_type, scheduled_at, cron_expression, timezone, status,
			priority, max_retries, retry_delay_ms, retry_backoff, timeout_ms,
			last_executed_at, next_execution_at,
			total_executions, successful_executions, failed_executions,
			end_at, max_executions, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18,
			$19, $20,
			$21, $22, $23,
			$24, $25, $26, $27
		)`

	_, err = s.db.ExecContext(ctx, query,
		job.ID, job.OwnerID, job.Name, job.Description, tagsJSON, metaJSON, string(job.Type), payload,
		string(job.ScheduleType), job.ScheduledAt, job.CronExpression, job.Timezone, string(job.Status),
		job.Priority, job.MaxRetries, job.RetryDelayMs, string(job.RetryBackoff), job.TimeoutMs,
		job.LastExecutedAt, job.NextExecutionAt,
		job.TotalExecutions, job.SuccessfulExecutions, job.FailedExecutions,
		job.EndAt, job.MaxExecutions, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s jobStore) Get(ctx context.Context, id string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobcore.jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("job %s not found: %w", id, err)
		}
		return nil, err
	}
	return job, nil
}

func (s jobStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobcore.jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

func (s jobStore) SetStatus(ctx context.Context, id string, status jobstate.JobStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE jobcore.jobs SET status = $1, updated_at = now() WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("set job status: %w", err)
	}
	return nil
}

func (s jobStore) CompareAndSetStatus(ctx context.Context, id string, from, to jobstate.JobStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobcore.jobs SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
		string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("compare-and-set job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s jobStore) SetSchedule(ctx context.Context, id string, scheduleType model.ScheduleType, scheduledAt *time.Time, cronExpression *string, timezone string, nextExecutionAt *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobcore.jobs
		SET schedule_type = $1, scheduled_at = $2, cron_expression = $3, timezone = $4,
		    next_execution_at = $5, updated_at = now()
		WHERE id = $6`,
		string(scheduleType), scheduledAt, cronExpression, timezone, nextExecutionAt, id)
	if err != nil {
		return fmt.Errorf("set job schedule: %w", err)
	}
	return nil
}

func (s jobStore) SetNextExecutionAt(ctx context.Context, id string, next *time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE jobcore.jobs SET next_execution_at = $1, updated_at = now() WHERE id = $2`, next, id)
	if err != nil {
		return fmt.Errorf("set next_execution_at: %w", err)
	}
	return nil
}

func (s jobStore) ListByOwner(ctx context.Context, ownerID string, page, pageSize int) (*model.Page[model.Job], error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobcore.jobs WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobcore.jobs WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, ownerID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var items []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *job)
	}

	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))
	return &model.Page[model.Job]{
		Items:           items,
		TotalItems:      total,
		Page:            page,
		PageSize:        pageSize,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var j model.Job
	var tagsJSON, metaJSON []byte
	var jobType, scheduleType, status, retryBackoff string
	var payload json.RawMessage

	err := row.Scan(
		&j.ID, &j.OwnerID, &j.Name, &j.Description, &tagsJSON, &metaJSON, &jobType, &payload,
		&scheduleType, &j.ScheduledAt, &j.CronExpression, &j.Timezone, &status,
		&j.Priority, &j.MaxRetries, &j.RetryDelayMs, &retryBackoff, &j.TimeoutMs,
		&j.LastExecutedAt, &j.NextExecutionAt,
		&j.TotalExecutions, &j.SuccessfulExecutions, &j.FailedExecutions,
		&j.EndAt, &j.MaxExecutions, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Type = model.JobType(jobType)
	j.ScheduleType = model.ScheduleType(scheduleType)
	j.Status = jobstate.JobStatus(status)
	j.RetryBackoff = model.RetryBackoff(retryBackoff)
	j.Payload = payload

	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &j.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &j.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return &j, nil
}
