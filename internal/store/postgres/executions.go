package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/RezaEskandarii/jobcore/internal/jobstate"
	"github.com/RezaEskandarii/jobcore/internal/model"
)

type executionStore struct {
	db *sql.DB
}

const executionColumns = `
	id, job_id, status, attempt, started_at, completed_at, duration_ms,
	result, error_message, error_stack, is_retry, previous_execution_id,
	worker_id, input, output, created_at
`

func (s executionStore) Create(ctx context.Context, exec *model.Execution) error {
	var errMsg, errStack *string
	if exec.Error != nil {
		errMsg = &exec.Error.Message
		errStack = &exec.Error.Stack
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobcore.job_executions (
			id, job_id, status, attempt, started_at, completed_at, duration_ms,
			result, error_message, error_stack, is_retry, previous_execution_id,
			worker_id, input, output, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		exec.ID, exec.JobID, string(exec.Status), exec.Attempt, exec.StartedAt, exec.CompletedAt, exec.DurationMs,
		exec.Result, errMsg, errStack, exec.IsRetry, exec.PreviousExecutionID,
		exec.WorkerID, exec.Input, exec.Output, exec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

func (s executionStore) Get(ctx context.Context, id string) (*model.Execution, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM jobcore.job_executions WHERE id = $1`, id)
	exec, err := scanExecution(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("execution %s not found: %w", id, err)
		}
		return nil, err
	}
	return exec, nil
}

func (s executionStore) ListByJob(ctx context.Context, jobID string, page, pageSize int) (*model.Page[model.Execution], error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobcore.job_executions WHERE job_id = $1`, jobID).Scan(&total); err != nil {
		return nil, fmt.Errorf("count executions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+executionColumns+` FROM jobcore.job_executions WHERE job_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, jobID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var items []model.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *exec)
	}

	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))
	return &model.Page[model.Execution]{
		Items:           items,
		TotalItems:      total,
		Page:            page,
		PageSize:        pageSize,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}, nil
}

func scanExecution(row rowScanner) (*model.Execution, error) {
	var e model.Execution
	var status string
	var errMsg, errStack *string

	err := row.Scan(
		&e.ID, &e.JobID, &status, &e.Attempt, &e.StartedAt, &e.CompletedAt, &e.DurationMs,
		&e.Result, &errMsg, &errStack, &e.IsRetry, &e.PreviousExecutionID,
		&e.WorkerID, &e.Input, &e.Output, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Status = jobstate.ExecutionStatus(status)
	if errMsg != nil {
		stack := ""
		if errStack != nil {
			stack = *errStack
		}
		e.Error = &model.ExecutionError{Message: *errMsg, Stack: stack}
	}
	return &e, nil
}
