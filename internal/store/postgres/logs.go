package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/RezaEskandarii/jobcore/internal/model"
)

type logStore struct {
	db *sql.DB
}

func (s logStore) Append(ctx context.Context, entry *model.JobLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobcore.job_logs (id, job_id, execution_id, level, message, data, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.JobID, entry.ExecutionID, entry.Level, entry.Message, entry.Data, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append job log: %w", err)
	}
	return nil
}

func (s logStore) ListByJob(ctx context.Context, jobID string, limit int) ([]model.JobLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, execution_id, level, message, data, timestamp
		FROM jobcore.job_logs
		WHERE job_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("list job logs: %w", err)
	}
	defer rows.Close()

	var out []model.JobLog
	for rows.Next() {
		var l model.JobLog
		if err := rows.Scan(&l.ID, &l.JobID, &l.ExecutionID, &l.Level, &l.Message, &l.Data, &l.Timestamp); err != nil {
			return nil, fmt.Errorf("scan job log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
