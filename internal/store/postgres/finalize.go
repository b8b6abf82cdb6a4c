package postgres

import (
	"context"
	"fmt"

	"github.com/RezaEskandarii/jobcore/internal/store"
)

// FinalizeAttempt writes the Execution row and its driven Job counter/status
// update as one transaction, guarded by an insert into finalize_ledger keyed
// on in.IdempotencyKey. A worker that crashes after committing and before
// acknowledging the queue message can safely replay FinalizeAttempt: the
// ledger insert conflicts, the transaction is rolled back, and (false, nil)
// is returned instead of double-counting the attempt.
func (s *Store) FinalizeAttempt(ctx context.Context, in store.FinalizeInput) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin finalize tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO jobcore.finalize_ledger (finalize_key) VALUES ($1)
		ON CONFLICT (finalize_key) DO NOTHING`, in.IdempotencyKey)
	if err != nil {
		return false, fmt.Errorf("claim finalize key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// Already finalized by a prior attempt; nothing further to apply.
		return false, nil
	}

	exec := in.Execution
	var errMsg, errStack *string
	if exec.Error != nil {
		errMsg = &exec.Error.Message
		errStack = &exec.Error.Stack
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobcore.job_executions (
			id, job_id, status, attempt, started_at, completed_at, duration_ms,
			result, error_message, error_stack, is_retry, previous_execution_id,
			worker_id, input, output, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			duration_ms = EXCLUDED.duration_ms,
			result = EXCLUDED.result,
			error_message = EXCLUDED.error_message,
			error_stack = EXCLUDED.error_stack,
			output = EXCLUDED.output`,
		exec.ID, exec.JobID, string(exec.Status), exec.Attempt, exec.StartedAt, exec.CompletedAt, exec.DurationMs,
		exec.Result, errMsg, errStack, exec.IsRetry, exec.PreviousExecutionID,
		exec.WorkerID, exec.Input, exec.Output, exec.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("upsert execution: %w", err)
	}

	counterCol := "failed_executions"
	if in.Success {
		counterCol = "successful_executions"
	}

	query := fmt.Sprintf(`
		UPDATE jobcore.jobs SET
			total_executions = total_executions + 1,
			%s = %s + 1,
			last_executed_at = $1,
			updated_at = now()
		WHERE id = $2`, counterCol, counterCol)

	if _, err := tx.ExecContext(ctx, query, in.LastExecutedAt, in.JobID); err != nil {
		return false, fmt.Errorf("update job counters: %w", err)
	}

	if in.NewJobStatus != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE jobcore.jobs SET status = $1, updated_at = now() WHERE id = $2`, string(*in.NewJobStatus), in.JobID); err != nil {
			return false, fmt.Errorf("update job status: %w", err)
		}
	}

	switch {
	case in.ClearNext:
		if _, err := tx.ExecContext(ctx, `UPDATE jobcore.jobs SET next_execution_at = NULL, updated_at = now() WHERE id = $1`, in.JobID); err != nil {
			return false, fmt.Errorf("clear next_execution_at: %w", err)
		}
	case in.NextExecutionAt != nil:
		if _, err := tx.ExecContext(ctx, `UPDATE jobcore.jobs SET next_execution_at = $1, updated_at = now() WHERE id = $2`, *in.NextExecutionAt, in.JobID); err != nil {
			return false, fmt.Errorf("set next_execution_at: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit finalize tx: %w", err)
	}
	return true, nil
}
