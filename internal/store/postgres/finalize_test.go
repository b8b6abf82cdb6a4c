package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RezaEskandarii/jobcore/internal/jobstate"
	"github.com/RezaEskandarii/jobcore/internal/model"
	"github.com/RezaEskandarii/jobcore/internal/store"
)

func TestStore_FinalizeAttempt_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New(db)
	now := time.Now()
	completed := jobstate.JobCompleted

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO jobcore.finalize_ledger").
		WithArgs("job-1:exec-1:finalize").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO jobcore.job_executions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE jobcore.jobs SET\\s+total_executions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE jobcore.jobs SET status").
		WithArgs(string(completed), "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE jobcore.jobs SET next_execution_at = NULL").
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := s.FinalizeAttempt(context.Background(), store.FinalizeInput{
		Execution: &model.Execution{
			ID:     "exec-1",
			JobID:  "job-1",
			Status: jobstate.ExecCompleted,
		},
		JobID:          "job-1",
		Success:        true,
		LastExecutedAt: now,
		NewJobStatus:   &completed,
		ClearNext:      true,
		IdempotencyKey: "job-1:exec-1:finalize",
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FinalizeAttempt_AlreadyFinalized(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO jobcore.finalize_ledger").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	applied, err := s.FinalizeAttempt(context.Background(), store.FinalizeInput{
		Execution:      &model.Execution{ID: "exec-1", JobID: "job-1", Status: jobstate.ExecCompleted},
		JobID:          "job-1",
		Success:        true,
		IdempotencyKey: "job-1:exec-1:finalize",
	})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}
