package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RezaEskandarii/jobcore/internal/jobstate"
	"github.com/RezaEskandarii/jobcore/internal/model"
)

func newJob() *model.Job {
	now := time.Now()
	return &model.Job{
		ID:           "job-1",
		OwnerID:      "owner-1",
		Name:         "nightly-export",
		Tags:         []string{"export"},
		Metadata:     map[string]any{"team": "data"},
		Type:         model.JobTypeHTTP,
		Payload:      json.RawMessage(`{"url":"https://example.com"}`),
		ScheduleType: model.ScheduleImmediate,
		Timezone:     "UTC",
		Status:       jobstate.JobActive,
		RetryBackoff: model.BackoffFixed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestJobStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := jobStore{db: db}
	mock.ExpectExec("INSERT INTO jobcore.jobs").WillReturnResult(sqlmock.NewResult(0, 1))

	err = s.Create(context.Background(), newJob())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_Get_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := jobStore{db: db}
	mock.ExpectQuery("SELECT").WithArgs("missing").WillReturnRows(sqlmock.NewRows(nil))

	_, err = s.Get(context.Background(), "missing")
	assert.Error(t, err)
}

func TestJobStore_CompareAndSetStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := jobStore{db: db}
	mock.ExpectExec("UPDATE jobcore.jobs SET status").
		WithArgs(string(jobstate.JobPaused), "job-1", string(jobstate.JobActive)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.CompareAndSetStatus(context.Background(), "job-1", jobstate.JobActive, jobstate.JobPaused)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_CompareAndSetStatus_NoMatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := jobStore{db: db}
	mock.ExpectExec("UPDATE jobcore.jobs SET status").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.CompareAndSetStatus(context.Background(), "job-1", jobstate.JobActive, jobstate.JobPaused)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJobStore_SetNextExecutionAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := jobStore{db: db}
	next := time.Now().Add(time.Hour)
	mock.ExpectExec("UPDATE jobcore.jobs SET next_execution_at").
		WithArgs(next, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = s.SetNextExecutionAt(context.Background(), "job-1", &next)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := jobStore{db: db}
	mock.ExpectExec("DELETE FROM jobcore.jobs").WithArgs("job-1").WillReturnResult(sqlmock.NewResult(0, 1))

	err = s.Delete(context.Background(), "job-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
