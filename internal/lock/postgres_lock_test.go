package lock

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPostgresLockManager(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mgr := NewPostgresLockManager(db)
	require.NotNil(t, mgr)
}

func TestPostgresLockManager_Acquire(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mgr := NewPostgresLockManager(db)

	mock.ExpectExec("SELECT pg_advisory_lock").
		WithArgs(PlannerLockID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = mgr.Acquire(context.Background(), PlannerLockID)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLockManager_Acquire_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mgr := NewPostgresLockManager(db)

	mock.ExpectExec("SELECT pg_advisory_lock").
		WithArgs(int64(42)).
		WillReturnError(sql.ErrConnDone)

	err = mgr.Acquire(context.Background(), 42)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "acquire advisory lock")
}

func TestPostgresLockManager_TryAcquire(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mgr := NewPostgresLockManager(db)

	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))

	ok, err := mgr.TryAcquire(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLockManager_TryAcquire_NotAcquired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mgr := NewPostgresLockManager(db)

	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	ok, err := mgr.TryAcquire(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresLockManager_Release(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mgr := NewPostgresLockManager(db)

	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = mgr.Release(context.Background(), 1)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
