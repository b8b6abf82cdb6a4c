package lock

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresLockManager implements DistributedLockManager over
// pg_advisory_lock/pg_try_advisory_lock, following the teacher's
// PostgresDistributedLockManager but session-scoped calls now take a
// context and the lockID width matches bigint advisory locks.
type PostgresLockManager struct {
	db *sql.DB
}

func NewPostgresLockManager(db *sql.DB) *PostgresLockManager {
	return &PostgresLockManager{db: db}
}

func (l *PostgresLockManager) Acquire(ctx context.Context, lockID int64) error {
	if _, err := l.db.ExecContext(ctx, "SELECT pg_advisory_lock($1)", lockID); err != nil {
		return fmt.Errorf("acquire advisory lock %d: %w", lockID, err)
	}
	return nil
}

func (l *PostgresLockManager) TryAcquire(ctx context.Context, lockID int64) (bool, error) {
	var acquired bool
	if err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired); err != nil {
		return false, fmt.Errorf("try advisory lock %d: %w", lockID, err)
	}
	return acquired, nil
}

func (l *PostgresLockManager) Release(ctx context.Context, lockID int64) error {
	if _, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", lockID); err != nil {
		return fmt.Errorf("release advisory lock %d: %w", lockID, err)
	}
	return nil
}
