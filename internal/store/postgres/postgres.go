// Package postgres implements store.Store on top of database/sql and
// github.com/lib/pq, grounded on the teacher's internal/repository/postgres
// packages (manual query strings + row.Scan, one struct per table) but
// generalized from the teacher's two job kinds (cron/enqueued) into the
// spec's single Job entity with Execution/JobLog children, and with a real
// transactional FinalizeAttempt instead of the teacher's unsynchronized
// counter updates.
package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/RezaEskandarii/jobcore/internal/store"
)

// Store is the Postgres-backed store.Store implementation.
type Store struct {
	db *sql.DB
}

// Open opens a Postgres connection pool and wraps it in a Store.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-open *sql.DB (used by tests with sqlmock).
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Jobs() store.JobStore             { return jobStore{db: s.db} }
func (s *Store) Executions() store.ExecutionStore { return executionStore{db: s.db} }
func (s *Store) Logs() store.LogStore             { return logStore{db: s.db} }
func (s *Store) Owners() store.OwnerStore         { return ownerStore{db: s.db} }

func (s *Store) Close() error { return s.db.Close() }
