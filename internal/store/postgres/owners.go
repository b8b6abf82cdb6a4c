package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RezaEskandarii/jobcore/internal/model"
)

type ownerStore struct {
	db *sql.DB
}

func (s ownerStore) Create(ctx context.Context, username string) (*model.Owner, error) {
	o := &model.Owner{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO jobcore.owners (id, username, created_at) VALUES ($1, $2, $3)`,
		o.ID, o.Username, o.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert owner: %w", err)
	}
	return o, nil
}

func (s ownerStore) Get(ctx context.Context, id string) (*model.Owner, error) {
	var o model.Owner
	err := s.db.QueryRowContext(ctx, `SELECT id, username, created_at FROM jobcore.owners WHERE id = $1`, id).
		Scan(&o.ID, &o.Username, &o.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("owner %s not found: %w", id, err)
		}
		return nil, err
	}
	return &o, nil
}

func (s ownerStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobcore.owners WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete owner %s: %w", id, err)
	}
	return nil
}
