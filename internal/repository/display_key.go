package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"signagehub/internal/model"
)

type displayKeyRepository struct {
	db *sqlx.DB
}

// NewDisplayKeyRepository creates a new display key repository
func NewDisplayKeyRepository(db *sqlx.DB) DisplayKeyRepository {
	return &displayKeyRepository{db: db}
}

func (r *displayKeyRepository) GetByID(ctx context.Context, id string) (*model.DisplayKey, error) {
	query := `
		SELECT id, display_id, algorithm, public_key, status, created_at
		FROM display_keys
		WHERE id = $1
	`
	var k model.DisplayKey
	if err := r.db.GetContext(ctx, &k, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get display key: %w", err)
	}
	return &k, nil
}

// Revoke flips a key to revoked. Unknown or foreign keys yield ErrKeyNotFound.
func (r *displayKeyRepository) Revoke(ctx context.Context, displayID, keyID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE display_keys SET status = $3
		WHERE id = $1 AND display_id = $2
	`, keyID, displayID, model.KeyStatusRevoked)
	if err != nil {
		return fmt.Errorf("failed to revoke display key: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke display key: %w", err)
	}
	if rows == 0 {
		return model.ErrKeyNotFound
	}
	return nil
}
