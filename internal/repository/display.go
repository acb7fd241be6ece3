package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"signagehub/internal/model"
)

const displayColumns = `id, name, slug, fingerprint, resolution_width, resolution_height, output, orientation,
		       registration_state, last_seen_at, refresh_nonce, created_at, updated_at`

type displayRepository struct {
	db *sqlx.DB
}

// NewDisplayRepository creates a new display repository
func NewDisplayRepository(db *sqlx.DB) DisplayRepository {
	return &displayRepository{db: db}
}

func (r *displayRepository) GetByID(ctx context.Context, id string) (*model.Display, error) {
	query := `SELECT ` + displayColumns + ` FROM displays WHERE id = $1`

	var d model.Display
	if err := r.db.GetContext(ctx, &d, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrDisplayNotFound
		}
		return nil, fmt.Errorf("failed to get display by id: %w", err)
	}
	return &d, nil
}

func (r *displayRepository) GetBySlug(ctx context.Context, slug string) (*model.Display, error) {
	query := `SELECT ` + displayColumns + ` FROM displays WHERE slug = $1`

	var d model.Display
	if err := r.db.GetContext(ctx, &d, query, slug); err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrDisplayNotFound
		}
		return nil, fmt.Errorf("failed to get display by slug: %w", err)
	}
	return &d, nil
}

// Activate performs the registered -> active edge with a conditional update so two
// concurrent verifications record a single transition.
func (r *displayRepository) Activate(ctx context.Context, displayID string, t *model.DisplayStateTransition) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE displays
		SET registration_state = $2, last_seen_at = $4, updated_at = $4
		WHERE id = $1 AND registration_state = $3
	`, displayID, model.StateActive, model.StateRegistered, t.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("activate display: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("activate display: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	if err := insertTransition(ctx, tx, t); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}
	return true, nil
}

func (r *displayRepository) TouchLastSeen(ctx context.Context, displayID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE displays SET last_seen_at = $2 WHERE id = $1`, displayID, at)
	if err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}
	return nil
}

func (r *displayRepository) IncrementRefreshNonce(ctx context.Context, displayID string) (int64, error) {
	query := `
		UPDATE displays
		SET refresh_nonce = refresh_nonce + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING refresh_nonce
	`
	var nonce int64
	if err := r.db.GetContext(ctx, &nonce, query, displayID); err != nil {
		if err == sql.ErrNoRows {
			return 0, model.ErrDisplayNotFound
		}
		return 0, fmt.Errorf("failed to increment refresh nonce: %w", err)
	}
	return nonce, nil
}

func insertTransition(ctx context.Context, tx *sqlx.Tx, t *model.DisplayStateTransition) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO display_state_transitions (id, display_id, from_state, to_state, reason, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.DisplayID, t.FromState, t.ToState, t.Reason, t.Actor, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert state transition: %w", err)
	}
	return nil
}
