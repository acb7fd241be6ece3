package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"signagehub/internal/model"
)

type postgresNonceLedger struct {
	db *sqlx.DB
}

// NewNonceLedger creates a nonce ledger enforced by the auth_nonces primary key.
func NewNonceLedger(db *sqlx.DB) *postgresNonceLedger {
	return &postgresNonceLedger{db: db}
}

// Consume inserts the pair; the primary key rejects duplicates, so there is no
// separate existence check to race against. An expired row for the same pair is
// replaced in the same statement so purge lag never blocks a legitimately reused nonce.
func (l *postgresNonceLedger) Consume(ctx context.Context, displayID, nonce string, expiresAt time.Time) error {
	query := `
		INSERT INTO auth_nonces (display_id, nonce, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT auth_nonces_pkey
		DO UPDATE SET expires_at = EXCLUDED.expires_at
		WHERE auth_nonces.expires_at < NOW()
	`
	result, err := l.db.ExecContext(ctx, query, displayID, nonce, expiresAt)
	if err != nil {
		if mapConstraintError(err) == model.ErrNonceReplayed {
			return model.ErrNonceReplayed
		}
		return fmt.Errorf("consume nonce: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume nonce: %w", err)
	}
	if rows == 0 {
		return model.ErrNonceReplayed
	}
	return nil
}

func (l *postgresNonceLedger) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx, `DELETE FROM auth_nonces WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge nonces: %w", err)
	}
	return result.RowsAffected()
}
