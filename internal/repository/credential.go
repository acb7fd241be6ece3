package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"signagehub/internal/model"
)

// credentialStore keeps pairing codes, pairing sessions and the registration transaction.
type credentialStore struct {
	db *sqlx.DB
}

// NewCredentialStore creates the Postgres-backed credential store
func NewCredentialStore(db *sqlx.DB) CredentialStore {
	return &credentialStore{db: db}
}

func (s *credentialStore) CreatePairingCode(ctx context.Context, code *model.PairingCode, now time.Time) error {
	query := `
		INSERT INTO pairing_codes (id, code_hash, expires_at, issued_by, created_at)
		SELECT $1, $2, $3, $4, $5
		WHERE NOT EXISTS (
			SELECT 1 FROM pairing_codes
			WHERE code_hash = $2 AND used_at IS NULL AND expires_at > $5
		)
	`
	result, err := s.db.ExecContext(ctx, query, code.ID, code.CodeHash, code.ExpiresAt, code.IssuedBy, now)
	if err != nil {
		return fmt.Errorf("failed to create pairing code: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create pairing code: %w", err)
	}
	if rows == 0 {
		return ErrPairingCodeCollision
	}
	code.CreatedAt = now
	return nil
}

// OpenSession claims the code with a single conditional update; the row lock taken by
// FOR UPDATE serializes concurrent claims so at most one of them sees used_at IS NULL.
func (s *credentialStore) OpenSession(ctx context.Context, codeHash string, now time.Time, session *model.PairingSession) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	claim := `
		UPDATE pairing_codes
		SET used_at = $2
		WHERE id = (
			SELECT id FROM pairing_codes
			WHERE code_hash = $1 AND used_at IS NULL AND expires_at > $2
			ORDER BY created_at DESC
			LIMIT 1
			FOR UPDATE
		) AND used_at IS NULL
		RETURNING id
	`
	var codeID string
	if err := tx.GetContext(ctx, &codeID, claim, codeHash, now); err != nil {
		if err == sql.ErrNoRows {
			return model.ErrInvalidPairingCode
		}
		return fmt.Errorf("claim pairing code: %w", err)
	}

	session.PairingCodeID = codeID
	session.State = model.SessionOpen
	session.CreatedAt = now
	_, err = tx.ExecContext(ctx, `
		INSERT INTO pairing_sessions (id, pairing_code_id, challenge_nonce, challenge_expires_at, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, session.ID, session.PairingCodeID, session.ChallengeNonce, session.ChallengeExpiresAt, session.State, session.CreatedAt)
	if err != nil {
		if mapConstraintError(err) == model.ErrSessionConsumed {
			return model.ErrInvalidPairingCode
		}
		return fmt.Errorf("insert pairing session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *credentialStore) GetSession(ctx context.Context, id string) (*model.PairingSession, error) {
	query := `
		SELECT id, pairing_code_id, challenge_nonce, challenge_expires_at, state, created_at
		FROM pairing_sessions
		WHERE id = $1
	`
	var sess model.PairingSession
	if err := s.db.GetContext(ctx, &sess, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get pairing session: %w", err)
	}
	return &sess, nil
}

// Register executes every registration check and write in one transaction. The
// explicit uniqueness pre-checks give precise errors on the common path; the
// constraint mapper covers the race where a concurrent registration commits first.
func (s *credentialStore) Register(ctx context.Context, p RegistrationParams) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var sess model.PairingSession
	err = tx.GetContext(ctx, &sess, `
		SELECT id, pairing_code_id, challenge_nonce, challenge_expires_at, state, created_at
		FROM pairing_sessions
		WHERE id = $1
		FOR UPDATE
	`, p.SessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.ErrSessionNotFound
		}
		return fmt.Errorf("lock pairing session: %w", err)
	}
	if !sess.IsOpenAt(p.Now) {
		return model.ErrSessionClosed
	}

	var slugTaken bool
	if err := tx.GetContext(ctx, &slugTaken, `SELECT EXISTS(SELECT 1 FROM displays WHERE slug = $1)`, p.Display.Slug); err != nil {
		return fmt.Errorf("check slug: %w", err)
	}
	if slugTaken {
		return model.ErrSlugTaken
	}

	var fingerprintTaken bool
	err = tx.GetContext(ctx, &fingerprintTaken,
		`SELECT EXISTS(SELECT 1 FROM displays WHERE fingerprint = $1 AND output = $2)`,
		p.Display.Fingerprint, p.Display.Output)
	if err != nil {
		return fmt.Errorf("check fingerprint: %w", err)
	}
	if fingerprintTaken {
		return model.ErrFingerprintTaken
	}

	d := p.Display
	_, err = tx.ExecContext(ctx, `
		INSERT INTO displays (id, name, slug, fingerprint, resolution_width, resolution_height, output,
		                      orientation, registration_state, refresh_nonce, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $10)
	`, d.ID, d.Name, d.Slug, d.Fingerprint, d.ResolutionWidth, d.ResolutionHeight, d.Output,
		d.Orientation, d.State, p.Now)
	if err != nil {
		return mapInsertError("insert display", err)
	}

	k := p.Key
	_, err = tx.ExecContext(ctx, `
		INSERT INTO display_keys (id, display_id, algorithm, public_key, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, k.ID, k.DisplayID, k.Algorithm, k.PublicKey, k.Status, p.Now)
	if err != nil {
		return fmt.Errorf("insert display key: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE pairing_sessions SET state = $2 WHERE id = $1 AND state = $3`,
		p.SessionID, model.SessionCompleted, model.SessionOpen)
	if err != nil {
		return fmt.Errorf("complete pairing session: %w", err)
	}
	if rows, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("complete pairing session: %w", err)
	} else if rows == 0 {
		return model.ErrSessionConsumed
	}

	if err := insertTransition(ctx, tx, p.Transition); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapInsertError("commit registration", err)
	}

	d.CreatedAt, d.UpdatedAt = p.Now, p.Now
	k.CreatedAt = p.Now
	return nil
}

func (s *credentialStore) ListTransitions(ctx context.Context, displayID string) ([]model.DisplayStateTransition, error) {
	query := `
		SELECT id, display_id, from_state, to_state, reason, actor, created_at
		FROM display_state_transitions
		WHERE display_id = $1
		ORDER BY created_at ASC
	`
	var out []model.DisplayStateTransition
	if err := s.db.SelectContext(ctx, &out, query, displayID); err != nil {
		return nil, fmt.Errorf("failed to list state transitions: %w", err)
	}
	return out, nil
}

func (s *credentialStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	sessions, err := tx.ExecContext(ctx,
		`DELETE FROM pairing_sessions WHERE state = $1 AND challenge_expires_at < $2`,
		model.SessionOpen, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	codes, err := tx.ExecContext(ctx,
		`DELETE FROM pairing_codes WHERE used_at IS NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired codes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	n1, _ := sessions.RowsAffected()
	n2, _ := codes.RowsAffected()
	return n1 + n2, nil
}

func mapInsertError(op string, err error) error {
	if mapped := mapConstraintError(err); mapped != err {
		return mapped
	}
	return fmt.Errorf("%s: %w", op, err)
}
