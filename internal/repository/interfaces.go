package repository

import (
	"context"
	"time"

	"signagehub/internal/model"
)

type DisplayRepository interface {
	GetByID(ctx context.Context, id string) (*model.Display, error)
	GetBySlug(ctx context.Context, slug string) (*model.Display, error)
	// Activate moves a registered display to active and appends the transition in one
	// transaction. Returns false when the display was not in the registered state.
	Activate(ctx context.Context, displayID string, transition *model.DisplayStateTransition) (bool, error)
	TouchLastSeen(ctx context.Context, displayID string, at time.Time) error
	IncrementRefreshNonce(ctx context.Context, displayID string) (int64, error)
}

type DisplayKeyRepository interface {
	GetByID(ctx context.Context, id string) (*model.DisplayKey, error)
	Revoke(ctx context.Context, displayID, keyID string) error
}

// RegistrationParams is everything the registration transaction writes.
type RegistrationParams struct {
	SessionID  string
	Display    *model.Display
	Key        *model.DisplayKey
	Transition *model.DisplayStateTransition
	Now        time.Time
}

type CredentialStore interface {
	// CreatePairingCode stores a code hash unless an identical live hash exists,
	// in which case it returns ErrPairingCodeCollision.
	CreatePairingCode(ctx context.Context, code *model.PairingCode, now time.Time) error
	// OpenSession claims an unused, unexpired code and creates the session in one step.
	// Any miss yields model.ErrInvalidPairingCode.
	OpenSession(ctx context.Context, codeHash string, now time.Time, session *model.PairingSession) error
	GetSession(ctx context.Context, id string) (*model.PairingSession, error)
	// Register runs the whole registration as one unit; uniqueness failures surface as
	// model.ErrSlugTaken, model.ErrFingerprintTaken or model.ErrSessionConsumed.
	Register(ctx context.Context, params RegistrationParams) error
	ListTransitions(ctx context.Context, displayID string) ([]model.DisplayStateTransition, error)
	// DeleteExpired purges stale unused codes and abandoned open sessions.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// NonceLedger records consumed (display, nonce) pairs. Consume must fail with
// model.ErrNonceReplayed on a duplicate, enforced by the backing store.
type NonceLedger interface {
	Consume(ctx context.Context, displayID, nonce string, expiresAt time.Time) error
}

// NoncePurger is implemented by ledgers whose entries do not expire on their own.
type NoncePurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type ScheduleRepository interface {
	ListByDisplay(ctx context.Context, displayID string) ([]model.Schedule, error)
}

type PlaylistRepository interface {
	GetByID(ctx context.Context, id string) (*model.Playlist, error)
	// ListItems returns items in ascending sequence order.
	ListItems(ctx context.Context, playlistID string) ([]model.PlaylistItem, error)
}

type ContentRepository interface {
	// GetByIDs loads every requested record in a single query.
	GetByIDs(ctx context.Context, ids []string) ([]model.Content, error)
}

type SettingRepository interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}
