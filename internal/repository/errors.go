package repository

import (
	"errors"

	"github.com/lib/pq"

	"signagehub/internal/database"
	"signagehub/internal/model"
)

const pgUniqueViolation = "23505"

// ErrPairingCodeCollision means a live code with the same hash already exists.
var ErrPairingCodeCollision = errors.New("pairing code collision")

// mapConstraintError turns a unique violation into the typed conflict for the
// constraint that fired. Other errors pass through unchanged.
func mapConstraintError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pgUniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case database.ConstraintDisplaySlug:
		return model.ErrSlugTaken
	case database.ConstraintDisplayFingerprint:
		return model.ErrFingerprintTaken
	case database.ConstraintSessionCode:
		return model.ErrSessionConsumed
	case database.ConstraintAuthNonce:
		return model.ErrNonceReplayed
	}
	return err
}
