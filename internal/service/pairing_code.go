package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"signagehub/internal/logging"
	"signagehub/internal/model"
	"signagehub/internal/repository"
)

const maxPairingCodeAttempts = 5

var pairingCodeSpace = big.NewInt(1_000_000)

// IssuePairingCode creates a fresh 6-digit code on behalf of a staff user. The
// plain code is returned exactly once; only its hash is stored.
func (s *RegistrationService) IssuePairingCode(ctx context.Context, issuedBy string) (*model.IssuedPairingCode, error) {
	if issuedBy == "" {
		return nil, model.NewValidationError("issuer is required")
	}

	for attempt := 1; attempt <= maxPairingCodeAttempts; attempt++ {
		code, err := generatePairingCode()
		if err != nil {
			return nil, fmt.Errorf("generate pairing code: %w", err)
		}

		now := s.clock.Now()
		record := &model.PairingCode{
			ID:        uuid.NewString(),
			CodeHash:  hashPairingCode(code),
			ExpiresAt: now.Add(s.cfg.PairingCodeTTL),
			IssuedBy:  issuedBy,
		}
		err = s.store.CreatePairingCode(ctx, record, now)
		if errors.Is(err, repository.ErrPairingCodeCollision) {
			s.logger.WithField("attempt", attempt).Debug("pairing code collided with a live code, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.WithFields(logging.Fields{
			"pairing_code_id": record.ID,
			"issued_by":       issuedBy,
			"expires_at":      record.ExpiresAt,
		}).Info("pairing code issued")
		return &model.IssuedPairingCode{Code: code, ExpiresAt: record.ExpiresAt}, nil
	}
	return nil, fmt.Errorf("could not allocate a unique pairing code after %d attempts", maxPairingCodeAttempts)
}

func generatePairingCode() (string, error) {
	n, err := rand.Int(rand.Reader, pairingCodeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
