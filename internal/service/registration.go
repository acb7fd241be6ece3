package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"signagehub/internal/clock"
	"signagehub/internal/logging"
	"signagehub/internal/model"
	"signagehub/internal/repository"
	"signagehub/internal/signature"
)

const (
	maxDisplayNameLength = 120
	maxOutputLength      = 64
	maxFingerprintLength = 256
	challengeNonceBytes  = 32

	orientationLandscape = "landscape"
	orientationPortrait  = "portrait"
)

// RegistrationConfig holds the pairing TTLs.
type RegistrationConfig struct {
	PairingCodeTTL    time.Duration
	PairingSessionTTL time.Duration
}

// RegistrationService runs the unregistered -> registered half of the trust bootstrap.
type RegistrationService struct {
	store    repository.CredentialStore
	clock    clock.Clock
	cfg      RegistrationConfig
	logger   logging.Logger
	recorder Recorder
}

func NewRegistrationService(
	store repository.CredentialStore,
	clk clock.Clock,
	cfg RegistrationConfig,
	logger logging.Logger,
	recorder Recorder,
) *RegistrationService {
	return &RegistrationService{
		store:    store,
		clock:    clk,
		cfg:      cfg,
		logger:   logger,
		recorder: recorderOrNop(recorder),
	}
}

// OpenSession redeems a pairing code. Wrong, used and expired codes are
// indistinguishable to the caller.
func (s *RegistrationService) OpenSession(ctx context.Context, code string) (*model.OpenSessionResponse, error) {
	code = strings.TrimSpace(code)
	if !model.ValidPairingCode(code) {
		return nil, model.NewValidationError("registrationCode must be exactly 6 digits")
	}

	nonce, err := randomToken(challengeNonceBytes)
	if err != nil {
		return nil, fmt.Errorf("generate challenge nonce: %w", err)
	}

	now := s.clock.Now()
	session := &model.PairingSession{
		ID:                 uuid.NewString(),
		ChallengeNonce:     nonce,
		ChallengeExpiresAt: now.Add(s.cfg.PairingSessionTTL),
	}

	if err := s.store.OpenSession(ctx, hashPairingCode(code), now, session); err != nil {
		if errors.Is(err, model.ErrInvalidPairingCode) {
			s.logger.WithField("reason", "code_not_claimable").Info("pairing session refused")
			return nil, model.ErrInvalidPairingCode
		}
		return nil, err
	}

	s.logger.WithFields(logging.Fields{
		"session_id":      session.ID,
		"pairing_code_id": session.PairingCodeID,
	}).Info("pairing session opened")

	return &model.OpenSessionResponse{
		RegistrationSessionID: session.ID,
		ExpiresAt:             session.ChallengeExpiresAt,
		ChallengeNonce:        session.ChallengeNonce,
		Constraints:           model.DefaultSlugConstraints(),
	}, nil
}

// Register enrolls a display and its first key after proof of possession.
func (s *RegistrationService) Register(ctx context.Context, req *model.RegisterRequest) (*model.RegisterResponse, error) {
	if err := normalizeRegisterRequest(req); err != nil {
		s.recorder.RegistrationResult("invalid")
		return nil, err
	}

	session, err := s.store.GetSession(ctx, req.RegistrationSessionID)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			s.recorder.RegistrationResult("invalid")
			return nil, model.ErrSessionClosed
		}
		return nil, err
	}
	now := s.clock.Now()
	if !session.IsOpenAt(now) {
		s.recorder.RegistrationResult("invalid")
		return nil, model.ErrSessionClosed
	}

	payload := signature.RegistrationPayload(
		session.ID, session.ChallengeNonce, req.DisplaySlug,
		req.DisplayOutput, req.DisplayFingerprint, req.PublicKey,
	)
	if err := signature.Verify(req.KeyAlgorithm, req.PublicKey, payload, req.RegistrationSignature); err != nil {
		s.logger.WithFields(logging.Fields{"session_id": session.ID, "error": err}).Warn("registration signature rejected")
		s.recorder.RegistrationResult("bad_signature")
		return nil, model.ErrUnauthorized
	}

	displayID := uuid.NewString()
	display := &model.Display{
		ID:               displayID,
		Name:             req.DisplayName,
		Slug:             req.DisplaySlug,
		Fingerprint:      req.DisplayFingerprint,
		ResolutionWidth:  req.ResolutionWidth,
		ResolutionHeight: req.ResolutionHeight,
		Output:           req.DisplayOutput,
		Orientation:      req.Orientation,
		State:            model.StateRegistered,
	}
	key := &model.DisplayKey{
		ID:        uuid.NewString(),
		DisplayID: displayID,
		Algorithm: req.KeyAlgorithm,
		PublicKey: req.PublicKey,
		Status:    model.KeyStatusActive,
	}
	transition := &model.DisplayStateTransition{
		ID:        uuid.NewString(),
		DisplayID: displayID,
		FromState: model.StateUnregistered,
		ToState:   model.StateRegistered,
		Reason:    model.ReasonRegistration,
		Actor:     model.ActorDisplay,
		CreatedAt: now,
	}

	err = s.store.Register(ctx, repository.RegistrationParams{
		SessionID:  session.ID,
		Display:    display,
		Key:        key,
		Transition: transition,
		Now:        now,
	})
	if err != nil {
		switch {
		case model.IsConflict(err):
			s.recorder.RegistrationResult("conflict")
			s.logger.WithFields(logging.Fields{"slug": req.DisplaySlug, "error": err}).Info("registration conflict")
			return nil, err
		case errors.Is(err, model.ErrSessionClosed), errors.Is(err, model.ErrSessionNotFound):
			s.recorder.RegistrationResult("invalid")
			return nil, model.ErrSessionClosed
		}
		s.recorder.RegistrationResult("error")
		return nil, err
	}

	s.recorder.RegistrationResult("registered")
	s.logger.WithFields(logging.Fields{
		"display_id": displayID,
		"slug":       display.Slug,
		"key_id":     key.ID,
		"algorithm":  key.Algorithm,
	}).Info("display registered")

	return &model.RegisterResponse{
		DisplayID:   displayID,
		DisplaySlug: display.Slug,
		KeyID:       key.ID,
		State:       model.StateRegistered,
	}, nil
}

// normalizeRegisterRequest trims inputs in place and rejects anything malformed.
func normalizeRegisterRequest(req *model.RegisterRequest) error {
	req.RegistrationSessionID = strings.TrimSpace(req.RegistrationSessionID)
	req.DisplaySlug = strings.TrimSpace(req.DisplaySlug)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.DisplayOutput = strings.TrimSpace(req.DisplayOutput)
	req.DisplayFingerprint = strings.TrimSpace(req.DisplayFingerprint)
	req.KeyAlgorithm = strings.ToLower(strings.TrimSpace(req.KeyAlgorithm))
	req.Orientation = strings.ToLower(strings.TrimSpace(req.Orientation))

	switch {
	case req.RegistrationSessionID == "":
		return model.NewValidationError("registrationSessionId is required")
	case uuid.Validate(req.RegistrationSessionID) != nil:
		return model.NewValidationError("registrationSessionId must be a UUID")
	case !model.ValidSlug(req.DisplaySlug):
		return model.NewValidationError(fmt.Sprintf(
			"displaySlug must match %s and be %d-%d characters",
			model.SlugPattern, model.SlugMinLength, model.SlugMaxLength))
	case req.DisplayName == "" || len(req.DisplayName) > maxDisplayNameLength:
		return model.NewValidationError(fmt.Sprintf("displayName is required and at most %d characters", maxDisplayNameLength))
	case req.ResolutionWidth <= 0 || req.ResolutionHeight <= 0:
		return model.NewValidationError("resolutionWidth and resolutionHeight must be positive")
	case req.DisplayOutput == "" || len(req.DisplayOutput) > maxOutputLength:
		return model.NewValidationError("displayOutput is required")
	case req.DisplayFingerprint == "" || len(req.DisplayFingerprint) > maxFingerprintLength:
		return model.NewValidationError("displayFingerprint is required")
	case req.RegistrationSignature == "":
		return model.NewValidationError("registrationSignature is required")
	}

	switch req.Orientation {
	case "":
		req.Orientation = orientationLandscape
	case orientationLandscape, orientationPortrait:
	default:
		return model.NewValidationError("orientation must be landscape or portrait")
	}

	if req.KeyAlgorithm != model.AlgorithmEd25519 && req.KeyAlgorithm != model.AlgorithmECDSAP256 {
		return model.NewValidationError("keyAlgorithm must be ed25519 or ecdsa-p256")
	}
	if _, err := signature.ParsePublicKey(req.KeyAlgorithm, req.PublicKey); err != nil {
		return model.NewValidationError("publicKey is not a valid " + req.KeyAlgorithm + " public key")
	}
	return nil
}

func hashPairingCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
