package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"signagehub/internal/clock"
	"signagehub/internal/logging"
	"signagehub/internal/model"
	"signagehub/internal/repository"
	"signagehub/internal/signature"
)

const (
	challengeKeyInfo  = "signagehub/challenge-token/v1"
	challengeNonceLen = 16
	// challengeLedgerPrefix keeps token ids apart from request nonces in the shared ledger.
	challengeLedgerPrefix = "challenge:"
)

// challengeClaims is the body of a challenge token.
type challengeClaims struct {
	Slug  string `json:"slug"`
	KeyID string `json:"kid"`
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

// ChallengeService issues and verifies stateless activation challenges.
type ChallengeService struct {
	displays repository.DisplayRepository
	keys     repository.DisplayKeyRepository
	ledger   repository.NonceLedger
	clock    clock.Clock
	ttl      time.Duration
	signKey  []byte
	logger   logging.Logger
	recorder Recorder
}

// NewChallengeService derives the token signing key from secret with HKDF so the
// configured secret is never used as an HMAC key directly.
func NewChallengeService(
	displays repository.DisplayRepository,
	keys repository.DisplayKeyRepository,
	ledger repository.NonceLedger,
	clk clock.Clock,
	secret string,
	ttl time.Duration,
	logger logging.Logger,
	recorder Recorder,
) (*ChallengeService, error) {
	signKey, err := deriveKey(secret, challengeKeyInfo)
	if err != nil {
		return nil, err
	}
	return &ChallengeService{
		displays: displays,
		keys:     keys,
		ledger:   ledger,
		clock:    clk,
		ttl:      ttl,
		signKey:  signKey,
		logger:   logger,
		recorder: recorderOrNop(recorder),
	}, nil
}

func deriveKey(secret, info string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("challenge token secret is empty")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive challenge key: %w", err)
	}
	return key, nil
}

// CreateChallenge issues a token for a registered or active display holding an active key.
func (s *ChallengeService) CreateChallenge(ctx context.Context, req *model.CreateChallengeRequest) (*model.CreateChallengeResponse, error) {
	slug := strings.TrimSpace(req.DisplaySlug)
	keyID := strings.TrimSpace(req.KeyID)
	if slug == "" || keyID == "" {
		return nil, model.NewValidationError("displaySlug and keyId are required")
	}

	display, key, err := s.loadDisplayAndKey(ctx, slug, keyID)
	if err != nil {
		return nil, err
	}
	if display.State == model.StateUnregistered {
		return nil, s.reject("challenge_unregistered", slug, model.ErrDisplayNotRegistered)
	}

	nonce, err := randomToken(challengeNonceLen)
	if err != nil {
		return nil, fmt.Errorf("generate challenge nonce: %w", err)
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.ttl)
	claims := challengeClaims{
		Slug:  display.Slug,
		KeyID: key.ID,
		Nonce: nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	if err != nil {
		return nil, fmt.Errorf("sign challenge token: %w", err)
	}

	s.logger.WithFields(logging.Fields{"display_id": display.ID, "key_id": key.ID}).Debug("challenge issued")
	// NumericDate truncates to seconds; report the expiry the token actually carries.
	return &model.CreateChallengeResponse{ChallengeToken: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// VerifyChallenge checks the token and the device signature, consumes the token,
// and activates a registered display. An active display only refreshes liveness.
func (s *ChallengeService) VerifyChallenge(ctx context.Context, token string, req *model.VerifyChallengeRequest) error {
	slug := strings.TrimSpace(req.DisplaySlug)
	keyID := strings.TrimSpace(req.KeyID)
	if token == "" || slug == "" || keyID == "" || req.Signature == "" {
		return model.NewValidationError("challengeToken, displaySlug, keyId and signature are required")
	}

	claims, err := s.parseToken(token)
	if err != nil {
		return s.reject("challenge_token_invalid", slug, err)
	}
	if claims.Slug != slug || claims.KeyID != keyID {
		return s.reject("challenge_token_mismatch", slug, nil)
	}

	display, key, err := s.loadDisplayAndKey(ctx, slug, keyID)
	if err != nil {
		return err
	}

	payload := signature.ChallengePayload(token, slug, keyID)
	if err := signature.Verify(key.Algorithm, key.PublicKey, payload, req.Signature); err != nil {
		return s.reject("challenge_bad_signature", slug, err)
	}

	if err := s.ledger.Consume(ctx, display.ID, challengeLedgerPrefix+claims.ID, claims.ExpiresAt.Time); err != nil {
		if errors.Is(err, model.ErrNonceReplayed) {
			return s.reject("challenge_replayed", slug, err)
		}
		return err
	}

	now := s.clock.Now()
	switch display.State {
	case model.StateActive:
		if err := s.displays.TouchLastSeen(ctx, display.ID, now); err != nil {
			return err
		}
		s.logger.WithField("display_id", display.ID).Debug("challenge confirmed liveness")
		return nil
	case model.StateRegistered:
		if !model.CanTransition(display.State, model.StateActive) {
			return s.reject("challenge_invalid_transition", slug, model.ErrInvalidTransition)
		}
		activated, err := s.displays.Activate(ctx, display.ID, &model.DisplayStateTransition{
			ID:        uuid.NewString(),
			DisplayID: display.ID,
			FromState: model.StateRegistered,
			ToState:   model.StateActive,
			Reason:    model.ReasonChallenge,
			Actor:     model.ActorDisplay,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		if !activated {
			// a concurrent verification won the transition
			return s.displays.TouchLastSeen(ctx, display.ID, now)
		}
		s.recorder.DisplayActivated()
		s.logger.WithFields(logging.Fields{"display_id": display.ID, "key_id": key.ID}).Info("display activated")
		return nil
	default:
		return s.reject("challenge_invalid_transition", slug, model.ErrInvalidTransition)
	}
}

func (s *ChallengeService) parseToken(token string) (*challengeClaims, error) {
	claims := &challengeClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return s.signKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, errors.New("challenge token has no id")
	}
	return claims, nil
}

func (s *ChallengeService) loadDisplayAndKey(ctx context.Context, slug, keyID string) (*model.Display, *model.DisplayKey, error) {
	display, err := s.displays.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, model.ErrDisplayNotFound) {
			return nil, nil, s.reject("challenge_unknown_display", slug, err)
		}
		return nil, nil, err
	}
	if _, err := uuid.Parse(keyID); err != nil {
		return nil, nil, s.reject("challenge_unknown_key", slug, err)
	}
	key, err := s.keys.GetByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, model.ErrKeyNotFound) {
			return nil, nil, s.reject("challenge_unknown_key", slug, err)
		}
		return nil, nil, err
	}
	if !key.UsableBy(display.ID) {
		return nil, nil, s.reject("challenge_key_unusable", slug, nil)
	}
	return display, key, nil
}

// reject logs the precise reason and returns the generic unauthorized error.
func (s *ChallengeService) reject(reason, slug string, cause error) error {
	entry := s.logger.WithFields(logging.Fields{"reason": reason, "slug": slug})
	if cause != nil {
		entry = entry.WithError(cause)
	}
	entry.Warn("challenge rejected")
	s.recorder.VerifierRejected(reason)
	return model.ErrUnauthorized
}
