package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"signagehub/internal/clock"
	"signagehub/internal/logging"
	"signagehub/internal/model"
	"signagehub/internal/repository"
	"signagehub/internal/signature"
)

// Rejection reasons. They are logged and counted, never returned to the caller.
const (
	reasonMissingHeaders   = "missing_headers"
	reasonSlugMismatch     = "slug_mismatch"
	reasonBadTimestamp     = "bad_timestamp"
	reasonStaleTimestamp   = "stale_timestamp"
	reasonUnknownDisplay   = "unknown_display"
	reasonDisplayNotActive = "display_not_active"
	reasonUnknownKey       = "unknown_key"
	reasonKeyUnusable      = "key_unusable"
	reasonBodyHashMismatch = "body_hash_mismatch"
	reasonNonceReplayed    = "nonce_replayed"
	reasonBadSignature     = "bad_signature"
)

// SignedRequest is the transport-neutral view of a call made by a display.
type SignedRequest struct {
	Method        string
	PathWithQuery string
	PathSlug      string

	KeyID      string
	Timestamp  string
	Nonce      string
	Signature  string
	BodySHA256 string
	Slug       string

	Body []byte
}

// SignedRequestFromHTTP copies the display headers out of r. The body must be read by the caller.
func SignedRequestFromHTTP(r *http.Request, pathSlug string, body []byte) *SignedRequest {
	return &SignedRequest{
		Method:        r.Method,
		PathWithQuery: r.URL.RequestURI(),
		PathSlug:      pathSlug,
		KeyID:         r.Header.Get(model.HeaderKeyID),
		Timestamp:     r.Header.Get(model.HeaderTimestamp),
		Nonce:         r.Header.Get(model.HeaderNonce),
		Signature:     r.Header.Get(model.HeaderSignature),
		BodySHA256:    r.Header.Get(model.HeaderBodySHA256),
		Slug:          r.Header.Get(model.HeaderSlug),
		Body:          body,
	}
}

type VerifierConfig struct {
	ClockSkew time.Duration
	NonceTTL  time.Duration
}

// Verifier authenticates every call from an active display.
type Verifier struct {
	displays repository.DisplayRepository
	keys     repository.DisplayKeyRepository
	ledger   repository.NonceLedger
	clock    clock.Clock
	cfg      VerifierConfig
	logger   logging.Logger
	recorder Recorder
}

func NewVerifier(
	displays repository.DisplayRepository,
	keys repository.DisplayKeyRepository,
	ledger repository.NonceLedger,
	clk clock.Clock,
	cfg VerifierConfig,
	logger logging.Logger,
	recorder Recorder,
) *Verifier {
	return &Verifier{
		displays: displays,
		keys:     keys,
		ledger:   ledger,
		clock:    clk,
		cfg:      cfg,
		logger:   logger,
		recorder: recorderOrNop(recorder),
	}
}

// Verify runs the checks in order and stops at the first failure. It returns
// model.ErrDisplayNotFound for an unknown slug, model.ErrUnauthorized for every
// other rejection, and storage errors unchanged.
func (v *Verifier) Verify(ctx context.Context, req *SignedRequest) (*model.Display, error) {
	// 1. headers
	if req.KeyID == "" || req.Timestamp == "" || req.Nonce == "" ||
		req.Signature == "" || req.BodySHA256 == "" || req.Slug == "" {
		return nil, v.reject(reasonMissingHeaders, req, nil)
	}
	if req.Slug != req.PathSlug {
		return nil, v.reject(reasonSlugMismatch, req, nil)
	}

	// 2. freshness
	now := v.clock.Now()
	ts, err := parseRequestTimestamp(req.Timestamp)
	if err != nil {
		return nil, v.reject(reasonBadTimestamp, req, err)
	}
	if skew := now.Sub(ts); skew > v.cfg.ClockSkew || skew < -v.cfg.ClockSkew {
		return nil, v.reject(reasonStaleTimestamp, req, nil)
	}

	// 3. display
	display, err := v.displays.GetBySlug(ctx, req.Slug)
	if err != nil {
		if errors.Is(err, model.ErrDisplayNotFound) {
			v.reject(reasonUnknownDisplay, req, nil)
			return nil, model.ErrDisplayNotFound
		}
		return nil, err
	}
	if display.State != model.StateActive {
		return nil, v.reject(reasonDisplayNotActive, req, nil)
	}

	// 4. key
	if _, err := uuid.Parse(req.KeyID); err != nil {
		return nil, v.reject(reasonUnknownKey, req, err)
	}
	key, err := v.keys.GetByID(ctx, req.KeyID)
	if err != nil {
		if errors.Is(err, model.ErrKeyNotFound) {
			return nil, v.reject(reasonUnknownKey, req, nil)
		}
		return nil, err
	}
	if !key.UsableBy(display.ID) {
		return nil, v.reject(reasonKeyUnusable, req, nil)
	}

	// 5. body hash
	expected := signature.EmptyBodyHash
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		expected = signature.BodyHash(req.Body)
	}
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(req.BodySHA256)), []byte(expected)) != 1 {
		return nil, v.reject(reasonBodyHashMismatch, req, nil)
	}

	// 6. replay
	if err := v.ledger.Consume(ctx, display.ID, req.Nonce, now.Add(v.cfg.NonceTTL)); err != nil {
		if errors.Is(err, model.ErrNonceReplayed) {
			return nil, v.reject(reasonNonceReplayed, req, nil)
		}
		return nil, err
	}

	// 7. signature
	payload := signature.RequestPayload(req.Method, req.PathWithQuery, req.Slug, req.KeyID, req.Timestamp, req.Nonce, expected)
	if err := signature.Verify(key.Algorithm, key.PublicKey, payload, req.Signature); err != nil {
		return nil, v.reject(reasonBadSignature, req, err)
	}

	return display, nil
}

func (v *Verifier) reject(reason string, req *SignedRequest, cause error) error {
	entry := v.logger.WithFields(logging.Fields{
		"reason": reason,
		"slug":   req.PathSlug,
		"method": req.Method,
		"path":   req.PathWithQuery,
	})
	if cause != nil {
		entry = entry.WithError(cause)
	}
	entry.Warn("signed request rejected")
	v.recorder.VerifierRejected(reason)
	return model.ErrUnauthorized
}

// parseRequestTimestamp accepts RFC 3339 or integer unix milliseconds.
func parseRequestTimestamp(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
