package model

import (
	"errors"
	"time"
)

// AuthNonce is a (display, nonce) pair consumed by a signed request.
type AuthNonce struct {
	DisplayID string    `db:"display_id" json:"displayId"`
	Nonce     string    `db:"nonce" json:"nonce"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
}

// Signed-request headers
const (
	HeaderKeyID      = "X-Display-Key-Id"
	HeaderTimestamp  = "X-Display-Timestamp"
	HeaderNonce      = "X-Display-Nonce"
	HeaderSignature  = "X-Display-Signature"
	HeaderBodySHA256 = "X-Display-Body-Sha256"
	HeaderSlug       = "X-Display-Slug"
)

// CreateChallengeRequest is the request body for POST /auth/challenges
type CreateChallengeRequest struct {
	DisplaySlug string `json:"displaySlug"`
	KeyID       string `json:"keyId"`
}

// CreateChallengeResponse carries the stateless challenge token
type CreateChallengeResponse struct {
	ChallengeToken string    `json:"challengeToken"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// VerifyChallengeRequest is the request body for POST /auth/challenges/{token}/verify
type VerifyChallengeRequest struct {
	DisplaySlug string `json:"displaySlug"`
	KeyID       string `json:"keyId"`
	Signature   string `json:"signature"`
}

var (
	// ErrUnauthorized is the single category surfaced for every authentication failure.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNonceReplayed is returned by the nonce ledger when a pair was already consumed
	ErrNonceReplayed = errors.New("nonce already used")

	// ErrInvalidSignature is returned when a signature does not verify
	ErrInvalidSignature = errors.New("invalid signature")
)

// Auth API error codes (used in HTTP responses)
const (
	CodeValidation = "VALIDATION_ERROR"
)
