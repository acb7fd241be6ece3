package model

import (
	"errors"
	"regexp"
	"time"
)

// PairingCode is a staff-issued, single-use secret that authorizes starting registration.
// Only the SHA-256 of the human-entered code is stored.
type PairingCode struct {
	ID        string     `db:"id" json:"id"`
	CodeHash  string     `db:"code_hash" json:"-"`
	ExpiresAt time.Time  `db:"expires_at" json:"expiresAt"`
	UsedAt    *time.Time `db:"used_at" json:"usedAt,omitempty"`
	IssuedBy  string     `db:"issued_by" json:"issuedBy"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

// SessionState is the lifecycle of a pairing session.
type SessionState string

const (
	SessionOpen      SessionState = "open"
	SessionCompleted SessionState = "completed"
)

// PairingSession bridges a consumed pairing code to exactly one registration attempt.
type PairingSession struct {
	ID                 string       `db:"id" json:"id"`
	PairingCodeID      string       `db:"pairing_code_id" json:"pairingCodeId"`
	ChallengeNonce     string       `db:"challenge_nonce" json:"challengeNonce"`
	ChallengeExpiresAt time.Time    `db:"challenge_expires_at" json:"challengeExpiresAt"`
	State              SessionState `db:"state" json:"state"`
	CreatedAt          time.Time    `db:"created_at" json:"createdAt"`
}

// IsOpenAt returns true if the session can still be used for registration at t
func (s *PairingSession) IsOpenAt(t time.Time) bool {
	return s.State == SessionOpen && t.Before(s.ChallengeExpiresAt)
}

// Slug constraints handed to displays when a session opens
const (
	SlugPattern   = `^[a-z0-9]+(?:-[a-z0-9]+)*$`
	SlugMinLength = 3
	SlugMaxLength = 63

	PairingCodeLength = 6
)

var slugRegexp = regexp.MustCompile(SlugPattern)

// ValidSlug reports whether slug satisfies the URL-safe slug constraints.
func ValidSlug(slug string) bool {
	return len(slug) >= SlugMinLength && len(slug) <= SlugMaxLength && slugRegexp.MatchString(slug)
}

// ValidPairingCode reports whether code is exactly six ASCII digits.
func ValidPairingCode(code string) bool {
	if len(code) != PairingCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// SlugConstraints is returned with a new pairing session.
type SlugConstraints struct {
	Pattern   string `json:"pattern"`
	MinLength int    `json:"minLength"`
	MaxLength int    `json:"maxLength"`
}

// DefaultSlugConstraints mirrors ValidSlug.
func DefaultSlugConstraints() SlugConstraints {
	return SlugConstraints{Pattern: SlugPattern, MinLength: SlugMinLength, MaxLength: SlugMaxLength}
}

// OpenSessionRequest is the request body for POST /registration-sessions
type OpenSessionRequest struct {
	RegistrationCode string `json:"registrationCode"`
}

// OpenSessionResponse is returned after a pairing code is redeemed
type OpenSessionResponse struct {
	RegistrationSessionID string          `json:"registrationSessionId"`
	ExpiresAt             time.Time       `json:"expiresAt"`
	ChallengeNonce        string          `json:"challengeNonce"`
	Constraints           SlugConstraints `json:"constraints"`
}

// RegisterRequest is the request body for POST /registrations
type RegisterRequest struct {
	RegistrationSessionID string `json:"registrationSessionId"`
	DisplaySlug           string `json:"displaySlug"`
	DisplayName           string `json:"displayName"`
	ResolutionWidth       int    `json:"resolutionWidth"`
	ResolutionHeight      int    `json:"resolutionHeight"`
	DisplayOutput         string `json:"displayOutput"`
	DisplayFingerprint    string `json:"displayFingerprint"`
	Orientation           string `json:"orientation,omitempty"`
	PublicKey             string `json:"publicKey"`
	KeyAlgorithm          string `json:"keyAlgorithm"`
	RegistrationSignature string `json:"registrationSignature"`
}

// RegisterResponse is returned with 201 after successful registration
type RegisterResponse struct {
	DisplayID   string            `json:"displayId"`
	DisplaySlug string            `json:"displaySlug"`
	KeyID       string            `json:"keyId"`
	State       RegistrationState `json:"state"`
}

// IssuedPairingCode is returned to staff exactly once; the plain code is never stored.
type IssuedPairingCode struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

var (
	// ErrInvalidPairingCode covers wrong, used and expired codes alike to avoid enumeration
	ErrInvalidPairingCode = errors.New("invalid or expired registration code")

	// ErrSessionNotFound is returned when the registration session id is unknown
	ErrSessionNotFound = errors.New("registration session not found")

	// ErrSessionClosed is returned when the session is completed or expired
	ErrSessionClosed = errors.New("registration session is closed or expired")
)
