package model

import (
	"errors"
	"time"
)

// KeyStatus marks whether a key may be used for verification.
type KeyStatus string

const (
	KeyStatusActive  KeyStatus = "active"
	KeyStatusRevoked KeyStatus = "revoked"
)

// Supported signature algorithms
const (
	AlgorithmEd25519   = "ed25519"
	AlgorithmECDSAP256 = "ecdsa-p256"
)

// DisplayKey is a device public key enrolled for a display
type DisplayKey struct {
	ID        string    `db:"id" json:"id"`
	DisplayID string    `db:"display_id" json:"displayId"`
	Algorithm string    `db:"algorithm" json:"algorithm"`
	PublicKey string    `db:"public_key" json:"publicKey"`
	Status    KeyStatus `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// UsableBy reports whether the key is active and owned by the given display.
func (k *DisplayKey) UsableBy(displayID string) bool {
	return k.Status == KeyStatusActive && k.DisplayID == displayID
}

var (
	// ErrKeyNotFound is returned when a key id does not exist
	ErrKeyNotFound = errors.New("display key not found")

	// ErrUnsupportedAlgorithm is returned for key algorithms other than ed25519 / ecdsa-p256
	ErrUnsupportedAlgorithm = errors.New("unsupported key algorithm")
)
