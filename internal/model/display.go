package model

import (
	"errors"
	"time"
)

// RegistrationState is a display's position in the trust lifecycle.
type RegistrationState string

const (
	StateUnregistered RegistrationState = "unregistered"
	StateRegistered   RegistrationState = "registered"
	StateActive       RegistrationState = "active"
)

// allowedTransitions lists every legal lifecycle edge. unregistered -> active is absent on purpose.
var allowedTransitions = map[RegistrationState][]RegistrationState{
	StateUnregistered: {StateRegistered},
	StateRegistered:   {StateActive},
}

// CanTransition reports whether a display may move from one state to another.
func CanTransition(from, to RegistrationState) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Display represents a registered signage screen
type Display struct {
	ID               string            `db:"id" json:"id"`
	Name             string            `db:"name" json:"name"`
	Slug             string            `db:"slug" json:"slug"`
	Fingerprint      string            `db:"fingerprint" json:"-"`
	ResolutionWidth  int               `db:"resolution_width" json:"resolutionWidth"`
	ResolutionHeight int               `db:"resolution_height" json:"resolutionHeight"`
	Output           string            `db:"output" json:"output"`
	Orientation      string            `db:"orientation" json:"orientation"`
	State            RegistrationState `db:"registration_state" json:"registrationState"`
	LastSeenAt       *time.Time        `db:"last_seen_at" json:"lastSeenAt,omitempty"`
	RefreshNonce     int64             `db:"refresh_nonce" json:"refreshNonce"`
	CreatedAt        time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updatedAt"`
}

// IsActive returns true if the display has completed activation
func (d *Display) IsActive() bool {
	return d.State == StateActive
}

// DisplayStateTransition is an append-only audit record of a lifecycle change.
type DisplayStateTransition struct {
	ID        string            `db:"id" json:"id"`
	DisplayID string            `db:"display_id" json:"displayId"`
	FromState RegistrationState `db:"from_state" json:"fromState"`
	ToState   RegistrationState `db:"to_state" json:"toState"`
	Reason    string            `db:"reason" json:"reason"`
	Actor     string            `db:"actor" json:"actor"`
	CreatedAt time.Time         `db:"created_at" json:"createdAt"`
}

// Transition reasons and actors recorded in the audit log
const (
	ReasonRegistration = "registration"
	ReasonChallenge    = "challenge_verified"

	ActorDisplay = "display"
)

var (
	// ErrDisplayNotFound is returned when no display matches the slug or id
	ErrDisplayNotFound = errors.New("display not found")

	// ErrInvalidTransition is returned when a lifecycle change skips or reverses a state
	ErrInvalidTransition = errors.New("invalid registration state transition")

	// ErrDisplayNotRegistered is returned when an unregistered display asks for a challenge
	ErrDisplayNotRegistered = errors.New("display is not registered")
)
