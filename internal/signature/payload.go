// Package signature builds the canonical byte strings displays sign and verifies
// signatures over them with the display's enrolled public key.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Payload prefixes that domain-separate the three signed messages.
const (
	prefixRegistration = "REGISTRATION"
	prefixChallenge    = "CHALLENGE"
)

// RegistrationPayload is the message a display signs to prove possession of the submitted key.
func RegistrationPayload(sessionID, challengeNonce, slug, output, fingerprint, publicKey string) []byte {
	return join(prefixRegistration, sessionID, challengeNonce, slug, output, fingerprint, publicKey)
}

// ChallengePayload is the message a display signs to answer an activation challenge.
func ChallengePayload(token, slug, keyID string) []byte {
	return join(prefixChallenge, token, slug, keyID)
}

// RequestPayload is the message covering one signed API call.
// pathWithQuery is the request URI as sent (escaped path plus raw query).
func RequestPayload(method, pathWithQuery, slug, keyID, timestamp, nonce, bodyHash string) []byte {
	return join(strings.ToUpper(method), pathWithQuery, slug, keyID, timestamp, nonce, bodyHash)
}

// BodyHash returns the lowercase hex SHA-256 of body.
func BodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// EmptyBodyHash is BodyHash(nil), the expected header value for GET and HEAD.
var EmptyBodyHash = BodyHash(nil)

func join(parts ...string) []byte {
	return []byte(strings.Join(parts, "\n"))
}
