// Package testutil holds helpers shared by tests that need to act like a display device.
package testutil

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"testing"

	"signagehub/internal/model"
)

// DeviceKey is a display key pair that can sign canonical payloads.
type DeviceKey struct {
	Algorithm    string
	PublicKeyPEM string

	edPriv ed25519.PrivateKey
	ecPriv *ecdsa.PrivateKey
}

// NewEd25519Key generates a fresh ed25519 device key.
func NewEd25519Key(t testing.TB) *DeviceKey {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return &DeviceKey{
		Algorithm:    model.AlgorithmEd25519,
		PublicKeyPEM: encodePEM(t, pub),
		edPriv:       priv,
	}
}

// NewECDSAKey generates a fresh P-256 device key.
func NewECDSAKey(t testing.TB) *DeviceKey {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate ecdsa key: %v", err)
	}
	return &DeviceKey{
		Algorithm:    model.AlgorithmECDSAP256,
		PublicKeyPEM: encodePEM(t, &priv.PublicKey),
		ecPriv:       priv,
	}
}

// Sign returns a base64 signature over message.
func (k *DeviceKey) Sign(t testing.TB, message []byte) string {
	t.Helper()
	if k.edPriv != nil {
		return base64.StdEncoding.EncodeToString(ed25519.Sign(k.edPriv, message))
	}
	hash := sha256.Sum256(message)
	sig, err := ecdsa.SignASN1(rand.Reader, k.ecPriv, hash[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return base64.StdEncoding.EncodeToString(sig)
}

func encodePEM(t testing.TB, pub any) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}
