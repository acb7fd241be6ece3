package signature_test

import (
	"errors"
	"testing"

	"signagehub/internal/model"
	"signagehub/internal/signature"
	"signagehub/internal/testutil"
)

func TestVerify_RoundTrip(t *testing.T) {
	keys := map[string]*testutil.DeviceKey{
		"ed25519":    testutil.NewEd25519Key(t),
		"ecdsa-p256": testutil.NewECDSAKey(t),
	}

	for name, key := range keys {
		t.Run(name, func(t *testing.T) {
			msg := signature.RequestPayload("GET", "/displays/lobby/manifest", "lobby", "key-1", "2026-01-01T00:00:00Z", "n-1", signature.EmptyBodyHash)
			sig := key.Sign(t, msg)

			if err := signature.Verify(key.Algorithm, key.PublicKeyPEM, msg, sig); err != nil {
				t.Fatalf("expected valid signature, got %v", err)
			}
		})
	}
}

func TestVerify_SingleFieldTamper(t *testing.T) {
	key := testutil.NewEd25519Key(t)
	base := []string{"GET", "/displays/lobby/manifest", "lobby", "key-1", "1767225600000", "nonce-abc", signature.EmptyBodyHash}
	sig := key.Sign(t, signature.RequestPayload(base[0], base[1], base[2], base[3], base[4], base[5], base[6]))

	// Flip one byte of each signed field in turn; none may verify.
	for i := 1; i < len(base); i++ {
		fields := append([]string(nil), base...)
		b := []byte(fields[i])
		b[0] ^= 0x01
		fields[i] = string(b)

		msg := signature.RequestPayload(fields[0], fields[1], fields[2], fields[3], fields[4], fields[5], fields[6])
		if err := signature.Verify(key.Algorithm, key.PublicKeyPEM, msg, sig); !errors.Is(err, model.ErrInvalidSignature) {
			t.Errorf("field %d tampered: err = %v, want ErrInvalidSignature", i, err)
		}
	}
}

func TestVerify_WrongKey(t *testing.T) {
	signer := testutil.NewECDSAKey(t)
	other := testutil.NewECDSAKey(t)
	msg := signature.ChallengePayload("token", "lobby", "key-1")

	err := signature.Verify(other.Algorithm, other.PublicKeyPEM, msg, signer.Sign(t, msg))
	if !errors.Is(err, model.ErrInvalidSignature) {
		t.Errorf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestVerify_AlgorithmMismatch(t *testing.T) {
	key := testutil.NewEd25519Key(t)
	msg := []byte("hello")

	err := signature.Verify(model.AlgorithmECDSAP256, key.PublicKeyPEM, msg, key.Sign(t, msg))
	if !errors.Is(err, signature.ErrMalformedKey) {
		t.Errorf("err = %v, want ErrMalformedKey", err)
	}
}

func TestVerify_UnsupportedAlgorithm(t *testing.T) {
	key := testutil.NewEd25519Key(t)
	err := signature.Verify("rsa", key.PublicKeyPEM, []byte("x"), "AAAA")
	if !errors.Is(err, model.ErrUnsupportedAlgorithm) {
		t.Errorf("err = %v, want ErrUnsupportedAlgorithm", err)
	}
}

func TestRegistrationPayload_Layout(t *testing.T) {
	got := string(signature.RegistrationPayload("s", "n", "slug", "HDMI-1", "fp", "pk"))
	want := "REGISTRATION\ns\nn\nslug\nHDMI-1\nfp\npk"
	if got != want {
		t.Errorf("payload = %q, want %q", got, want)
	}
}

func TestBodyHash_Empty(t *testing.T) {
	const sha256OfEmpty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if signature.EmptyBodyHash != sha256OfEmpty {
		t.Errorf("EmptyBodyHash = %s", signature.EmptyBodyHash)
	}
}
