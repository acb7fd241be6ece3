package signature

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"signagehub/internal/model"
)

var (
	ErrMalformedKey       = errors.New("malformed public key")
	ErrMalformedSignature = errors.New("malformed signature")
)

// ecdsaSignature represents the ASN.1 structure of an ECDSA signature
type ecdsaSignature struct {
	R *big.Int
	S *big.Int
}

// ParsePublicKey decodes a public key for the given algorithm.
// Accepted encodings: PEM "PUBLIC KEY" (SPKI), base64 SPKI DER, and for ed25519 also
// the raw 32-byte key in base64.
func ParsePublicKey(algorithm, encoded string) (any, error) {
	der, err := decodeKeyBytes(encoded)
	if err != nil {
		return nil, err
	}

	switch algorithm {
	case model.AlgorithmEd25519:
		if len(der) == ed25519.PublicKeySize {
			return ed25519.PublicKey(der), nil
		}
		pub, err := x509.ParsePKIXPublicKey(der)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		edPub, ok := pub.(ed25519.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an ed25519 key", ErrMalformedKey)
		}
		return edPub, nil
	case model.AlgorithmECDSAP256:
		pub, err := x509.ParsePKIXPublicKey(der)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		ecPub, ok := pub.(*ecdsa.PublicKey)
		if !ok || ecPub.Curve != elliptic.P256() {
			return nil, fmt.Errorf("%w: not a P-256 key", ErrMalformedKey)
		}
		return ecPub, nil
	default:
		return nil, model.ErrUnsupportedAlgorithm
	}
}

// Verify checks a base64 signature over message with the encoded public key.
// It returns model.ErrInvalidSignature when the signature does not match.
func Verify(algorithm, encodedKey string, message []byte, encodedSig string) error {
	pub, err := ParsePublicKey(algorithm, encodedKey)
	if err != nil {
		return err
	}
	sig, err := decodeBase64(encodedSig)
	if err != nil {
		return ErrMalformedSignature
	}

	switch key := pub.(type) {
	case ed25519.PublicKey:
		if !ed25519.Verify(key, message, sig) {
			return model.ErrInvalidSignature
		}
		return nil
	case *ecdsa.PublicKey:
		hash := sha256.Sum256(message)
		r, s, ok := splitECDSASignature(sig)
		if !ok {
			return ErrMalformedSignature
		}
		if !ecdsa.Verify(key, hash[:], r, s) {
			return model.ErrInvalidSignature
		}
		return nil
	}
	return model.ErrUnsupportedAlgorithm
}

// splitECDSASignature accepts ASN.1 DER and the 64-byte r||s form WebCrypto produces.
func splitECDSASignature(sig []byte) (*big.Int, *big.Int, bool) {
	if len(sig) == 64 {
		return new(big.Int).SetBytes(sig[:32]), new(big.Int).SetBytes(sig[32:]), true
	}
	var parsed ecdsaSignature
	rest, err := asn1.Unmarshal(sig, &parsed)
	if err != nil || len(rest) != 0 || parsed.R == nil || parsed.S == nil {
		return nil, nil, false
	}
	return parsed.R, parsed.S, true
}

func decodeKeyBytes(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrMalformedKey
	}
	if strings.HasPrefix(encoded, "-----BEGIN") {
		block, _ := pem.Decode([]byte(encoded))
		if block == nil || block.Type != "PUBLIC KEY" {
			return nil, ErrMalformedKey
		}
		return block.Bytes, nil
	}
	b, err := decodeBase64(encoded)
	if err != nil {
		return nil, ErrMalformedKey
	}
	return b, nil
}

// decodeBase64 accepts standard and URL-safe alphabets, padded or not.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("invalid base64")
}
