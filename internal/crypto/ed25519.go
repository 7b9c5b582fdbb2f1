package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Ed25519Signer signs 01 REST requests. The configured private key is the
// hex-encoded 32-byte seed (an optional 0x prefix is accepted).
type Ed25519Signer struct {
	key ed25519.PrivateKey
}

// NewEd25519Signer parses the hex seed and derives the key pair.
func NewEd25519Signer(hexSeed string) (*Ed25519Signer, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(hexSeed, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto: decode ed25519 seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("crypto: ed25519 seed is %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	return &Ed25519Signer{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// PublicKey returns the hex-encoded public key, used as the account
// identifier on 01.
func (s *Ed25519Signer) PublicKey() string {
	return hex.EncodeToString(s.key.Public().(ed25519.PublicKey))
}

// Headers returns the authentication headers for a 01 REST request. The
// signature covers timestamp+method+path+body and is base64 encoded.
func (s *Ed25519Signer) Headers(method, path, body string) map[string]string {
	return s.HeadersAt(method, path, body, time.Now().UnixMilli())
}

// HeadersAt is like Headers but with a caller-supplied millisecond timestamp,
// used for deterministic tests.
func (s *Ed25519Signer) HeadersAt(method, path, body string, tsMillis int64) map[string]string {
	ts := strconv.FormatInt(tsMillis, 10)
	sig := ed25519.Sign(s.key, []byte(ts+method+path+body))

	return map[string]string{
		"X-Public-Key": s.PublicKey(),
		"X-Timestamp":  ts,
		"X-Signature":  base64.StdEncoding.EncodeToString(sig),
	}
}
