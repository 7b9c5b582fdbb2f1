package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
)

func TestHMACHeadersDeterministic(t *testing.T) {
	auth := &HMACAuth{Key: "key-1", Secret: "secret-1"}

	a := auth.HeadersAt("POST", "/api/v1/order", `{"qty":"1"}`, 1700000000000)
	b := auth.HeadersAt("POST", "/api/v1/order", `{"qty":"1"}`, 1700000000000)
	if a["X-Signature"] != b["X-Signature"] {
		t.Fatal("same input produced different signatures")
	}
	if a["X-Api-Key"] != "key-1" || a["X-Timestamp"] != "1700000000000" {
		t.Fatalf("headers = %v", a)
	}

	// Any change to the signed material must change the signature.
	c := auth.HeadersAt("POST", "/api/v1/order", `{"qty":"2"}`, 1700000000000)
	if a["X-Signature"] == c["X-Signature"] {
		t.Fatal("different body produced identical signature")
	}
}

func TestEd25519SignerVerifies(t *testing.T) {
	seedHex := strings.Repeat("ab", 32)
	s, err := NewEd25519Signer("0x" + seedHex)
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}

	h := s.HeadersAt("DELETE", "/api/v1/order/42", "", 1700000000000)
	sig, err := base64.StdEncoding.DecodeString(h["X-Signature"])
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}

	seed, _ := hex.DecodeString(seedHex)
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	msg := []byte("1700000000000DELETE/api/v1/order/42")
	if !ed25519.Verify(pub, msg, sig) {
		t.Fatal("signature does not verify")
	}
	if h["X-Public-Key"] != hex.EncodeToString(pub) {
		t.Fatal("public key header mismatch")
	}
}

func TestEd25519SignerRejectsBadSeed(t *testing.T) {
	if _, err := NewEd25519Signer("zzzz"); err == nil {
		t.Fatal("invalid hex accepted")
	}
	if _, err := NewEd25519Signer("abcd"); err == nil {
		t.Fatal("short seed accepted")
	}
}
