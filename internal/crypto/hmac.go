// Package crypto provides request signing for the venue REST APIs: HMAC for
// Lighter, ed25519 for 01.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// HMACAuth holds Lighter API credentials.
type HMACAuth struct {
	Key    string
	Secret string
}

// Headers returns the authentication headers for a Lighter REST request. The
// signature is HMAC-SHA256(secret, timestamp+method+path+body), hex encoded.
func (h *HMACAuth) Headers(method, path, body string) map[string]string {
	return h.HeadersAt(method, path, body, time.Now().UnixMilli())
}

// HeadersAt is like Headers but with a caller-supplied millisecond timestamp,
// used for deterministic tests.
func (h *HMACAuth) HeadersAt(method, path, body string, tsMillis int64) map[string]string {
	ts := strconv.FormatInt(tsMillis, 10)
	sig := hmacSHA256Hex([]byte(h.Secret), ts+method+path+body)

	return map[string]string{
		"X-Api-Key":   h.Key,
		"X-Timestamp": ts,
		"X-Signature": sig,
	}
}

func hmacSHA256Hex(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
