// Package signature implements the HMAC request-signing scheme used by
// machine agents. A signed request carries a timestamp, the signer's type and
// id (DCI-Client-Info header), and an HMAC-SHA256 digest (DCI-Auth-Signature
// header) computed over a canonical representation of the request with the
// agent's api_secret as key.
package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

// TimestampFormat is the wire format of the client-info timestamp: UTC,
// second precision, literal Z suffix.
const TimestampFormat = "2006-01-02 15:04:05Z"

const secretBytes = 48

// GenSecret returns a new high-entropy api_secret. Secrets are generated
// server-side only and never derived from user input.
func GenSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Canonicalize builds the deterministic byte string both sides sign: method,
// path, raw query, the client-info timestamp, and a SHA-256 digest of the
// body, newline-separated. Everything in it is known before the handler runs.
func Canonicalize(method, path, rawQuery string, timestamp time.Time, body []byte) []byte {
	bodyDigest := sha256.Sum256(body)
	payload := fmt.Sprintf("%s\n%s\n%s\n%s\n%s",
		method,
		path,
		rawQuery,
		timestamp.UTC().Format(TimestampFormat),
		hex.EncodeToString(bodyDigest[:]),
	)
	return []byte(payload)
}

// Sign computes the hex HMAC-SHA256 of the canonical request under secret.
func Sign(secret string, method, path, rawQuery string, timestamp time.Time, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(Canonicalize(method, path, rawQuery, timestamp, body))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the expected signature and compares it against the
// supplied one in constant time.
func Verify(secret, provided string, method, path, rawQuery string, timestamp time.Time, body []byte) bool {
	expected := Sign(secret, method, path, rawQuery, timestamp, body)
	return hmac.Equal([]byte(expected), []byte(provided))
}
