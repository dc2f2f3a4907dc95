package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// SessionToken is an opaque refresh token handed to a gate device. Raw goes
// to the client once; only HashSessionToken(Raw) is persisted.
type SessionToken struct {
	Raw string
	Exp time.Time
}

// NewSessionToken returns 48 random bytes hex-encoded, valid for ttl from now.
func NewSessionToken(ttl time.Duration, now time.Time) (SessionToken, error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Raw: hex.EncodeToString(buf), Exp: now.UTC().Add(ttl)}, nil
}

func HashSessionToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
