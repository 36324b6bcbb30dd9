package domain

import (
	"crypto/rand"
	"encoding/hex"
)

// NewSessionToken returns a 64-character hex capability token. The token's
// unguessability is the only security property the hold manager relies on;
// it is not an authenticated identity.
func NewSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// RedactSession shortens a session token for log output so a logged value
// cannot be replayed.
func RedactSession(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}
