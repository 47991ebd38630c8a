package services

import (
	"crypto/rand"
	"encoding/base64"
)

// stateLength is the number of random bytes in the anti-forgery state value.
const stateLength = 32

// generateState creates a random state parameter for CSRF protection.
func generateState() (string, error) {
	bytes := make([]byte, stateLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	// Use base64url encoding without padding
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
