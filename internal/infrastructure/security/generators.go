// Package security provides secure random generation and token utilities
package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// GenerateULID generates a new ULID string.
func GenerateULID() string {
	return ulid.Make().String()
}

// GenerateIdentityToken creates the client-held token that keys a visitor's
// session, partition, and pending approvals. ULIDs are lexicographically
// sortable by creation time, which keeps partition scans cheap.
func GenerateIdentityToken() string {
	return "v-" + ulid.Make().String()
}

// GenerateSecureToken generates a cryptographically secure random token suitable for URLs.
func GenerateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
