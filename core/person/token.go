package person

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/pkg/errors"
)

const tokenBytes = 32

// GenerateToken returns an unguessable URL-safe token. It is bound to a
// Person at creation and never regenerated afterwards.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generating token")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
