package match

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes of entropy per token. 32 bytes keeps the confirmation link
// unguessable even under offline enumeration.
const tokenBytes = 32

// NewToken returns an opaque URL-safe token. The token is the sole credential
// for confirming a match, never stored anywhere a donor-facing page could
// leak it.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate match token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
