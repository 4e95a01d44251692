package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ResetTokenBytes is the amount of randomness in a reset token (256 bits).
const ResetTokenBytes = 32

// RandomHex returns n random bytes hex-encoded.
func RandomHex(n int) (string, error) {
	const op = "auth.RandomHex"

	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return hex.EncodeToString(b), nil
}
