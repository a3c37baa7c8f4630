package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	codeMin  = 100000
	codeSpan = 900000
)

// GenerateVerificationCode returns a 6-digit numeric code drawn uniformly
// from [100000, 999999]. A per-digit modulo generator would be biased, so the
// whole value is sampled at once.
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}

	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}
