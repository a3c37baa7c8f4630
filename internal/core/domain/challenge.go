package domain

import "time"

// VerificationChallenge is the one-time email verification code record.
// At most one live challenge exists per identifier; issuing a new code
// replaces any prior record so an old code can never be redeemed after a
// resend. The persisted fields are exactly identifier, code, attempts and
// expiry.
type VerificationChallenge struct {
	Identifier string
	Code       string
	Attempts   int
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// ExpiredAt reports whether the challenge is past its expiry at the given
// instant.
func (c VerificationChallenge) ExpiredAt(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
