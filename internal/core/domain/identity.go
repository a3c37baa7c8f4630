package domain

import (
	"strings"
	"time"
)

// Identity is an account record in the identity store. It starts unconfirmed
// and is flipped to confirmed exactly once by a successful code redemption.
type Identity struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Confirmed    bool
	CreatedAt    time.Time
	ConfirmedAt  *time.Time
}

// Session is a minted login session for a confirmed identity.
type Session struct {
	IdentityID  string
	AccessToken string
	TokenType   string
	ExpiresIn   int
}

// NormalizeEmail canonicalizes an email address for use as a challenge and
// identity key. All lookups and challenge keys go through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
