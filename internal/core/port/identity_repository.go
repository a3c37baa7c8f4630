package port

import (
	"context"
	"time"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
)

// IdentityRepository persists account records. Emails are stored normalized;
// callers pass them through domain.NormalizeEmail first.
type IdentityRepository interface {
	Create(ctx context.Context, identity domain.Identity) error
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	// UpdateCredentials replaces the password hash and display name of an
	// unconfirmed identity in place, supporting re-registration before the
	// first code is redeemed.
	UpdateCredentials(ctx context.Context, id, passwordHash, displayName string) error
	// Confirm marks the identity confirmed. Confirming an already-confirmed
	// identity is a no-op, not an error.
	Confirm(ctx context.Context, id string, at time.Time) error
}
