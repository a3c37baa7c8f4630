package port

import (
	"context"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
)

// TeamRepository exposes the read surface the checkout builder needs. The
// builder never writes a team; materialization is the webhook consumer's job.
type TeamRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Team, error)
	// SlugActive reports whether the slug is already used by an active team.
	// This is the best-effort pre-check; final uniqueness is enforced again
	// transactionally at materialization time.
	SlugActive(ctx context.Context, slug string) (bool, error)
	HasRole(ctx context.Context, teamID, identityID string, role domain.MembershipRole) (bool, error)
}

// ProvisioningRepository materializes checkout outcomes. Each method keys
// idempotency on the provider session id: the first boolean return reports
// whether this call actually applied the change (false means the session was
// already processed and the call was a no-op).
type ProvisioningRepository interface {
	Processed(ctx context.Context, sessionID string) (bool, error)
	// CreateTeamFromCheckout inserts the processed-session row and the team
	// row in one transaction. Slug uniqueness is enforced by the database
	// inside that transaction; a losing duplicate returns
	// repository.ErrConflict.
	CreateTeamFromCheckout(ctx context.Context, sessionID string, team domain.Team) (bool, error)
	// RenewSubscription activates the subscription on an existing team.
	RenewSubscription(ctx context.Context, sessionID, teamID, subscriptionID string) (bool, error)
	RecordConflict(ctx context.Context, conflict domain.ProvisioningConflict) error
}
