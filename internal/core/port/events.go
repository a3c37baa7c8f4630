package port

import (
	"context"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
)

// EventPublisher fans domain events out to the message bus. Publish failures
// are logged and never block the triggering operation.
type EventPublisher interface {
	PublishIdentityConfirmed(ctx context.Context, event domain.IdentityConfirmedEvent) error
	PublishCheckoutSessionCreated(ctx context.Context, event domain.CheckoutSessionCreatedEvent) error
	PublishTeamProvisioned(ctx context.Context, event domain.TeamProvisionedEvent) error
	PublishProvisioningConflict(ctx context.Context, event domain.ProvisioningConflictEvent) error
}
