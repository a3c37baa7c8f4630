package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/port"
	applogger "github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishIdentityConfirmed logs roster.identity.confirmed events.
func (p *StubPublisher) PublishIdentityConfirmed(_ context.Context, event domain.IdentityConfirmedEvent) error {
	payload := map[string]any{
		"identity_id":  event.IdentityID,
		"email":        applogger.MaskEmail(event.Email),
		"confirmed_at": event.ConfirmedAt,
		"metadata":     event.Metadata,
	}
	p.logEvent("roster.identity.confirmed", event.ConfirmedAt, payload)
	return nil
}

// PublishCheckoutSessionCreated logs roster.checkout.created events.
func (p *StubPublisher) PublishCheckoutSessionCreated(_ context.Context, event domain.CheckoutSessionCreatedEvent) error {
	payload := map[string]any{
		"session_id":   event.SessionID,
		"requester_id": event.RequesterID,
		"mode":         event.Mode,
		"team_id":      event.TeamID,
		"slug":         event.Slug,
		"trial":        event.Trial,
		"created_at":   event.CreatedAt,
		"metadata":     event.Metadata,
	}
	p.logEvent("roster.checkout.created", event.CreatedAt, payload)
	return nil
}

// PublishTeamProvisioned logs roster.team.provisioned events.
func (p *StubPublisher) PublishTeamProvisioned(_ context.Context, event domain.TeamProvisionedEvent) error {
	payload := map[string]any{
		"team_id":        event.TeamID,
		"slug":           event.Slug,
		"session_id":     event.SessionID,
		"mode":           event.Mode,
		"provisioned_at": event.ProvisionedAt,
		"metadata":       event.Metadata,
	}
	p.logEvent("roster.team.provisioned", event.ProvisionedAt, payload)
	return nil
}

// PublishProvisioningConflict logs roster.provisioning.conflict events.
func (p *StubPublisher) PublishProvisioningConflict(_ context.Context, event domain.ProvisioningConflictEvent) error {
	payload := map[string]any{
		"session_id":  event.SessionID,
		"slug":        event.Slug,
		"reason":      event.Reason,
		"occurred_at": event.OccurredAt,
		"metadata":    event.Metadata,
	}
	p.logEvent("roster.provisioning.conflict", event.OccurredAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
