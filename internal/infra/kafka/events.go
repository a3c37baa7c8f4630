package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/port"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/infra/config"
	applogger "github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/infra/logger"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if requestID, ok := ctx.Value(applogger.RequestIDKey{}).(string); ok && requestID != "" {
		metadata["request_id"] = requestID
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishIdentityConfirmed publishes roster.identity.confirmed events.
func (p *EventPublisher) PublishIdentityConfirmed(ctx context.Context, event domain.IdentityConfirmedEvent) error {
	payload := struct {
		IdentityID  string         `json:"identity_id"`
		Email       string         `json:"email"`
		ConfirmedAt time.Time      `json:"confirmed_at"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		IdentityID:  event.IdentityID,
		Email:       applogger.MaskEmail(event.Email),
		ConfirmedAt: event.ConfirmedAt.UTC(),
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, "roster.identity.confirmed", event.ConfirmedAt, payload)
}

// PublishCheckoutSessionCreated publishes roster.checkout.created events.
func (p *EventPublisher) PublishCheckoutSessionCreated(ctx context.Context, event domain.CheckoutSessionCreatedEvent) error {
	payload := struct {
		SessionID   string         `json:"session_id"`
		RequesterID string         `json:"requester_id"`
		Mode        string         `json:"mode"`
		TeamID      string         `json:"team_id,omitempty"`
		Slug        string         `json:"slug,omitempty"`
		Trial       bool           `json:"trial"`
		CreatedAt   time.Time      `json:"created_at"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		SessionID:   event.SessionID,
		RequesterID: event.RequesterID,
		Mode:        string(event.Mode),
		TeamID:      event.TeamID,
		Slug:        event.Slug,
		Trial:       event.Trial,
		CreatedAt:   event.CreatedAt.UTC(),
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, "roster.checkout.created", event.CreatedAt, payload)
}

// PublishTeamProvisioned publishes roster.team.provisioned events.
func (p *EventPublisher) PublishTeamProvisioned(ctx context.Context, event domain.TeamProvisionedEvent) error {
	payload := struct {
		TeamID        string         `json:"team_id"`
		Slug          string         `json:"slug,omitempty"`
		SessionID     string         `json:"session_id"`
		Mode          string         `json:"mode"`
		ProvisionedAt time.Time      `json:"provisioned_at"`
		Metadata      map[string]any `json:"metadata,omitempty"`
	}{
		TeamID:        event.TeamID,
		Slug:          event.Slug,
		SessionID:     event.SessionID,
		Mode:          string(event.Mode),
		ProvisionedAt: event.ProvisionedAt.UTC(),
		Metadata:      event.Metadata,
	}

	return p.publish(ctx, event.EventID, "roster.team.provisioned", event.ProvisionedAt, payload)
}

// PublishProvisioningConflict publishes roster.provisioning.conflict events.
func (p *EventPublisher) PublishProvisioningConflict(ctx context.Context, event domain.ProvisioningConflictEvent) error {
	payload := struct {
		SessionID  string         `json:"session_id"`
		Slug       string         `json:"slug,omitempty"`
		Reason     string         `json:"reason"`
		OccurredAt time.Time      `json:"occurred_at"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		SessionID:  event.SessionID,
		Slug:       event.Slug,
		Reason:     event.Reason,
		OccurredAt: event.OccurredAt.UTC(),
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, "roster.provisioning.conflict", event.OccurredAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
