package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/port"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/repository"
)

// ProvisioningService materializes checkout outcomes delivered by the payment
// provider. It is the only code path that creates teams, and it must tolerate
// the provider redelivering the same event any number of times.
type ProvisioningService struct {
	provisioning port.ProvisioningRepository
	events       port.EventPublisher
	logger       *zap.Logger
	now          func() time.Time
}

// NewProvisioningService constructs the webhook consumer core.
func NewProvisioningService(provisioning port.ProvisioningRepository) *ProvisioningService {
	return &ProvisioningService{
		provisioning: provisioning,
		logger:       zap.NewNop(),
		now:          time.Now,
	}
}

// WithEventPublisher enables provisioned and conflict events.
func (s *ProvisioningService) WithEventPublisher(publisher port.EventPublisher) *ProvisioningService {
	s.events = publisher
	return s
}

// WithLogger attaches a structured logger.
func (s *ProvisioningService) WithLogger(log *zap.Logger) *ProvisioningService {
	if log != nil {
		s.logger = log
	}
	return s
}

// WithClock overrides the internal clock, used in tests.
func (s *ProvisioningService) WithClock(clock func() time.Time) *ProvisioningService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// HandleCheckoutCompleted applies one confirmed checkout. A nil return tells
// the transport layer to acknowledge the delivery; a slug conflict is a
// terminal outcome recorded for reconciliation, not a retryable error.
func (s *ProvisioningService) HandleCheckoutCompleted(ctx context.Context, completed domain.CheckoutCompleted) error {
	done, err := s.provisioning.Processed(ctx, completed.SessionID)
	if err != nil {
		return fmt.Errorf("check processed session: %w", err)
	}
	if done {
		s.logger.Info("checkout session already processed",
			zap.String("session_id", completed.SessionID),
		)
		return nil
	}

	intent, requesterID, err := domain.IntentFromMetadata(completed.Metadata)
	if err != nil {
		// Metadata we wrote ourselves cannot normally fail to parse. Record
		// it so an operator can inspect the raw session, then acknowledge.
		s.logger.Error("checkout metadata unusable",
			zap.String("session_id", completed.SessionID),
			zap.Error(err),
		)
		return s.recordConflict(ctx, completed.SessionID, "", fmt.Sprintf("unusable metadata: %v", err))
	}

	switch intent.Mode {
	case domain.IntentNewTeam:
		return s.materializeTeam(ctx, completed, intent, requesterID)
	case domain.IntentExistingTeam:
		return s.renewSubscription(ctx, completed, intent)
	default:
		return s.recordConflict(ctx, completed.SessionID, "", fmt.Sprintf("unknown intent mode %q", intent.Mode))
	}
}

func (s *ProvisioningService) materializeTeam(ctx context.Context, completed domain.CheckoutCompleted, intent domain.ProvisioningIntent, requesterID string) error {
	payload := intent.NewTeam
	team := domain.Team{
		ID:         uuid.NewString(),
		Name:       payload.Name,
		SchoolName: payload.SchoolName,
		Slug:       payload.Slug,
		Branding: domain.TeamBranding{
			PrimaryColor:   payload.PrimaryColor,
			SecondaryColor: payload.SecondaryColor,
			LogoURL:        payload.LogoURL,
		},
		Status:             domain.TeamStatusActive,
		SubscriptionStatus: "active",
		CheckoutSessionID:  completed.SessionID,
		CreatedBy:          requesterID,
		CreatedAt:          s.now().UTC(),
	}

	applied, err := s.provisioning.CreateTeamFromCheckout(ctx, completed.SessionID, team)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.logger.Warn("team slug lost materialization race",
				zap.String("session_id", completed.SessionID),
				zap.String("slug", payload.Slug),
			)
			return s.recordConflict(ctx, completed.SessionID, payload.Slug, "slug taken at materialization time")
		}
		return fmt.Errorf("materialize team: %w", err)
	}
	if !applied {
		return nil
	}

	s.publishProvisioned(ctx, team.ID, team.Slug, completed.SessionID, domain.IntentNewTeam)
	return nil
}

func (s *ProvisioningService) renewSubscription(ctx context.Context, completed domain.CheckoutCompleted, intent domain.ProvisioningIntent) error {
	applied, err := s.provisioning.RenewSubscription(ctx, completed.SessionID, intent.TeamID, completed.SubscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.recordConflict(ctx, completed.SessionID, "", fmt.Sprintf("team %s missing at renewal time", intent.TeamID))
		}
		return fmt.Errorf("renew subscription: %w", err)
	}
	if !applied {
		return nil
	}

	s.publishProvisioned(ctx, intent.TeamID, "", completed.SessionID, domain.IntentExistingTeam)
	return nil
}

func (s *ProvisioningService) recordConflict(ctx context.Context, sessionID, slug, detail string) error {
	conflict := domain.ProvisioningConflict{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Slug:      slug,
		Detail:    detail,
		CreatedAt: s.now().UTC(),
	}
	if err := s.provisioning.RecordConflict(ctx, conflict); err != nil {
		// Without the conflict row the checkout would vanish, so this is the
		// one failure worth a redelivery.
		return fmt.Errorf("record provisioning conflict: %w", err)
	}

	if s.events != nil {
		event := domain.ProvisioningConflictEvent{
			EventID:    uuid.NewString(),
			SessionID:  sessionID,
			Slug:       slug,
			Reason:     detail,
			OccurredAt: s.now().UTC(),
		}
		if err := s.events.PublishProvisioningConflict(ctx, event); err != nil {
			s.logger.Warn("publish provisioning conflict event failed",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *ProvisioningService) publishProvisioned(ctx context.Context, teamID, slug, sessionID string, mode domain.IntentMode) {
	if s.events == nil {
		return
	}

	event := domain.TeamProvisionedEvent{
		EventID:       uuid.NewString(),
		TeamID:        teamID,
		Slug:          slug,
		SessionID:     sessionID,
		Mode:          mode,
		ProvisionedAt: s.now().UTC(),
	}
	if err := s.events.PublishTeamProvisioned(ctx, event); err != nil {
		s.logger.Warn("publish team provisioned event failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}
