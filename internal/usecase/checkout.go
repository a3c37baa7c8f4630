package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/port"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/repository"
)

var (
	// ErrInvalidIntent indicates the provisioning request is malformed.
	ErrInvalidIntent = errors.New("invalid provisioning intent")
	// ErrSlugTaken indicates the requested slug already belongs to an active team.
	ErrSlugTaken = errors.New("team slug already taken")
	// ErrTeamNotFound indicates the referenced team does not exist.
	ErrTeamNotFound = errors.New("team not found")
	// ErrNotTeamCoach indicates the requester lacks the coach role on the team.
	ErrNotTeamCoach = errors.New("requester is not a coach of this team")
	// ErrPaymentGateway indicates the payment provider call failed.
	ErrPaymentGateway = errors.New("payment provider unavailable")
)

// BillingPolicy holds the named billing constants. They are configuration,
// not architecture.
type BillingPolicy struct {
	PriceID               string
	TrialDays             int64
	AppBaseURL            string
	DefaultPrimaryColor   string
	DefaultSecondaryColor string
}

// CheckoutService validates provisioning intents and produces external
// payment-session references. It never mutates local state: payment
// confirmation, not request submission, is the only trigger for team
// creation.
type CheckoutService struct {
	identities port.IdentityRepository
	teams      port.TeamRepository
	gateway    port.PaymentGateway
	events     port.EventPublisher
	policy     BillingPolicy
	logger     *zap.Logger
	now        func() time.Time
}

// NewCheckoutService constructs the checkout session builder.
func NewCheckoutService(identities port.IdentityRepository, teams port.TeamRepository, gateway port.PaymentGateway, policy BillingPolicy) *CheckoutService {
	return &CheckoutService{
		identities: identities,
		teams:      teams,
		gateway:    gateway,
		policy:     policy,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
}

// WithEventPublisher enables checkout-created events.
func (s *CheckoutService) WithEventPublisher(publisher port.EventPublisher) *CheckoutService {
	s.events = publisher
	return s
}

// WithLogger attaches a structured logger.
func (s *CheckoutService) WithLogger(log *zap.Logger) *CheckoutService {
	if log != nil {
		s.logger = log
	}
	return s
}

// WithClock overrides the internal clock, used in tests.
func (s *CheckoutService) WithClock(clock func() time.Time) *CheckoutService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// BuildSession validates the intent, pre-checks slug availability, and asks
// the payment provider for a checkout session carrying enough metadata to
// materialize the team later with no other lookups.
func (s *CheckoutService) BuildSession(ctx context.Context, requesterID string, intent domain.ProvisioningIntent) (*domain.CheckoutSession, error) {
	if strings.TrimSpace(requesterID) == "" {
		return nil, fmt.Errorf("%w: requester is required", ErrInvalidIntent)
	}

	requester, err := s.identities.GetByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown requester", ErrInvalidIntent)
		}
		return nil, fmt.Errorf("lookup requester: %w", err)
	}

	var successURL, cancelURL string

	switch intent.Mode {
	case domain.IntentExistingTeam:
		team, err := s.teams.GetByID(ctx, intent.TeamID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrTeamNotFound
			}
			return nil, fmt.Errorf("lookup team: %w", err)
		}

		isCoach, err := s.teams.HasRole(ctx, team.ID, requesterID, domain.RoleCoach)
		if err != nil {
			return nil, fmt.Errorf("check team role: %w", err)
		}
		if !isCoach {
			return nil, ErrNotTeamCoach
		}

		successURL = fmt.Sprintf("%s/teams/%s/billing?checkout=success", s.policy.AppBaseURL, team.Slug)
		cancelURL = fmt.Sprintf("%s/teams/%s/billing?checkout=cancelled", s.policy.AppBaseURL, team.Slug)

	case domain.IntentNewTeam:
		if intent.NewTeam == nil {
			return nil, fmt.Errorf("%w: new team payload is required", ErrInvalidIntent)
		}

		payload := *intent.NewTeam
		payload.Name = strings.TrimSpace(payload.Name)
		payload.SchoolName = strings.TrimSpace(payload.SchoolName)
		payload.Slug = strings.ToLower(strings.TrimSpace(payload.Slug))
		switch {
		case payload.Name == "":
			return nil, fmt.Errorf("%w: team name is required", ErrInvalidIntent)
		case payload.SchoolName == "":
			return nil, fmt.Errorf("%w: school name is required", ErrInvalidIntent)
		case payload.Slug == "":
			return nil, fmt.Errorf("%w: slug is required", ErrInvalidIntent)
		}

		// Best-effort pre-check: the webhook consumer re-checks uniqueness
		// transactionally, because checkout can be abandoned and retried
		// while other slugs are in flight.
		taken, err := s.teams.SlugActive(ctx, payload.Slug)
		if err != nil {
			return nil, fmt.Errorf("check slug availability: %w", err)
		}
		if taken {
			return nil, ErrSlugTaken
		}

		if payload.PrimaryColor == "" {
			payload.PrimaryColor = s.policy.DefaultPrimaryColor
		}
		if payload.SecondaryColor == "" {
			payload.SecondaryColor = s.policy.DefaultSecondaryColor
		}
		intent.NewTeam = &payload

		// The team does not exist yet, so cancel must not land the user on a
		// URL implying it does.
		successURL = fmt.Sprintf("%s/onboarding/checkout?status=success", s.policy.AppBaseURL)
		cancelURL = fmt.Sprintf("%s/onboarding/checkout?status=cancelled", s.policy.AppBaseURL)

	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidIntent, intent.Mode)
	}

	spec := domain.CheckoutSessionSpec{
		CustomerEmail: requester.Email,
		PriceID:       s.policy.PriceID,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
		Metadata:      domain.IntentMetadata(intent, requesterID),
	}
	if intent.TrialRequested {
		spec.TrialDays = s.policy.TrialDays
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	s.publishCreated(ctx, requesterID, intent, session.ID)

	return session, nil
}

func (s *CheckoutService) publishCreated(ctx context.Context, requesterID string, intent domain.ProvisioningIntent, sessionID string) {
	if s.events == nil {
		return
	}

	event := domain.CheckoutSessionCreatedEvent{
		EventID:     uuid.NewString(),
		SessionID:   sessionID,
		RequesterID: requesterID,
		Mode:        intent.Mode,
		TeamID:      intent.TeamID,
		Trial:       intent.TrialRequested,
		CreatedAt:   s.now().UTC(),
	}
	if intent.NewTeam != nil {
		event.Slug = intent.NewTeam.Slug
	}

	if err := s.events.PublishCheckoutSessionCreated(ctx, event); err != nil {
		s.logger.Warn("publish checkout created event failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}
