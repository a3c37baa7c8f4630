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
	applogger "github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/infra/logger"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/infra/security"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/repository"
)

const (
	defaultCodeTTL     = 10 * time.Minute
	defaultMaxAttempts = 5

	signInManuallyMessage = "email confirmed, sign in to continue"
)

var (
	// ErrAlreadyConfirmed indicates the email has a confirmed identity; the
	// caller should sign in instead of re-registering.
	ErrAlreadyConfirmed = errors.New("email already confirmed")
	// ErrChallengeNotFound indicates no live challenge exists for the email.
	ErrChallengeNotFound = errors.New("verification code not found")
	// ErrChallengeExpired indicates the challenge outlived its validity window.
	ErrChallengeExpired = errors.New("verification code expired")
	// ErrTooManyAttempts indicates the redemption attempt limit was exhausted
	// and the challenge destroyed.
	ErrTooManyAttempts = errors.New("too many verification attempts")
	// ErrIdentityMissing indicates the challenge matched but its pending
	// identity is gone; the caller must sign up again.
	ErrIdentityMissing = errors.New("pending identity not found")
	// ErrCodeMismatch is the sentinel wrapped by CodeMismatchError.
	ErrCodeMismatch = errors.New("verification code mismatch")
	// ErrCodeDelivery indicates the mail transport failed. The stored
	// challenge survives; re-issuing overwrites it.
	ErrCodeDelivery = errors.New("verification code delivery failed")
	// ErrPasswordPolicyViolation indicates the password does not satisfy the
	// acceptance policy.
	ErrPasswordPolicyViolation = errors.New("password does not meet requirements")
)

// CodeMismatchError reports a wrong code along with how many attempts remain
// before the challenge is destroyed.
type CodeMismatchError struct {
	Remaining int
}

func (e *CodeMismatchError) Error() string {
	return fmt.Sprintf("verification code mismatch, %d attempts remaining", e.Remaining)
}

func (e *CodeMismatchError) Unwrap() error {
	return ErrCodeMismatch
}

// RedeemResult is the outcome of a successful redemption. Session is nil when
// no password was supplied or session establishment failed; Message then
// tells the caller what to do next.
type RedeemResult struct {
	Identity domain.Identity
	Session  *domain.Session
	Message  string
}

// VerificationService issues and redeems one-time email confirmation codes.
type VerificationService struct {
	identities  port.IdentityRepository
	challenges  port.ChallengeStore
	mailer      port.CodeMailer
	sessions    port.SessionMinter
	events      port.EventPublisher
	password    *security.PasswordValidator
	logger      *zap.Logger
	codeTTL     time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewVerificationService constructs the service with policy defaults.
func NewVerificationService(identities port.IdentityRepository, challenges port.ChallengeStore, mailer port.CodeMailer, validator *security.PasswordValidator) *VerificationService {
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}

	return &VerificationService{
		identities:  identities,
		challenges:  challenges,
		mailer:      mailer,
		password:    validator,
		logger:      zap.NewNop(),
		codeTTL:     defaultCodeTTL,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
	}
}

// WithSessionMinter enables session establishment on redeem-with-password.
func (s *VerificationService) WithSessionMinter(minter port.SessionMinter) *VerificationService {
	s.sessions = minter
	return s
}

// WithEventPublisher enables confirmation events.
func (s *VerificationService) WithEventPublisher(publisher port.EventPublisher) *VerificationService {
	s.events = publisher
	return s
}

// WithLogger attaches a structured logger.
func (s *VerificationService) WithLogger(log *zap.Logger) *VerificationService {
	if log != nil {
		s.logger = log
	}
	return s
}

// WithPolicy overrides the code TTL and attempt limit.
func (s *VerificationService) WithPolicy(ttl time.Duration, maxAttempts int) *VerificationService {
	if ttl > 0 {
		s.codeTTL = ttl
	}
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	return s
}

// WithClock overrides the internal clock, used in tests.
func (s *VerificationService) WithClock(clock func() time.Time) *VerificationService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// IssueCode creates or reuses an unconfirmed identity for the email and
// issues a fresh one-time code, superseding any prior code. The code travels
// only through the mailer, never back to the caller.
func (s *VerificationService) IssueCode(ctx context.Context, email, displayName, password string) error {
	email = domain.NormalizeEmail(email)
	displayName = strings.TrimSpace(displayName)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password is required")
	}

	if err := s.password.Validate(password); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	identity, err := s.identities.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lookup identity: %w", err)
	}
	if identity != nil && identity.Confirmed {
		return ErrAlreadyConfirmed
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	if identity == nil {
		identity = &domain.Identity{
			ID:           uuid.NewString(),
			Email:        email,
			DisplayName:  displayName,
			PasswordHash: passwordHash,
			CreatedAt:    now,
		}
		if err := s.identities.Create(ctx, *identity); err != nil {
			return fmt.Errorf("create identity: %w", err)
		}
	} else {
		// A retry before the first code was redeemed: refresh the stored
		// credentials in place rather than creating a duplicate.
		if err := s.identities.UpdateCredentials(ctx, identity.ID, passwordHash, displayName); err != nil {
			return fmt.Errorf("update identity credentials: %w", err)
		}
	}

	code, err := security.GenerateVerificationCode()
	if err != nil {
		return err
	}

	challenge := domain.VerificationChallenge{
		Identifier: email,
		Code:       code,
		Attempts:   0,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.codeTTL),
	}
	if err := s.challenges.Upsert(ctx, challenge, s.codeTTL); err != nil {
		return fmt.Errorf("store verification challenge: %w", err)
	}

	if err := s.mailer.SendVerificationCode(ctx, email, displayName, code, challenge.ExpiresAt); err != nil {
		// The challenge stays: the next issue call overwrites it, so a
		// transient transport failure heals on retry.
		s.logger.Warn("verification code delivery failed",
			zap.String("email", applogger.MaskEmail(email)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrCodeDelivery, err)
	}

	return nil
}

// RedeemCode validates a submitted code. The step order below is
// authoritative: it decides which error the caller sees and guarantees the
// attempt counter is persisted before the outcome is computed.
func (s *VerificationService) RedeemCode(ctx context.Context, email, code, password string) (*RedeemResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	challenge, err := s.challenges.Get(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("fetch verification challenge: %w", err)
	}

	// Exhaustion is checked before incrementing, so the call after the final
	// allowed attempt is the one that reports it and destroys the record. A
	// counter already at or past the limit counts as exhausted no matter how
	// it got there, so a crash between a past increment and delete cannot
	// lock the email out.
	if challenge.Attempts >= s.maxAttempts {
		s.deleteChallenge(ctx, email)
		return nil, ErrTooManyAttempts
	}

	attempts, err := s.challenges.IncrementAttempts(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Consumed concurrently between fetch and increment.
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("record verification attempt: %w", err)
	}

	if challenge.ExpiredAt(s.now().UTC()) {
		s.deleteChallenge(ctx, email)
		return nil, ErrChallengeExpired
	}

	if strings.TrimSpace(code) != challenge.Code {
		remaining := s.maxAttempts - attempts
		if remaining < 0 {
			remaining = 0
		}
		return nil, &CodeMismatchError{Remaining: remaining}
	}

	identity, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrIdentityMissing
		}
		return nil, fmt.Errorf("lookup identity: %w", err)
	}

	now := s.now().UTC()
	if err := s.identities.Confirm(ctx, identity.ID, now); err != nil {
		return nil, fmt.Errorf("confirm identity: %w", err)
	}
	identity.Confirmed = true

	// Single use: the challenge is gone once the code matched.
	s.deleteChallenge(ctx, email)

	s.publishConfirmed(ctx, *identity, now)

	result := &RedeemResult{Identity: *identity}

	if strings.TrimSpace(password) == "" {
		return result, nil
	}

	// Confirmation is already committed; anything that goes wrong from here
	// only downgrades the response to "sign in manually".
	session, err := s.establishSession(ctx, *identity, password)
	if err != nil {
		s.logger.Warn("session establishment after confirmation failed",
			zap.String("identity_id", identity.ID),
			zap.Error(err),
		)
		result.Message = signInManuallyMessage
		return result, nil
	}
	result.Session = session

	return result, nil
}

func (s *VerificationService) establishSession(ctx context.Context, identity domain.Identity, password string) (*domain.Session, error) {
	if s.sessions == nil {
		return nil, fmt.Errorf("session minter not configured")
	}

	ok, err := security.VerifyPassword(password, identity.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("password does not match stored credentials")
	}

	return s.sessions.MintSession(ctx, identity)
}

func (s *VerificationService) deleteChallenge(ctx context.Context, email string) {
	if err := s.challenges.Delete(ctx, email); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("delete verification challenge failed",
			zap.String("email", applogger.MaskEmail(email)),
			zap.Error(err),
		)
	}
}

func (s *VerificationService) publishConfirmed(ctx context.Context, identity domain.Identity, at time.Time) {
	if s.events == nil {
		return
	}

	event := domain.IdentityConfirmedEvent{
		EventID:     uuid.NewString(),
		IdentityID:  identity.ID,
		Email:       identity.Email,
		ConfirmedAt: at,
	}
	if err := s.events.PublishIdentityConfirmed(ctx, event); err != nil {
		s.logger.Warn("publish identity confirmed event failed",
			zap.String("identity_id", identity.ID),
			zap.Error(err),
		)
	}
}
