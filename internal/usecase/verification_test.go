package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/infra/security"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/repository"
)

const strongSignupPassword = "Jav3lin!Relay#4x400"

type mockIdentityRepository struct {
	createErr       error
	createCalls     int
	createdIdentity domain.Identity

	byEmail       map[string]*domain.Identity
	byID          map[string]*domain.Identity
	getEmailErr   error
	getEmailCalls int
	getIDCalls    int

	updateCredentialsErr   error
	updateCredentialsCalls int
	updatedHash            string
	updatedDisplayName     string

	confirmErr   error
	confirmCalls int
	confirmedID  string
	confirmedAt  time.Time
}

func (m *mockIdentityRepository) Create(_ context.Context, identity domain.Identity) error {
	m.createCalls++
	m.createdIdentity = identity
	return m.createErr
}

func (m *mockIdentityRepository) GetByEmail(_ context.Context, email string) (*domain.Identity, error) {
	m.getEmailCalls++
	if m.getEmailErr != nil {
		return nil, m.getEmailErr
	}
	identity, ok := m.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *identity
	return &copied, nil
}

func (m *mockIdentityRepository) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	m.getIDCalls++
	if m.byID == nil {
		return nil, errors.New("unexpected call: GetByID")
	}
	identity, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *identity
	return &copied, nil
}

func (m *mockIdentityRepository) UpdateCredentials(_ context.Context, id, passwordHash, displayName string) error {
	m.updateCredentialsCalls++
	m.updatedHash = passwordHash
	m.updatedDisplayName = displayName
	return m.updateCredentialsErr
}

func (m *mockIdentityRepository) Confirm(_ context.Context, id string, at time.Time) error {
	m.confirmCalls++
	m.confirmedID = id
	m.confirmedAt = at
	return m.confirmErr
}

// fakeChallengeStore keeps challenges in memory with the same atomicity
// contract as the Redis store, plus per-method error injection.
type fakeChallengeStore struct {
	records map[string]*domain.VerificationChallenge

	upsertErr    error
	upsertCalls  int
	lastUpserted domain.VerificationChallenge
	lastTTL      time.Duration

	getErr error

	incrementErr   error
	incrementCalls int

	deleteErr   error
	deleteCalls int
}

func newFakeChallengeStore() *fakeChallengeStore {
	return &fakeChallengeStore{records: make(map[string]*domain.VerificationChallenge)}
}

func (f *fakeChallengeStore) Upsert(_ context.Context, challenge domain.VerificationChallenge, ttl time.Duration) error {
	f.upsertCalls++
	f.lastUpserted = challenge
	f.lastTTL = ttl
	if f.upsertErr != nil {
		return f.upsertErr
	}
	copied := challenge
	f.records[challenge.Identifier] = &copied
	return nil
}

func (f *fakeChallengeStore) Get(_ context.Context, identifier string) (*domain.VerificationChallenge, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	record, ok := f.records[identifier]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (f *fakeChallengeStore) IncrementAttempts(_ context.Context, identifier string) (int, error) {
	f.incrementCalls++
	if f.incrementErr != nil {
		return 0, f.incrementErr
	}
	record, ok := f.records[identifier]
	if !ok {
		return 0, repository.ErrNotFound
	}
	record.Attempts++
	return record.Attempts, nil
}

func (f *fakeChallengeStore) Delete(_ context.Context, identifier string) error {
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.records[identifier]; !ok {
		return repository.ErrNotFound
	}
	delete(f.records, identifier)
	return nil
}

type mockCodeMailer struct {
	err       error
	calls     int
	lastTo    string
	lastName  string
	lastCode  string
	lastUntil time.Time
}

func (m *mockCodeMailer) SendVerificationCode(_ context.Context, to, displayName, code string, expiresAt time.Time) error {
	m.calls++
	m.lastTo = to
	m.lastName = displayName
	m.lastCode = code
	m.lastUntil = expiresAt
	return m.err
}

type mockSessionMinter struct {
	session *domain.Session
	err     error
	calls   int
}

func (m *mockSessionMinter) MintSession(_ context.Context, identity domain.Identity) (*domain.Session, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.session != nil {
		copied := *m.session
		copied.IdentityID = identity.ID
		return &copied, nil
	}
	return &domain.Session{IdentityID: identity.ID, AccessToken: "token", TokenType: "Bearer", ExpiresIn: 3600}, nil
}

type mockVerificationEvents struct {
	confirmedCalls int
	confirmedEvent domain.IdentityConfirmedEvent
	confirmedErr   error
}

func (m *mockVerificationEvents) PublishIdentityConfirmed(_ context.Context, event domain.IdentityConfirmedEvent) error {
	m.confirmedCalls++
	m.confirmedEvent = event
	return m.confirmedErr
}

func (m *mockVerificationEvents) PublishCheckoutSessionCreated(context.Context, domain.CheckoutSessionCreatedEvent) error {
	return errors.New("unexpected call: PublishCheckoutSessionCreated")
}

func (m *mockVerificationEvents) PublishTeamProvisioned(context.Context, domain.TeamProvisionedEvent) error {
	return errors.New("unexpected call: PublishTeamProvisioned")
}

func (m *mockVerificationEvents) PublishProvisioningConflict(context.Context, domain.ProvisioningConflictEvent) error {
	return errors.New("unexpected call: PublishProvisioningConflict")
}

func newVerificationService(identities *mockIdentityRepository, challenges *fakeChallengeStore, mailer *mockCodeMailer) *VerificationService {
	return NewVerificationService(identities, challenges, mailer, nil)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	return hash
}

func TestVerificationService_IssueCode_CreatesIdentityAndChallenge(t *testing.T) {
	identities := &mockIdentityRepository{byEmail: map[string]*domain.Identity{}}
	challenges := newFakeChallengeStore()
	mailer := &mockCodeMailer{}

	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	service := newVerificationService(identities, challenges, mailer).
		WithClock(func() time.Time { return now })

	if err := service.IssueCode(context.Background(), "  Coach@CardinalTrack.App ", "Dana Ruiz", strongSignupPassword); err != nil {
		t.Fatalf("IssueCode returned error: %v", err)
	}

	if identities.createCalls != 1 {
		t.Fatalf("expected Create to be called once, got %d", identities.createCalls)
	}
	if identities.createdIdentity.Email != "coach@cardinaltrack.app" {
		t.Fatalf("expected normalized email, got %q", identities.createdIdentity.Email)
	}
	if identities.createdIdentity.Confirmed {
		t.Fatalf("expected identity to start unconfirmed")
	}
	if ok, err := security.VerifyPassword(strongSignupPassword, identities.createdIdentity.PasswordHash); err != nil || !ok {
		t.Fatalf("expected stored hash to match submitted password")
	}

	if challenges.upsertCalls != 1 {
		t.Fatalf("expected challenge Upsert once, got %d", challenges.upsertCalls)
	}
	if challenges.lastUpserted.Identifier != "coach@cardinaltrack.app" {
		t.Fatalf("expected challenge keyed by normalized email, got %q", challenges.lastUpserted.Identifier)
	}
	if challenges.lastUpserted.Attempts != 0 {
		t.Fatalf("expected fresh challenge with zero attempts, got %d", challenges.lastUpserted.Attempts)
	}
	if got, want := challenges.lastUpserted.ExpiresAt, now.Add(defaultCodeTTL); !got.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, got)
	}
	if challenges.lastTTL != defaultCodeTTL {
		t.Fatalf("expected TTL %v, got %v", defaultCodeTTL, challenges.lastTTL)
	}
	if len(challenges.lastUpserted.Code) != 6 {
		t.Fatalf("expected 6 digit code, got %q", challenges.lastUpserted.Code)
	}

	if mailer.calls != 1 {
		t.Fatalf("expected one delivery, got %d", mailer.calls)
	}
	if mailer.lastCode != challenges.lastUpserted.Code {
		t.Fatalf("expected mailed code to match stored code")
	}
}

func TestVerificationService_IssueCode_ReissueSupersedesPriorCode(t *testing.T) {
	identities := &mockIdentityRepository{byEmail: map[string]*domain.Identity{
		"runner@example.com": {ID: "id-1", Email: "runner@example.com", Confirmed: false},
	}}
	challenges := newFakeChallengeStore()
	challenges.records["runner@example.com"] = &domain.VerificationChallenge{
		Identifier: "runner@example.com",
		Code:       "111111",
		Attempts:   3,
		ExpiresAt:  time.Now().Add(time.Minute),
	}
	mailer := &mockCodeMailer{}

	service := newVerificationService(identities, challenges, mailer)

	if err := service.IssueCode(context.Background(), "runner@example.com", "Runner", strongSignupPassword); err != nil {
		t.Fatalf("IssueCode returned error: %v", err)
	}

	if identities.createCalls != 0 {
		t.Fatalf("expected no duplicate identity, Create called %d times", identities.createCalls)
	}
	if identities.updateCredentialsCalls != 1 {
		t.Fatalf("expected credentials refresh once, got %d", identities.updateCredentialsCalls)
	}

	stored := challenges.records["runner@example.com"]
	if stored == nil {
		t.Fatalf("expected a live challenge after reissue")
	}
	if stored.Code == "111111" && mailer.lastCode == "111111" {
		t.Fatalf("expected reissue to mint a new code")
	}
	if stored.Attempts != 0 {
		t.Fatalf("expected reissue to reset attempts, got %d", stored.Attempts)
	}
}

func TestVerificationService_IssueCode_AlreadyConfirmed(t *testing.T) {
	identities := &mockIdentityRepository{byEmail: map[string]*domain.Identity{
		"taken@example.com": {ID: "id-1", Email: "taken@example.com", Confirmed: true},
	}}
	challenges := newFakeChallengeStore()
	mailer := &mockCodeMailer{}

	service := newVerificationService(identities, challenges, mailer)

	err := service.IssueCode(context.Background(), "taken@example.com", "Taken", strongSignupPassword)
	if !errors.Is(err, ErrAlreadyConfirmed) {
		t.Fatalf("expected ErrAlreadyConfirmed, got %v", err)
	}
	if challenges.upsertCalls != 0 {
		t.Fatalf("expected no challenge for confirmed identity, Upsert called %d times", challenges.upsertCalls)
	}
	if mailer.calls != 0 {
		t.Fatalf("expected no delivery for confirmed identity, got %d", mailer.calls)
	}
}

func TestVerificationService_IssueCode_WeakPasswordRejected(t *testing.T) {
	identities := &mockIdentityRepository{byEmail: map[string]*domain.Identity{}}
	challenges := newFakeChallengeStore()
	mailer := &mockCodeMailer{}

	service := newVerificationService(identities, challenges, mailer)

	err := service.IssueCode(context.Background(), "weak@example.com", "Weak", "password123")
	if !errors.Is(err, ErrPasswordPolicyViolation) {
		t.Fatalf("expected ErrPasswordPolicyViolation, got %v", err)
	}
	if identities.createCalls != 0 {
		t.Fatalf("expected no identity for rejected password, Create called %d times", identities.createCalls)
	}
}

func TestVerificationService_IssueCode_DeliveryFailureKeepsChallenge(t *testing.T) {
	identities := &mockIdentityRepository{byEmail: map[string]*domain.Identity{}}
	challenges := newFakeChallengeStore()
	mailer := &mockCodeMailer{err: errors.New("smtp: connection refused")}

	service := newVerificationService(identities, challenges, mailer)

	err := service.IssueCode(context.Background(), "flaky@example.com", "Flaky", strongSignupPassword)
	if !errors.Is(err, ErrCodeDelivery) {
		t.Fatalf("expected ErrCodeDelivery, got %v", err)
	}
	if challenges.records["flaky@example.com"] == nil {
		t.Fatalf("expected challenge to survive delivery failure")
	}
	if challenges.deleteCalls != 0 {
		t.Fatalf("expected no rollback delete, got %d", challenges.deleteCalls)
	}
}

func TestVerificationService_RedeemCode_ConfirmsAndMintsSession(t *testing.T) {
	passwordHash := mustHash(t, strongSignupPassword)
	identities := &mockIdentityRepository{byEmail: map[string]*domain.Identity{
		"sprinter@example.com": {ID: "id-7", Email: "sprinter@example.com", PasswordHash: passwordHash},
	}}
	challenges := newFakeChallengeStore()
	challenges.records["sprinter@example.com"] = &domain.VerificationChallenge{
		Identifier: "sprinter@example.com",
		Code:       "482913",
		ExpiresAt:  time.Now().Add(5 * time.Minute),
	}
	events := &mockVerificationEvents{}
	minter := &mockSessionMinter{}

	service := newVerificationService(identities, challenges, &mockCodeMailer{}).
		WithSessionMinter(minter).
		WithEventPublisher(events)

	result, err := service.RedeemCode(context.Background(), "Sprinter@Example.com", "482913", strongSignupPassword)
	if err != nil {
		t.Fatalf("RedeemCode returned error: %v", err)
	}

	if identities.confirmCalls != 1 {
		t.Fatalf("expected Confirm once, got %d", identities.confirmCalls)
	}
	if identities.confirmedID != "id-7" {
		t.Fatalf("expected confirm for id-7, got %s", identities.confirmedID)
	}
	if !result.Identity.Confirmed {
		t.Fatalf("expected result identity to be confirmed")
	}
	if result.Session == nil {
		t.Fatalf("expected a minted session")
	}
	if result.Session.IdentityID != "id-7" {
		t.Fatalf("expected session for id-7, got %s", result.Session.IdentityID)
	}
	if result.Message != "" {
		t.Fatalf("expected no fallback message, got %q", result.Message)
	}

	if challenges.records["sprinter@example.com"] != nil {
		t.Fatalf("expected challenge destroyed after successful redemption")
	}
	if events.confirmedCalls != 1 {
		t.Fatalf("expected one confirmation event, got %d", events.confirmedCalls)
	}
	if events.confirmedEvent.IdentityID != "id-7" {
		t.Fatalf("expected event for id-7, got %s", events.confirmedEvent.IdentityID)
	}
}

func TestVerificationService_RedeemCode_ReplayAfterSuccess(t *testing.T) {
	passwordHash := mustHash(t, strongSignupPassword)
	identities := &mockIdentityRepository{byEmail: map[string]*domain.Identity{
		"once@example.com": {ID: "id-2", Email: "once@example.com", PasswordHash: passwordHash},
	}}
	challenges := newFakeChallengeStore()
	challenges.records["once@example.com"] = &domain.VerificationChallenge{
		Identifier: "once@example.com",
		Code:       "776001",
		ExpiresAt:  time.Now().Add(5 * time.Minute),
	}

	service := newVerificationService(identities, challenges, &mockCodeMailer{})

	if _, err := service.RedeemCode(context.Background(), "once@example.com", "776001", ""); err != nil {
		t.Fatalf("first redemption returned error: %v", err)
	}

	_, err := service.RedeemCode(context.Background(), "once@example.com", "776001", "")
	if !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound on replay, got %v", err)
	}
}

func TestVerificationService_RedeemCode_MismatchCountsAttempt(t *testing.T) {
	identities := &mockIdentityRepository{byEmail: map[string]*domain.Identity{}}
	challenges := newFakeChallengeStore()
	challenges.records["typo@example.com"] = &domain.VerificationChallenge{
		Identifier: "typo@example.com",
		Code:       "390217",
		ExpiresAt:  time.Now().Add(5 * time.Minute),
	}

	service := newVerificationService(identities, challenges, &mockCodeMailer{})

	_, err := service.RedeemCode(context.Background(), "typo@example.com", "000000", "")

	var mismatch *CodeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected CodeMismatchError, got %v", err)
	}
	if mismatch.Remaining != defaultMaxAttempts-1 {
		t.Fatalf("expected %d attempts remaining, got %d", defaultMaxAttempts-1, mismatch.Remaining)
	}
	if !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("expected mismatch to unwrap to ErrCodeMismatch")
	}

	stored := challenges.records["typo@example.com"]
	if stored == nil {
		t.Fatalf("expected challenge to survive a mismatch under the limit")
	}
	if stored.Attempts != 1 {
		t.Fatalf("expected attempt persisted before outcome, got %d", stored.Attempts)
	}
}

func TestVerificationService_RedeemCode_ExhaustionDestroysChallenge(t *testing.T) {
	identities := &mockIdentityRepository{byEmail: map[string]*domain.Identity{}}
	challenges := newFakeChallengeStore()
	challenges.records["guess@example.com"] = &domain.VerificationChallenge{
		Identifier: "guess@example.com",
		Code:       "515151",
		ExpiresAt:  time.Now().Add(5 * time.Minute),
	}

	service := newVerificationService(identities, challenges, &mockCodeMailer{}).
		WithPolicy(defaultCodeTTL, 2)

	for i := 0; i < 2; i++ {
		_, err := service.RedeemCode(context.Background(), "guess@example.com", "000000", "")
		var mismatch *CodeMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("attempt %d: expected CodeMismatchError, got %v", i+1, err)
		}
	}

	// Even the correct code is refused once the limit is spent.
	_, err := service.RedeemCode(context.Background(), "guess@example.com", "515151", "")
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
	if challenges.records["guess@example.com"] != nil {
		t.Fatalf("expected exhausted challenge to be destroyed")
	}

	_, err = service.RedeemCode(context.Background(), "guess@example.com", "515151", "")
	if !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound after destruction, got %v", err)
	}
}

func TestVerificationService_RedeemCode_ExpiredDeletesEvenWithCorrectCode(t *testing.T) {
	identities := &mockIdentityRepository{byEmail: map[string]*domain.Identity{}}
	challenges := newFakeChallengeStore()

	issuedAt := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	challenges.records["late@example.com"] = &domain.VerificationChallenge{
		Identifier: "late@example.com",
		Code:       "204060",
		CreatedAt:  issuedAt,
		ExpiresAt:  issuedAt.Add(defaultCodeTTL),
	}

	service := newVerificationService(identities, challenges, &mockCodeMailer{}).
		WithClock(func() time.Time { return issuedAt.Add(defaultCodeTTL + time.Second) })

	_, err := service.RedeemCode(context.Background(), "late@example.com", "204060", "")
	if !errors.Is(err, ErrChallengeExpired) {
		t.Fatalf("expected ErrChallengeExpired, got %v", err)
	}
	if challenges.records["late@example.com"] != nil {
		t.Fatalf("expected expired challenge to be deleted")
	}
	if identities.confirmCalls != 0 {
		t.Fatalf("expected no confirmation for expired code, got %d", identities.confirmCalls)
	}
}

func TestVerificationService_RedeemCode_IdentityMissing(t *testing.T) {
	identities := &mockIdentityRepository{byEmail: map[string]*domain.Identity{}}
	challenges := newFakeChallengeStore()
	challenges.records["orphan@example.com"] = &domain.VerificationChallenge{
		Identifier: "orphan@example.com",
		Code:       "660042",
		ExpiresAt:  time.Now().Add(5 * time.Minute),
	}

	service := newVerificationService(identities, challenges, &mockCodeMailer{})

	_, err := service.RedeemCode(context.Background(), "orphan@example.com", "660042", "")
	if !errors.Is(err, ErrIdentityMissing) {
		t.Fatalf("expected ErrIdentityMissing, got %v", err)
	}
}

func TestVerificationService_RedeemCode_SessionFailureDowngradesToMessage(t *testing.T) {
	passwordHash := mustHash(t, strongSignupPassword)
	identities := &mockIdentityRepository{byEmail: map[string]*domain.Identity{
		"partial@example.com": {ID: "id-9", Email: "partial@example.com", PasswordHash: passwordHash},
	}}
	challenges := newFakeChallengeStore()
	challenges.records["partial@example.com"] = &domain.VerificationChallenge{
		Identifier: "partial@example.com",
		Code:       "998877",
		ExpiresAt:  time.Now().Add(5 * time.Minute),
	}
	minter := &mockSessionMinter{err: errors.New("signing key unavailable")}

	service := newVerificationService(identities, challenges, &mockCodeMailer{}).
		WithSessionMinter(minter)

	result, err := service.RedeemCode(context.Background(), "partial@example.com", "998877", strongSignupPassword)
	if err != nil {
		t.Fatalf("expected confirmation to survive session failure, got %v", err)
	}
	if !result.Identity.Confirmed {
		t.Fatalf("expected identity confirmed despite session failure")
	}
	if result.Session != nil {
		t.Fatalf("expected no session, got %+v", result.Session)
	}
	if result.Message != signInManuallyMessage {
		t.Fatalf("expected fallback message %q, got %q", signInManuallyMessage, result.Message)
	}
	if identities.confirmCalls != 1 {
		t.Fatalf("expected Confirm once, got %d", identities.confirmCalls)
	}
}

func TestVerificationService_RedeemCode_ConcurrentConsumption(t *testing.T) {
	identities := &mockIdentityRepository{byEmail: map[string]*domain.Identity{}}
	challenges := newFakeChallengeStore()
	challenges.records["race@example.com"] = &domain.VerificationChallenge{
		Identifier: "race@example.com",
		Code:       "121212",
		ExpiresAt:  time.Now().Add(5 * time.Minute),
	}
	challenges.incrementErr = repository.ErrNotFound

	service := newVerificationService(identities, challenges, &mockCodeMailer{})

	_, err := service.RedeemCode(context.Background(), "race@example.com", "121212", "")
	if !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound when consumed mid-flight, got %v", err)
	}
}
