package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/repository"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func testChallenge(identifier, code string) domain.VerificationChallenge {
	created := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	return domain.VerificationChallenge{
		Identifier: identifier,
		Code:       code,
		CreatedAt:  created,
		ExpiresAt:  created.Add(10 * time.Minute),
	}
}

func TestChallengeStore_UpsertAndGet(t *testing.T) {
	client, server := newTestRedis(t)
	store := NewChallengeStore(client, "verify")

	ctx := context.Background()
	ttl := 10 * time.Minute
	challenge := testChallenge("coach@example.com", "482913")

	if err := store.Upsert(ctx, challenge, ttl); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	got, err := store.Get(ctx, "coach@example.com")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Code != "482913" {
		t.Fatalf("expected stored code, got %q", got.Code)
	}
	if got.Attempts != 0 {
		t.Fatalf("expected zero attempts, got %d", got.Attempts)
	}
	if !got.CreatedAt.Equal(challenge.CreatedAt) {
		t.Fatalf("expected created_at %v, got %v", challenge.CreatedAt, got.CreatedAt)
	}
	if !got.ExpiresAt.Equal(challenge.ExpiresAt) {
		t.Fatalf("expected expires_at %v, got %v", challenge.ExpiresAt, got.ExpiresAt)
	}

	remaining := server.TTL("verify:coach@example.com")
	if remaining <= 0 || remaining > ttl {
		t.Fatalf("expected ttl within (0, %v], got %v", ttl, remaining)
	}
}

func TestChallengeStore_GetMiss(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewChallengeStore(client, "verify")

	_, err := store.Get(context.Background(), "nobody@example.com")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChallengeStore_UpsertReplacesAndResetsAttempts(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewChallengeStore(client, "verify")

	ctx := context.Background()
	ttl := 10 * time.Minute

	if err := store.Upsert(ctx, testChallenge("coach@example.com", "111111"), ttl); err != nil {
		t.Fatalf("first Upsert returned error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := store.IncrementAttempts(ctx, "coach@example.com"); err != nil {
			t.Fatalf("IncrementAttempts returned error: %v", err)
		}
	}

	if err := store.Upsert(ctx, testChallenge("coach@example.com", "222222"), ttl); err != nil {
		t.Fatalf("second Upsert returned error: %v", err)
	}

	got, err := store.Get(ctx, "coach@example.com")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Code != "222222" {
		t.Fatalf("expected replacement code, got %q", got.Code)
	}
	if got.Attempts != 0 {
		t.Fatalf("expected attempts reset on reissue, got %d", got.Attempts)
	}
}

func TestChallengeStore_IncrementAttempts(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewChallengeStore(client, "verify")

	ctx := context.Background()
	if err := store.Upsert(ctx, testChallenge("coach@example.com", "482913"), 10*time.Minute); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := store.IncrementAttempts(ctx, "coach@example.com")
		if err != nil {
			t.Fatalf("IncrementAttempts returned error: %v", err)
		}
		if got != want {
			t.Fatalf("expected counter %d, got %d", want, got)
		}
	}

	stored, err := store.Get(ctx, "coach@example.com")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if stored.Attempts != 3 {
		t.Fatalf("expected persisted attempts 3, got %d", stored.Attempts)
	}
}

func TestChallengeStore_IncrementAttemptsAfterDelete(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewChallengeStore(client, "verify")

	ctx := context.Background()
	if err := store.Upsert(ctx, testChallenge("coach@example.com", "482913"), 10*time.Minute); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if err := store.Delete(ctx, "coach@example.com"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	// The script must not resurrect the deleted key as a bare counter.
	_, err := store.IncrementAttempts(ctx, "coach@example.com")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, getErr := store.Get(ctx, "coach@example.com"); !errors.Is(getErr, repository.ErrNotFound) {
		t.Fatalf("expected key to stay absent, got %v", getErr)
	}
}

func TestChallengeStore_DeleteIsSingleUse(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewChallengeStore(client, "verify")

	ctx := context.Background()
	if err := store.Upsert(ctx, testChallenge("coach@example.com", "482913"), 10*time.Minute); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	if err := store.Delete(ctx, "coach@example.com"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := store.Delete(ctx, "coach@example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestChallengeStore_KeyExpiry(t *testing.T) {
	client, server := newTestRedis(t)
	store := NewChallengeStore(client, "verify")

	ctx := context.Background()
	if err := store.Upsert(ctx, testChallenge("coach@example.com", "482913"), time.Minute); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	server.FastForward(time.Minute + time.Second)

	_, err := store.Get(ctx, "coach@example.com")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestChallengeStore_UpsertValidation(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewChallengeStore(client, "verify")

	ctx := context.Background()
	if err := store.Upsert(ctx, testChallenge("", "482913"), time.Minute); err == nil {
		t.Fatalf("expected error for empty identifier")
	}
	if err := store.Upsert(ctx, testChallenge("coach@example.com", ""), time.Minute); err == nil {
		t.Fatalf("expected error for empty code")
	}
	if err := store.Upsert(ctx, testChallenge("coach@example.com", "482913"), 0); err == nil {
		t.Fatalf("expected error for non-positive ttl")
	}
}
