package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/port"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/repository"
)

const (
	defaultChallengePrefix = "roster:verification"

	fieldCode      = "code"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
	fieldAttempts  = "attempts"
)

// incrementScript bumps the attempt counter only while the challenge hash
// still exists. Without the existence guard a concurrent delete would
// resurrect the key as a bare counter.
var incrementScript = red.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

// ChallengeStore persists verification challenges in Redis. The key TTL acts
// as a backstop behind the expiry timestamp stored in the hash itself.
type ChallengeStore struct {
	client *red.Client
	prefix string
}

// NewChallengeStore constructs a challenge store with the provided Redis client and key prefix.
func NewChallengeStore(client *red.Client, keyPrefix string) *ChallengeStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultChallengePrefix
	}

	return &ChallengeStore{
		client: client,
		prefix: prefix,
	}
}

// Upsert replaces any live challenge for the identifier in a single
// transactional pipeline, resetting the attempt counter.
func (s *ChallengeStore) Upsert(ctx context.Context, challenge domain.VerificationChallenge, ttl time.Duration) error {
	identifier := strings.TrimSpace(challenge.Identifier)
	switch {
	case identifier == "":
		return errors.New("identifier is required")
	case strings.TrimSpace(challenge.Code) == "":
		return errors.New("code is required")
	case ttl <= 0:
		return errors.New("ttl must be positive")
	}

	key := s.key(identifier)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		fieldCode:      challenge.Code,
		fieldCreatedAt: strconv.FormatInt(challenge.CreatedAt.Unix(), 10),
		fieldExpiresAt: strconv.FormatInt(challenge.ExpiresAt.Unix(), 10),
		fieldAttempts:  "0",
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store challenge: %w", err)
	}

	return nil
}

// Get retrieves the live challenge for the identifier.
func (s *ChallengeStore) Get(ctx context.Context, identifier string) (*domain.VerificationChallenge, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, errors.New("identifier is required")
	}

	values, err := s.client.HGetAll(ctx, s.key(identifier)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall challenge: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	code := strings.TrimSpace(values[fieldCode])
	if code == "" {
		return nil, repository.ErrNotFound
	}

	createdAt, err := parseUnix(values[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	expiresAt, err := parseUnix(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	attempts := 0
	if raw := values[fieldAttempts]; raw != "" {
		if v, convErr := strconv.Atoi(raw); convErr == nil {
			attempts = v
		}
	}

	return &domain.VerificationChallenge{
		Identifier: identifier,
		Code:       code,
		Attempts:   attempts,
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
	}, nil
}

// IncrementAttempts atomically bumps the attempt counter and returns the new
// value. Returns repository.ErrNotFound if the challenge is gone.
func (s *ChallengeStore) IncrementAttempts(ctx context.Context, identifier string) (int, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return 0, errors.New("identifier is required")
	}

	count, err := incrementScript.Run(ctx, s.client, []string{s.key(identifier)}).Int()
	if err != nil {
		return 0, fmt.Errorf("redis increment challenge attempts: %w", err)
	}
	if count < 0 {
		return 0, repository.ErrNotFound
	}

	return count, nil
}

// Delete removes the challenge, enforcing single-use semantics.
func (s *ChallengeStore) Delete(ctx context.Context, identifier string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return errors.New("identifier is required")
	}

	deleted, err := s.client.Del(ctx, s.key(identifier)).Result()
	if err != nil {
		return fmt.Errorf("redis delete challenge: %w", err)
	}
	if deleted == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (s *ChallengeStore) key(identifier string) string {
	return fmt.Sprintf("%s:%s", s.prefix, identifier)
}

func parseUnix(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0).UTC(), nil
}

var _ port.ChallengeStore = (*ChallengeStore)(nil)
