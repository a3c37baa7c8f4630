package port

import (
	"context"
	"time"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
)

// ChallengeStore is the keyed record store backing verification challenges.
// The storage layer is the only shared mutable state in the verification
// flow, so its operations carry the atomicity guarantees:
//
//   - Upsert replaces any prior challenge for the identifier in one step, so
//     two near-simultaneous resends cannot leave two live codes;
//   - IncrementAttempts serializes per identifier, so concurrent redemption
//     attempts cannot both observe a count under the limit.
type ChallengeStore interface {
	Upsert(ctx context.Context, challenge domain.VerificationChallenge, ttl time.Duration) error
	Get(ctx context.Context, identifier string) (*domain.VerificationChallenge, error)
	// IncrementAttempts atomically bumps the counter and returns the new
	// value. Returns repository.ErrNotFound if the challenge is gone.
	IncrementAttempts(ctx context.Context, identifier string) (int, error)
	Delete(ctx context.Context, identifier string) error
}
