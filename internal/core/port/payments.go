package port

import (
	"context"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
)

// PaymentGateway creates checkout sessions with the external payment
// provider. No local state is mutated around this call.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, spec domain.CheckoutSessionSpec) (*domain.CheckoutSession, error)
}

// WebhookVerifier authenticates an incoming provider event and extracts the
// checkout-completed payload. Events of other types return (nil, nil).
type WebhookVerifier interface {
	VerifyCheckoutCompleted(payload []byte, signature string) (*domain.CheckoutCompleted, error)
}
