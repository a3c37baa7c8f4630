package stripe

import (
	"encoding/json"
	"errors"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/port"
)

// ErrInvalidSignature marks a webhook delivery that failed signature
// verification. Such deliveries must be rejected, never processed.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Verifier authenticates Stripe webhook deliveries and extracts
// checkout.session.completed payloads.
type Verifier struct {
	signingSecret string
}

// NewVerifier constructs a webhook verifier with the endpoint signing secret.
func NewVerifier(signingSecret string) *Verifier {
	return &Verifier{signingSecret: signingSecret}
}

// VerifyCheckoutCompleted checks the signature and, for completed checkout
// sessions, returns the normalized payload. Events of other types verify
// successfully but return (nil, nil) so the caller can acknowledge them
// without side effects.
func (v *Verifier) VerifyCheckoutCompleted(payload []byte, signature string) (*domain.CheckoutCompleted, error) {
	event, err := webhook.ConstructEvent(payload, signature, v.signingSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if event.Type != "checkout.session.completed" {
		return nil, nil
	}

	var session stripeapi.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}

	completed := &domain.CheckoutCompleted{
		SessionID:     session.ID,
		CustomerEmail: session.CustomerEmail,
		Metadata:      session.Metadata,
	}
	if completed.CustomerEmail == "" && session.CustomerDetails != nil {
		completed.CustomerEmail = session.CustomerDetails.Email
	}
	if session.Subscription != nil {
		completed.SubscriptionID = session.Subscription.ID
	}

	return completed, nil
}

var _ port.WebhookVerifier = (*Verifier)(nil)
