package stripe

import (
	"context"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.uber.org/zap"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/port"
)

// Gateway creates Stripe Checkout sessions. It is the only component that
// talks to the billing provider on the request path.
type Gateway struct {
	api    *client.API
	logger *zap.Logger
}

// NewGateway constructs a Stripe-backed payment gateway.
func NewGateway(secretKey string, logger *zap.Logger) *Gateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Gateway{api: api, logger: logger}
}

// CreateCheckoutSession opens a subscription checkout session carrying the
// provisioning metadata.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, spec domain.CheckoutSessionSpec) (*domain.CheckoutSession, error) {
	params := &stripeapi.CheckoutSessionParams{
		Params: stripeapi.Params{
			Context: ctx,
		},
		Mode:          stripeapi.String(string(stripeapi.CheckoutSessionModeSubscription)),
		CustomerEmail: stripeapi.String(spec.CustomerEmail),
		SuccessURL:    stripeapi.String(spec.SuccessURL),
		CancelURL:     stripeapi.String(spec.CancelURL),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{
				Price:    stripeapi.String(spec.PriceID),
				Quantity: stripeapi.Int64(1),
			},
		},
	}

	if spec.TrialDays > 0 {
		params.SubscriptionData = &stripeapi.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripeapi.Int64(spec.TrialDays),
		}
	}

	for key, value := range spec.Metadata {
		params.AddMetadata(key, value)
	}

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe checkout session: %w", err)
	}

	g.logger.Info("stripe checkout session created",
		zap.String("session_id", session.ID),
	)

	return &domain.CheckoutSession{
		ID:  session.ID,
		URL: session.URL,
	}, nil
}

var _ port.PaymentGateway = (*Gateway)(nil)
