package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/repository"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/transport/http/middleware"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/usecase"
)

type stubTeamRepository struct {
	team      *domain.Team
	slugTaken bool
	hasRole   bool
}

func (r *stubTeamRepository) GetByID(context.Context, string) (*domain.Team, error) {
	if r.team == nil {
		return nil, repository.ErrNotFound
	}
	copied := *r.team
	return &copied, nil
}

func (r *stubTeamRepository) SlugActive(context.Context, string) (bool, error) {
	return r.slugTaken, nil
}

func (r *stubTeamRepository) HasRole(context.Context, string, string, domain.MembershipRole) (bool, error) {
	return r.hasRole, nil
}

type stubPaymentGateway struct {
	calls int
}

func (g *stubPaymentGateway) CreateCheckoutSession(context.Context, domain.CheckoutSessionSpec) (*domain.CheckoutSession, error) {
	g.calls++
	return &domain.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.example.com/cs_test_1"}, nil
}

const testRequesterID = "identity-1"

func newCheckoutRouter(teams *stubTeamRepository, gateway *stubPaymentGateway, authenticated bool) *gin.Engine {
	gin.SetMode(gin.TestMode)

	identities := &stubIdentityRepository{byID: map[string]*domain.Identity{
		testRequesterID: {ID: testRequesterID, Email: "coach@example.com", Confirmed: true},
	}}
	service := usecase.NewCheckoutService(identities, teams, gateway, usecase.BillingPolicy{
		PriceID:    "price_roster_monthly",
		TrialDays:  14,
		AppBaseURL: "https://app.example.com",
	})
	handler := NewCheckoutHandler(service)

	router := gin.New()
	if authenticated {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.IdentityIDKey, testRequesterID)
		})
	}
	router.POST("/api/v1/billing/checkout", handler.Checkout)
	return router
}

func TestCheckoutWithoutIdentityReturnsUnauthorized(t *testing.T) {
	router := newCheckoutRouter(&stubTeamRepository{}, &stubPaymentGateway{}, false)

	recorder := postJSON(t, router, "/api/v1/billing/checkout",
		`{"mode":"new_team","team":{"name":"Relay","school_name":"North High","slug":"north-relay"}}`)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d with body %s", recorder.Code, recorder.Body.String())
	}
}

func TestCheckoutTakenSlugReturnsConflict(t *testing.T) {
	gateway := &stubPaymentGateway{}
	router := newCheckoutRouter(&stubTeamRepository{slugTaken: true}, gateway, true)

	recorder := postJSON(t, router, "/api/v1/billing/checkout",
		`{"mode":"new_team","team":{"name":"Relay","school_name":"North High","slug":"north-relay"}}`)

	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d with body %s", recorder.Code, recorder.Body.String())
	}
	if gateway.calls != 0 {
		t.Fatalf("slug conflict must be reported before the payment provider is called, got %d calls", gateway.calls)
	}
}

func TestCheckoutModeInferredFromTeamPayload(t *testing.T) {
	gateway := &stubPaymentGateway{}
	router := newCheckoutRouter(&stubTeamRepository{}, gateway, true)

	recorder := postJSON(t, router, "/api/v1/billing/checkout",
		`{"team":{"name":"Relay","school_name":"North High","slug":"north-relay"}}`)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d with body %s", recorder.Code, recorder.Body.String())
	}
	if gateway.calls != 1 {
		t.Fatalf("expected one payment provider call, got %d", gateway.calls)
	}

	var body CheckoutResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.SessionID != "cs_test_1" || body.URL == "" {
		t.Fatalf("unexpected checkout response: %+v", body)
	}
}

func TestCheckoutModeInferredFromTeamID(t *testing.T) {
	router := newCheckoutRouter(&stubTeamRepository{}, &stubPaymentGateway{}, true)

	recorder := postJSON(t, router, "/api/v1/billing/checkout",
		`{"team_id":"team-404"}`)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for an unknown team, got %d with body %s", recorder.Code, recorder.Body.String())
	}
}

func TestCheckoutEmptyBodyReturnsBadRequest(t *testing.T) {
	router := newCheckoutRouter(&stubTeamRepository{}, &stubPaymentGateway{}, true)

	recorder := postJSON(t, router, "/api/v1/billing/checkout", `{}`)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 when neither team_id nor team is present, got %d with body %s", recorder.Code, recorder.Body.String())
	}
}
