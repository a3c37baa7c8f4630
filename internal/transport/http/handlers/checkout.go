package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/transport/http/middleware"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/usecase"
)

// CheckoutHandler exposes the billing session endpoint. It requires an
// authenticated identity; the requester id comes from the access token.
type CheckoutHandler struct {
	checkout *usecase.CheckoutService
}

func NewCheckoutHandler(checkout *usecase.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// Checkout validates the provisioning intent and returns a hosted checkout
// URL. No team is created here.
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	requesterID, ok := middleware.GetAuthenticatedIdentityID(c)
	if !ok || requesterID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid checkout payload"))
		return
	}

	intent := domain.ProvisioningIntent{
		Mode:           intentMode(req),
		TeamID:         req.TeamID,
		TrialRequested: req.Trial,
	}
	if req.Team != nil {
		intent.NewTeam = &domain.NewTeamPayload{
			Name:           req.Team.Name,
			SchoolName:     req.Team.SchoolName,
			Slug:           req.Team.Slug,
			PrimaryColor:   req.Team.PrimaryColor,
			SecondaryColor: req.Team.SecondaryColor,
			LogoURL:        req.Team.LogoURL,
		}
	}

	session, err := h.checkout.BuildSession(c.Request.Context(), requesterID, intent)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidIntent, Status: http.StatusBadRequest, Message: "invalid checkout request"},
			{Err: usecase.ErrSlugTaken, Status: http.StatusConflict, Message: "team slug is already taken"},
			{Err: usecase.ErrTeamNotFound, Status: http.StatusNotFound, Message: "team not found"},
			{Err: usecase.ErrNotTeamCoach, Status: http.StatusForbidden, Message: "only a coach can manage team billing"},
			{Err: usecase.ErrPaymentGateway, Status: http.StatusBadGateway, Message: "payment provider is unavailable"},
		}, http.StatusInternalServerError, "failed to create checkout session")
		return
	}

	c.JSON(http.StatusOK, CheckoutResponse{
		SessionID: session.ID,
		URL:       session.URL,
	})
}

// intentMode resolves the provisioning mode. Clients may omit it: a request
// naming a team_id renews that team, one carrying a team block provisions a
// new one. An explicit mode always wins so mismatches surface as errors.
func intentMode(req CheckoutRequest) domain.IntentMode {
	if req.Mode != "" {
		return domain.IntentMode(req.Mode)
	}
	if req.TeamID != "" {
		return domain.IntentExistingTeam
	}
	if req.Team != nil {
		return domain.IntentNewTeam
	}
	return ""
}
