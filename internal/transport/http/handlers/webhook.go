package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/port"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/usecase"
)

const maxWebhookBodyBytes = 64 << 10

// WebhookHandler receives payment provider deliveries. Signature verification
// happens before anything else touches the payload.
type WebhookHandler struct {
	verifier     port.WebhookVerifier
	provisioning *usecase.ProvisioningService
	logger       *zap.Logger
}

func NewWebhookHandler(verifier port.WebhookVerifier, provisioning *usecase.ProvisioningService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier:     verifier,
		provisioning: provisioning,
		logger:       logger,
	}
}

// Receive verifies and applies one provider event. A 2xx acknowledges the
// delivery; the provider retries anything else, so transient failures return
// 500 while terminal outcomes are acknowledged.
func (h *WebhookHandler) Receive(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unreadable webhook payload"))
		return
	}

	completed, err := h.verifier.VerifyCheckoutCompleted(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid webhook signature"))
		return
	}
	if completed == nil {
		// Verified event of a type we do not consume.
		c.Status(http.StatusOK)
		return
	}

	if err := h.provisioning.HandleCheckoutCompleted(c.Request.Context(), *completed); err != nil {
		h.logger.Error("checkout provisioning failed",
			zap.String("session_id", completed.SessionID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to process checkout event"))
		return
	}

	c.Status(http.StatusOK)
}
