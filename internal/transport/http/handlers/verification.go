package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/usecase"
)

// VerificationHandler exposes the issue and redeem endpoints for one-time
// email verification codes.
type VerificationHandler struct {
	verification *usecase.VerificationService
}

func NewVerificationHandler(verification *usecase.VerificationService) *VerificationHandler {
	return &VerificationHandler{verification: verification}
}

// Issue creates or refreshes the pending account and mails a fresh code,
// invalidating any previous one for the same email.
func (h *VerificationHandler) Issue(c *gin.Context) {
	var req IssueCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid issue payload"))
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email is required"))
		return
	}

	if err := h.verification.IssueCode(c.Request.Context(), req.Email, req.DisplayName, req.Password); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrAlreadyConfirmed, Status: http.StatusConflict, Message: "account is already confirmed"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
			{Err: usecase.ErrCodeDelivery, Status: http.StatusInternalServerError, Message: "failed to deliver verification code"},
		}, http.StatusInternalServerError, "failed to issue verification code")
		return
	}

	c.JSON(http.StatusOK, IssueCodeResponse{Success: true})
}

// Redeem validates a submitted code. A mismatch reports the remaining attempt
// budget; running out of attempts destroys the challenge.
func (h *VerificationHandler) Redeem(c *gin.Context) {
	var req RedeemCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid redeem payload"))
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Code = strings.TrimSpace(req.Code)
	switch {
	case req.Email == "":
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email is required"))
		return
	case req.Code == "":
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "verification code is required"))
		return
	}

	result, err := h.verification.RedeemCode(c.Request.Context(), req.Email, req.Code, req.Password)
	if err != nil {
		var mismatch *usecase.CodeMismatchError
		if errors.As(err, &mismatch) {
			requestID, _ := c.Get("request_id")
			requestIDStr, _ := requestID.(string)
			c.JSON(http.StatusBadRequest, MismatchResponse{
				Error:             "verification code is incorrect",
				RemainingAttempts: mismatch.Remaining,
				RequestID:         requestIDStr,
			})
			return
		}

		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrChallengeNotFound, Status: http.StatusBadRequest, Message: "no active verification code for this email"},
			{Err: usecase.ErrChallengeExpired, Status: http.StatusBadRequest, Message: "verification code has expired"},
			{Err: usecase.ErrTooManyAttempts, Status: http.StatusTooManyRequests, Message: "too many attempts, request a new code"},
			{Err: usecase.ErrIdentityMissing, Status: http.StatusBadRequest, Message: "no pending account for this email"},
		}, http.StatusInternalServerError, "failed to redeem verification code")
		return
	}

	c.JSON(http.StatusOK, RedeemCodeResponse{
		Verified: true,
		Session:  newSessionPayload(result.Session),
		Message:  result.Message,
	})
}
