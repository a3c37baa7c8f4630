package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
)

// ErrorResponse represents a generic error payload with request ID for debugging.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NewErrorResponse creates an error response with request ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	requestID, _ := c.Get("request_id")
	requestIDStr, _ := requestID.(string)

	return ErrorResponse{
		Error:     errorMsg,
		RequestID: requestIDStr,
	}
}

// IssueCodeRequest carries an account registration or re-registration.
type IssueCodeRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

// IssueCodeResponse acknowledges that a code was issued and mailed.
type IssueCodeResponse struct {
	Success bool `json:"success"`
}

// RedeemCodeRequest carries a code redemption attempt. Password is optional;
// when present and valid a session is established in the same call.
type RedeemCodeRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password,omitempty"`
}

// SessionPayload is the established session returned on redemption.
type SessionPayload struct {
	IdentityID  string `json:"identity_id"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// RedeemCodeResponse reports the redemption outcome. Session is null when the
// caller must sign in manually.
type RedeemCodeResponse struct {
	Verified bool            `json:"verified"`
	Session  *SessionPayload `json:"session"`
	Message  string          `json:"message,omitempty"`
}

// MismatchResponse augments the error payload with the remaining attempt budget.
type MismatchResponse struct {
	Error             string `json:"error"`
	RemainingAttempts int    `json:"remaining_attempts"`
	RequestID         string `json:"request_id,omitempty"`
}

// NewTeamRequest describes a team that does not exist yet.
type NewTeamRequest struct {
	Name           string `json:"name"`
	SchoolName     string `json:"school_name"`
	Slug           string `json:"slug"`
	PrimaryColor   string `json:"primary_color,omitempty"`
	SecondaryColor string `json:"secondary_color,omitempty"`
	LogoURL        string `json:"logo_url,omitempty"`
}

// CheckoutRequest opens a billing session for an existing team or a new one.
type CheckoutRequest struct {
	Mode   string          `json:"mode"`
	TeamID string          `json:"team_id,omitempty"`
	Team   *NewTeamRequest `json:"team,omitempty"`
	Trial  bool            `json:"trial,omitempty"`
}

// CheckoutResponse returns the hosted checkout URL to redirect the user to.
type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

func newSessionPayload(session *domain.Session) *SessionPayload {
	if session == nil {
		return nil
	}
	return &SessionPayload{
		IdentityID:  session.IdentityID,
		AccessToken: session.AccessToken,
		TokenType:   session.TokenType,
		ExpiresIn:   session.ExpiresIn,
	}
}
