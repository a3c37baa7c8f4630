package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/infra/security"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// newErrorResponse creates an error response with request ID
func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	requestID, _ := c.Get("request_id")
	requestIDStr, _ := requestID.(string)
	return ErrorResponse{
		Error:     errorMsg,
		RequestID: requestIDStr,
	}
}

// TokenParser validates access tokens and returns their claims.
type TokenParser interface {
	ParseAccessToken(ctx context.Context, token string) (*security.AccessClaims, error)
}

// RequireAuth validates the Authorization header and extracts identity claims
func RequireAuth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing access token"))
			return
		}

		claims, err := parser.ParseAccessToken(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, security.ErrTokenExpired):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "access token expired"))
			case errors.Is(err, security.ErrTokenInvalid):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "invalid access token"))
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					newErrorResponse(c, "authentication failed"))
			}
			return
		}

		c.Set(IdentityIDKey, claims.IdentityID)
		c.Set("claims", claims)

		c.Next()
	}
}

// GetAuthenticatedIdentityID retrieves the identity ID from context (helper for handlers)
func GetAuthenticatedIdentityID(c *gin.Context) (string, bool) {
	identityID, exists := c.Get(IdentityIDKey)
	if !exists {
		return "", false
	}

	if id, ok := identityID.(string); ok {
		return id, true
	}

	return "", false
}
