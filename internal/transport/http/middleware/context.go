package middleware

import (
	"github.com/gin-gonic/gin"
)

const (
	// IdentityIDKey is the context key for the authenticated identity ID
	IdentityIDKey = "identity_id"
)

// RequestContext holds request-scoped information
type RequestContext struct {
	RequestID string
	IP        string
	UserAgent string
}

// EnrichContext stores request metadata for handlers and access logs.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqCtx := &RequestContext{
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		c.Set("request_context", reqCtx)

		c.Next()
	}
}

// GetRequestContext retrieves the full request context
func GetRequestContext(c *gin.Context) *RequestContext {
	if ctx, exists := c.Get("request_context"); exists {
		if reqCtx, ok := ctx.(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{}
}
