package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/port"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/infra/config"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/transport/http/handlers"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/transport/http/middleware"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Verification *usecase.VerificationService
	Checkout     *usecase.CheckoutService
	Provisioning *usecase.ProvisioningService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config          *config.AppConfig
	Logger          *zap.Logger
	RateLimiter     *middleware.RateLimiter
	Services        ServiceSet
	TokenParser     middleware.TokenParser
	WebhookVerifier port.WebhookVerifier
	Database        DatabaseChecker
	Cache           CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.HTTP.AllowedOrigins))

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, handlers.NewErrorResponse(c, "method not allowed"))
	})

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		deps.Logger.Warn("http metrics disabled", zap.Error(err))
	} else {
		r.Use(metrics.Handler())
	}

	authMiddleware := middleware.RequireAuth(deps.TokenParser)

	healthOptions := make([]handlers.HealthOption, 0, 2)

	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}

	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		verificationGroup := api.Group("/verification")

		verificationHandler := handlers.NewVerificationHandler(deps.Services.Verification)

		issueHandlers := append(buildRateLimitMiddlewares(deps, "verification_issue_ip", deps.Config.RateLimit.IssueMaxAttempts), verificationHandler.Issue)
		verificationGroup.POST("/issue", issueHandlers...)

		redeemHandlers := append(buildRateLimitMiddlewares(deps, "verification_redeem_ip", deps.Config.RateLimit.RedeemMaxAttempts), verificationHandler.Redeem)
		verificationGroup.POST("/redeem", redeemHandlers...)

		billingGroup := api.Group("/billing")

		checkoutHandler := handlers.NewCheckoutHandler(deps.Services.Checkout)
		billingGroup.POST("/checkout", authMiddleware, checkoutHandler.Checkout)

		webhookHandler := handlers.NewWebhookHandler(deps.WebhookVerifier, deps.Services.Provisioning, deps.Logger)
		billingGroup.POST("/webhook", webhookHandler.Receive)
	}

	return r
}

func buildRateLimitMiddlewares(deps Dependencies, name string, limit int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
