package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/port"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/infra/config"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/infra/database"
	kafkainfra "github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/infra/kafka"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/infra/logger"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/infra/mail"
	redisinfra "github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/infra/redis"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/infra/security"
	stripeinfra "github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/infra/stripe"
	postgresrepo "github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/repository/postgres"
	redisrepo "github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/repository/redis"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/transport/http/middleware"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/transport/http/routes"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/usecase"
)

type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	jwtManager, err := security.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init jwt manager: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)
	challengeStore := redisrepo.NewChallengeStore(redisClient.Client(), cfg.Redis.ChallengePrefix)

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	mailer := mail.NewSMTPMailer(cfg.SMTP, log)
	passwordValidator := security.DefaultPasswordValidator()

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitStore(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	verificationService := usecase.NewVerificationService(repos.Identities, challengeStore, mailer, passwordValidator).
		WithSessionMinter(jwtManager).
		WithEventPublisher(eventPublisher).
		WithPolicy(cfg.Verification.CodeTTL, cfg.Verification.MaxAttempts).
		WithLogger(log)

	gateway := stripeinfra.NewGateway(cfg.Billing.StripeSecretKey, log)
	checkoutService := usecase.NewCheckoutService(repos.Identities, repos.Teams, gateway, usecase.BillingPolicy{
		PriceID:               cfg.Billing.PriceID,
		TrialDays:             cfg.Billing.TrialDays,
		AppBaseURL:            cfg.Billing.AppBaseURL,
		DefaultPrimaryColor:   cfg.Billing.DefaultPrimaryColor,
		DefaultSecondaryColor: cfg.Billing.DefaultSecondaryColor,
	}).
		WithEventPublisher(eventPublisher).
		WithLogger(log)

	provisioningService := usecase.NewProvisioningService(repos.Provisioning).
		WithEventPublisher(eventPublisher).
		WithLogger(log)

	webhookVerifier := stripeinfra.NewVerifier(cfg.Billing.StripeWebhookSecret)

	engine := routes.Register(routes.Dependencies{
		Config:          cfg,
		Logger:          log,
		RateLimiter:     rateLimiter,
		TokenParser:     jwtManager,
		WebhookVerifier: webhookVerifier,
		Database:        pool,
		Cache:           redisClient,
		Services: routes.ServiceSet{
			Verification: verificationService,
			Checkout:     checkoutService,
			Provisioning: provisioningService,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting roster API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
