package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App          AppSettings          `mapstructure:"app"`
	HTTP         HTTPSettings         `mapstructure:"http"`
	Postgres     PostgresSettings     `mapstructure:"postgres"`
	Redis        RedisSettings        `mapstructure:"redis"`
	Kafka        KafkaSettings        `mapstructure:"kafka"`
	SMTP         SMTPSettings         `mapstructure:"smtp"`
	JWT          JWTSettings          `mapstructure:"jwt"`
	Verification VerificationSettings `mapstructure:"verification"`
	Billing      BillingSettings      `mapstructure:"billing"`
	RateLimit    RateLimitSettings    `mapstructure:"rate_limit"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type HTTPSettings struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	DB              int    `mapstructure:"db"`
	Password        string `mapstructure:"password"`
	TLSEnabled      bool   `mapstructure:"tls_enabled"`
	ChallengePrefix string `mapstructure:"challenge_prefix"`
	RateLimitPrefix string `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures Kafka producer
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// SMTPSettings configures outbound verification mail
type SMTPSettings struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type JWTSettings struct {
	Secret         string        `mapstructure:"secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// VerificationSettings configures the one-time code lifecycle
type VerificationSettings struct {
	CodeTTL     time.Duration `mapstructure:"code_ttl"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// BillingSettings configures the payment provider and team defaults
type BillingSettings struct {
	PriceID               string `mapstructure:"price_id"`
	TrialDays             int64  `mapstructure:"trial_days"`
	AppBaseURL            string `mapstructure:"app_base_url"`
	DefaultPrimaryColor   string `mapstructure:"default_primary_color"`
	DefaultSecondaryColor string `mapstructure:"default_secondary_color"`
	StripeSecretKey       string `mapstructure:"stripe_secret_key"`
	StripeWebhookSecret   string `mapstructure:"stripe_webhook_secret"`
}

// RateLimitSettings configures rate limiting windows and max attempts per endpoint
type RateLimitSettings struct {
	WindowDuration    time.Duration `mapstructure:"window_duration"`
	IssueMaxAttempts  int           `mapstructure:"issue_max_attempts"`
	RedeemMaxAttempts int           `mapstructure:"redeem_max_attempts"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("ROSTER")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"http.allowed_origins",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.challenge_prefix",
		"redis.rate_limit_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"smtp.host",
		"smtp.port",
		"smtp.username",
		"smtp.password",
		"smtp.from",
		"jwt.secret",
		"jwt.issuer",
		"jwt.access_token_ttl",
		"verification.code_ttl",
		"verification.max_attempts",
		"billing.price_id",
		"billing.trial_days",
		"billing.app_base_url",
		"billing.default_primary_color",
		"billing.default_secondary_color",
		"billing.stripe_secret_key",
		"billing.stripe_webhook_secret",
		"rate_limit.window_duration",
		"rate_limit.issue_max_attempts",
		"rate_limit.redeem_max_attempts",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cardinal-track")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("http.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "roster")
	v.SetDefault("postgres.password", "roster_password")
	v.SetDefault("postgres.database", "roster")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.challenge_prefix", "roster:verification")
	v.SetDefault("redis.rate_limit_prefix", "roster:rate_limit")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "roster")
	v.SetDefault("kafka.async", true)

	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "no-reply@cardinaltrack.app")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "cardinal-track")
	v.SetDefault("jwt.access_token_ttl", "24h")

	v.SetDefault("verification.code_ttl", "10m")
	v.SetDefault("verification.max_attempts", 5)

	v.SetDefault("billing.price_id", "")
	v.SetDefault("billing.trial_days", 14)
	v.SetDefault("billing.app_base_url", "http://localhost:3000")
	v.SetDefault("billing.default_primary_color", "#1e3a5f")
	v.SetDefault("billing.default_secondary_color", "#c5a900")
	v.SetDefault("billing.stripe_secret_key", "")
	v.SetDefault("billing.stripe_webhook_secret", "")

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.issue_max_attempts", 3)
	v.SetDefault("rate_limit.redeem_max_attempts", 10)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "ROSTER_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
