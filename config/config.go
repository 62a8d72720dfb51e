package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	aws_pkg "enrollment-service/pkg/aws"

	"github.com/joho/godotenv"
)

const (
	EventBusNone  = ""
	EventBusSNS   = "sns"
	EventBusKafka = "kafka"
)

type Config struct {
	Port   string
	AppEnv string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	StripeSecretKey     string
	StripeWebhookSecret string
	FrontendURL         string
	Currency            string
	GatewayTimeout      time.Duration

	CatalogFile string

	JWTSecret           string
	TrustGatewayHeaders bool
	AllowedOrigins      []string

	EventBus              string
	EnrollmentSNSTopicARN string
	KafkaBrokers          []string
	KafkaTopic            string

	RedisURL string

	ReconcileSchedule   string
	ReconcileStaleAfter time.Duration
	ReconcileBatch      int
}

// SecretSource resolves a JSON object secret by name.
type SecretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

const (
	dbSecretName     = "enrollment/DB_CREDENTIALS"
	stripeSecretName = "enrollment/STRIPE"
)

// LoadConfig reads configuration from the environment (and a .env file when
// present). With AWS_USE_SECRETS=true database and Stripe credentials are
// overridden from Secrets Manager.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
		if err != nil {
			return nil, err
		}
		ApplySecrets(ctx, cfg, aws_pkg.NewSecretsClient(awsCfg))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables without validating
// required values.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:                  getEnv("PORT", "5000"),
		AppEnv:                getEnv("APP_ENV", "development"),
		PostgresUser:          os.Getenv("POSTGRES_USER"),
		PostgresPassword:      os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:            os.Getenv("POSTGRES_DB"),
		PostgresHost:          os.Getenv("POSTGRES_HOST"),
		PostgresPort:          getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:       getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone:      getEnv("POSTGRES_TIMEZONE", "UTC"),
		StripeSecretKey:       os.Getenv("STRIPE_API_KEY"),
		StripeWebhookSecret:   os.Getenv("STRIPE_WEBHOOK_SECRET"),
		FrontendURL:           strings.TrimSuffix(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		Currency:              strings.ToLower(getEnv("CURRENCY", "usd")),
		CatalogFile:           getEnv("CATALOG_FILE", "configs/catalog.yaml"),
		JWTSecret:             strings.TrimSpace(os.Getenv("JWT_SECRET")),
		TrustGatewayHeaders:   os.Getenv("TRUST_GATEWAY_HEADERS") == "true",
		AllowedOrigins:        splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		EventBus:              strings.ToLower(os.Getenv("EVENT_BUS")),
		EnrollmentSNSTopicARN: os.Getenv("ENROLLMENT_SNS_TOPIC_ARN"),
		KafkaBrokers:          splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:            getEnv("KAFKA_TOPIC", "enrollment-events"),
		RedisURL:              os.Getenv("REDIS_URL"),
		ReconcileSchedule:     os.Getenv("RECONCILE_SCHEDULE"),
	}

	var err error
	if cfg.GatewayTimeout, err = getDuration("GATEWAY_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReconcileStaleAfter, err = getDuration("RECONCILE_STALE_AFTER", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReconcileBatch, err = getInt("RECONCILE_BATCH", 50); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplySecrets overrides credentials with values found in the secret
// source. Missing secrets or keys leave the environment values in place.
func ApplySecrets(ctx context.Context, cfg *Config, src SecretSource) {
	if m, err := src.GetSecretMap(ctx, dbSecretName); err == nil {
		override(&cfg.PostgresUser, m["POSTGRES_USER"])
		override(&cfg.PostgresPassword, m["POSTGRES_PASSWORD"])
		override(&cfg.PostgresDB, m["POSTGRES_DB"])
		override(&cfg.PostgresHost, m["POSTGRES_HOST"])
		override(&cfg.PostgresPort, m["POSTGRES_PORT"])
	}
	if m, err := src.GetSecretMap(ctx, stripeSecretName); err == nil {
		override(&cfg.StripeSecretKey, m["STRIPE_API_KEY"])
		override(&cfg.StripeWebhookSecret, m["STRIPE_WEBHOOK_SECRET"])
	}
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	if c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "" || c.PostgresHost == "" {
		return fmt.Errorf("database config incomplete")
	}
	if c.StripeSecretKey == "" || c.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_API_KEY and STRIPE_WEBHOOK_SECRET are required")
	}
	if c.JWTSecret == "" && !c.TrustGatewayHeaders {
		return fmt.Errorf("JWT_SECRET is required unless TRUST_GATEWAY_HEADERS=true")
	}
	if len(c.Currency) != 3 || strings.Trim(c.Currency, "abcdefghijklmnopqrstuvwxyz") != "" {
		return fmt.Errorf("CURRENCY must be a three-letter ISO code, got %q", c.Currency)
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}
	switch c.EventBus {
	case EventBusNone:
	case EventBusSNS:
		if c.EnrollmentSNSTopicARN == "" {
			return fmt.Errorf("ENROLLMENT_SNS_TOPIC_ARN is required when EVENT_BUS=sns")
		}
	case EventBusKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENT_BUS=kafka")
		}
	default:
		return fmt.Errorf("unsupported EVENT_BUS %q", c.EventBus)
	}
	for _, o := range c.AllowedOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("ALLOWED_ORIGINS entry %q must start with http:// or https://", o)
		}
	}
	if c.ReconcileSchedule != "" && c.ReconcileBatch <= 0 {
		return fmt.Errorf("RECONCILE_BATCH must be positive")
	}
	return nil
}

// DSN returns the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

// SuccessURL is where the hosted checkout page sends the user after paying.
// The gateway substitutes the session id placeholder.
func (c *Config) SuccessURL() string {
	return c.FrontendURL + "/payment-success?session_id={CHECKOUT_SESSION_ID}"
}

func (c *Config) CancelURL() string {
	return c.FrontendURL + "/payment-cancel"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), "/")); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
