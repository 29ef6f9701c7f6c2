package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Catalog sources.
const (
	CatalogStatic = "static"
	CatalogHTTP   = "http"
)

// Payment providers.
const (
	ProviderPaystack = "paystack"
	ProviderSandbox  = "sandbox"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	PublicBaseURL      string
	LogFormat          string
	LogLevel           string
	CORSAllowedOrigins []string

	CatalogSource   string
	CatalogURL      string
	CatalogCacheTTL time.Duration
	RedisURL        string

	PaymentProvider     string
	PaystackPublicKey   string
	PaystackSecretKey   string
	PaystackBaseURL     string
	PaystackCallbackURL string
	PaymentTimeout      time.Duration
	ReferencePrefix     string
	WebhookReplayTTL    time.Duration

	CurrencyCode   string
	CurrencySymbol string
	CurrencyLocale string

	CheckoutRatePerMinute  int
	BodyLimitBytes         int64
	SecurityHeadersEnabled bool

	AMQPURL      string
	AMQPExchange string

	MetricsEnabled       bool
	MetricsNamespace     string
	MetricsBucketsMS     string
	TracingEnabled       bool
	OTLPEndpoint         string
	TracingSamplingRatio float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		PublicBaseURL:      strings.TrimRight(valueOrDefault(k.String("PUBLIC_BASE_URL"), "http://localhost:8080"), "/"),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		CatalogSource:   strings.ToLower(valueOrDefault(k.String("CATALOG_SOURCE"), CatalogStatic)),
		CatalogURL:      strings.TrimSpace(k.String("CATALOG_URL")),
		CatalogCacheTTL: parseDuration(k.String("CATALOG_CACHE_TTL"), "10m"),
		RedisURL:        strings.TrimSpace(k.String("REDIS_URL")),

		PaymentProvider:     strings.ToLower(valueOrDefault(k.String("PAYMENT_PROVIDER"), ProviderPaystack)),
		PaystackPublicKey:   strings.TrimSpace(k.String("PAYSTACK_PUBLIC_KEY")),
		PaystackSecretKey:   strings.TrimSpace(k.String("PAYSTACK_SECRET_KEY")),
		PaystackBaseURL:     valueOrDefault(k.String("PAYSTACK_BASE_URL"), "https://api.paystack.co"),
		PaystackCallbackURL: strings.TrimSpace(k.String("PAYSTACK_CALLBACK_URL")),
		PaymentTimeout:      parseDuration(k.String("PAYMENT_TIMEOUT"), "10s"),
		ReferencePrefix:     valueOrDefault(k.String("REFERENCE_PREFIX"), "BOOKS"),
		WebhookReplayTTL:    parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),

		CurrencyCode:   strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "NGN")),
		CurrencySymbol: valueOrDefault(k.String("CURRENCY_SYMBOL"), "₦"),
		CurrencyLocale: valueOrDefault(k.String("CURRENCY_LOCALE"), "en-NG"),

		CheckoutRatePerMinute:  parseInt(k.String("RATE_LIMIT_CHECKOUT_PER_MINUTE"), 10),
		BodyLimitBytes:         int64(parseInt(k.String("BODY_LIMIT_BYTES"), 64<<10)),
		SecurityHeadersEnabled: parseBool(k.String("SECURITY_HEADERS_ENABLED"), true),

		AMQPURL:      strings.TrimSpace(k.String("AMQP_URL")),
		AMQPExchange: valueOrDefault(k.String("AMQP_EXCHANGE"), "storefront.events"),

		MetricsEnabled:       parseBool(k.String("METRICS_ENABLED"), true),
		MetricsNamespace:     valueOrDefault(k.String("METRICS_NAMESPACE"), "storefront"),
		MetricsBucketsMS:     strings.TrimSpace(k.String("METRICS_BUCKETS_MS")),
		TracingEnabled:       parseBool(k.String("TRACING_ENABLED"), false),
		OTLPEndpoint:         strings.TrimSpace(k.String("OTLP_ENDPOINT")),
		TracingSamplingRatio: parseFloat(k.String("TRACING_SAMPLING_RATIO"), 1.0),
	}

	switch cfg.CatalogSource {
	case CatalogStatic:
	case CatalogHTTP:
		if cfg.CatalogURL == "" {
			return nil, errors.New("CATALOG_URL is required when CATALOG_SOURCE=http")
		}
	default:
		return nil, fmt.Errorf("CATALOG_SOURCE %q is not supported", cfg.CatalogSource)
	}
	switch cfg.PaymentProvider {
	case ProviderPaystack, ProviderSandbox:
	default:
		return nil, fmt.Errorf("PAYMENT_PROVIDER %q is not supported", cfg.PaymentProvider)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
