package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/pricing"
)

const devSecret = "dev-secret-change-in-production"

type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	LogLevel           string
	LogFormat          string
	CORSAllowedOrigins []string

	OrgTag         string
	BranchPrefixes map[uuid.UUID]string
	Policy         pricing.Policy

	StoreTimeout    time.Duration
	CatalogCacheTTL time.Duration
	SessionTTL      time.Duration
	CookieSecure    bool
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, errors.Wrap(err, "load env")
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8081"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		JWTSecret:          k.String("JWT_SECRET"),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		OrgTag:             strings.ToUpper(valueOrDefault(k.String("ORG_TAG"), "KK")),
		StoreTimeout:       parseDuration(k.String("STORE_TIMEOUT"), "5s"),
		CatalogCacheTTL:    parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		SessionTTL:         parseDuration(k.String("SESSION_TTL"), "24h"),
		CookieSecure:       parseBool(k.String("COOKIE_SECURE")),
	}

	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"http://localhost:3000"}
	}

	prefixes, err := parsePrefixes(k.String("BRANCH_PREFIXES"))
	if err != nil {
		return nil, err
	}
	cfg.BranchPrefixes = prefixes

	policy, err := parsePolicy(k)
	if err != nil {
		return nil, err
	}
	cfg.Policy = policy

	if cfg.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, errors.New("JWT_SECRET is required")
		}
		cfg.JWTSecret = devSecret
	}
	if !cfg.IsDevelopment() && len(cfg.JWTSecret) < 16 {
		return nil, errors.New("JWT_SECRET must be at least 16 characters")
	}

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "test"
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func parsePolicy(k *koanf.Koanf) (pricing.Policy, error) {
	p := pricing.DefaultPolicy()

	var err error
	if p.TaxRate, err = parseDecimal("TAX_RATE", k.String("TAX_RATE"), p.TaxRate); err != nil {
		return p, err
	}
	if p.DeliveryFee, err = parseDecimal("DELIVERY_FEE", k.String("DELIVERY_FEE"), p.DeliveryFee); err != nil {
		return p, err
	}
	if p.PackagingFee, err = parseDecimal("PACKAGING_FEE", k.String("PACKAGING_FEE"), p.PackagingFee); err != nil {
		return p, err
	}
	p.TaxAppliesToCharges = parseBool(k.String("TAX_APPLIES_TO_CHARGES"))
	if p.DiscountRounding, err = pricing.ParseRoundingMode(k.String("DISCOUNT_ROUNDING")); err != nil {
		return p, errors.Wrap(err, "DISCOUNT_ROUNDING")
	}
	if err := p.Validate(); err != nil {
		return p, errors.Wrap(err, "pricing policy")
	}
	return p, nil
}

// parsePrefixes reads "branch-uuid:CODE,branch-uuid:CODE".
func parsePrefixes(value string) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string)
	for _, pair := range splitAndTrim(value) {
		idStr, code, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("BRANCH_PREFIXES: %q is not id:CODE", pair)
		}
		id, err := uuid.Parse(strings.TrimSpace(idStr))
		if err != nil {
			return nil, fmt.Errorf("BRANCH_PREFIXES: %q: %w", idStr, err)
		}
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			return nil, fmt.Errorf("BRANCH_PREFIXES: empty code for %s", id)
		}
		out[id] = code
	}
	return out, nil
}

func parseDecimal(key, value string, fallback decimal.Decimal) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
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
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
