package authx

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultAudience    = "authenticated"
	defaultHTTPTimeout = 2 * time.Second
	defaultUserAgent   = "authx"

	DefaultAuthCookieName         = "sb-auth"
	DefaultRefreshCookieName      = "sb-refresh"
	DefaultCSRFVerifierCookieName = "sb-token-verifier"
)

// Config describes the provider and how its session tokens are verified.
type Config struct {
	// APIURL is the provider's auth base URL, e.g. https://<ref>.supabase.co/auth/v1.
	APIURL string `env:"AUTHX_API_URL" validate:"required,url"`
	// APIKey is sent as the apikey header on every provider request.
	APIKey string `env:"AUTHX_API_KEY" validate:"required"`
	// JWTSecret verifies HMAC-signed session tokens.
	JWTSecret string `env:"AUTHX_JWT_SECRET" validate:"required_without=JWKSURL"`
	// JWKSURL switches verification to the provider's asymmetric signing keys.
	JWKSURL string `env:"AUTHX_JWKS_URL" validate:"omitempty,url"`
	// Audience is the expected aud claim.
	Audience  string        `env:"AUTHX_AUDIENCE"`
	Timeout   time.Duration `env:"AUTHX_TIMEOUT"`
	ClockSkew time.Duration `env:"AUTHX_CLOCK_SKEW"`
	UserAgent string        `env:"AUTHX_USER_AGENT"`
	// DistinctTokenErrors reports expired, badly signed and malformed tokens
	// with their own rejection codes instead of a single invalid_token.
	DistinctTokenErrors bool `env:"AUTHX_DISTINCT_TOKEN_ERRORS"`
	// GoogleClientID enables local validation of Google ID tokens before they
	// are forwarded to the provider.
	GoogleClientID string `env:"AUTHX_GOOGLE_CLIENT_ID"`

	Cookies CookieConfig

	Logger  *zerolog.Logger       `env:"-"`
	Metrics prometheus.Registerer `env:"-"`
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// ConfigFromEnv loads a Config from AUTHX_* environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// normalize sets default values for optional fields.
func (c *Config) normalize() {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.Audience == "" {
		c.Audience = defaultAudience
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultHTTPTimeout
	}
	if c.ClockSkew < 0 {
		c.ClockSkew = 0
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	c.Cookies.normalize()
}

// validate ensures the configuration is usable.
func (c Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("config field %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return err
	}
	return nil
}

func (c Config) logger() zerolog.Logger {
	if c.Logger != nil {
		return c.Logger.With().Str("component", "authx").Logger()
	}
	return defaultLogger()
}

func defaultLogger() zerolog.Logger {
	return log.Logger.With().Str("component", "authx").Logger()
}
