package authx

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// AuthState is the per-deployment authentication state: the provider service,
// the token decoder and the cookie policy. Build it once at startup and share
// the pointer across handlers; nothing in it changes after New returns.
type AuthState[A, U, X any] struct {
	service  *Service
	decoder  *Decoder[A, U, X]
	cookies  *CookiePolicy
	distinct bool
	logger   zerolog.Logger
}

// DefaultAuthState decodes claims into Extra maps.
type DefaultAuthState = AuthState[Extra, Extra, Extra]

// New validates cfg and builds the shared state. When cfg.JWKSURL is set the
// key set is fetched once using ctx.
//
// cfg.Metrics collectors are registered here, so New must not be called twice
// with the same registerer.
func New[A, U, X any](ctx context.Context, cfg Config) (*AuthState[A, U, X], error) {
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.logger()
	m := newMetrics(cfg.Metrics)

	client, err := NewClient(cfg.APIURL, cfg.APIKey,
		WithTimeout(cfg.Timeout),
		WithUserAgent(cfg.UserAgent),
		withClientMetrics(m),
	)
	if err != nil {
		return nil, err
	}

	decoderOpts := []DecoderOption{
		WithAudience(cfg.Audience),
		WithClockSkew(cfg.ClockSkew),
		withDecoderMetrics(m),
	}
	var decoder *Decoder[A, U, X]
	if cfg.JWKSURL != "" {
		decoder, err = FetchJWKSDecoder[A, U, X](ctx, cfg.JWKSURL, nil, decoderOpts...)
	} else {
		decoder, err = NewDecoder[A, U, X](cfg.JWTSecret, decoderOpts...)
	}
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}

	logger.Info().
		Str("api_url", cfg.APIURL).
		Bool("jwks", cfg.JWKSURL != "").
		Str("audience", cfg.Audience).
		Dur("timeout", cfg.Timeout).
		Msg("auth state ready")

	return &AuthState[A, U, X]{
		service:  NewService(client, logger, WithGoogleClientID(cfg.GoogleClientID)),
		decoder:  decoder,
		cookies:  NewCookiePolicy(cfg.Cookies),
		distinct: cfg.DistinctTokenErrors,
		logger:   logger,
	}, nil
}

// Service returns the shared provider service.
func (a *AuthState[A, U, X]) Service() *Service { return a.service }

// Decoder returns the shared token decoder.
func (a *AuthState[A, U, X]) Decoder() *Decoder[A, U, X] { return a.decoder }

// Cookies returns the cookie policy.
func (a *AuthState[A, U, X]) Cookies() *CookiePolicy { return a.cookies }
