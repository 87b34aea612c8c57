package authx

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// DevClaims describes a locally minted session token for development and tests.
type DevClaims struct {
	Subject      string
	Email        string
	Phone        string
	Role         string
	Audience     string
	Issuer       string
	TTL          time.Duration
	AppMetadata  map[string]any
	UserMetadata map[string]any
	Extra        map[string]any
}

// DefaultDevClaims returns a baseline authenticated user suitable for local development.
func DefaultDevClaims() DevClaims {
	return DevClaims{
		Subject:  uuid.NewString(),
		Email:    "dev@authx.local",
		Role:     defaultAudience,
		Audience: defaultAudience,
		Issuer:   "authx.dev",
		TTL:      time.Hour,
		AppMetadata: map[string]any{
			"provider":  "email",
			"providers": []string{"email"},
		},
		UserMetadata: map[string]any{},
	}
}

// MintDevToken signs d with secret using HS256, shaped like a provider session token.
// It never talks to the provider.
func MintDevToken(secret string, d DevClaims) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is required")
	}
	if d.Subject == "" {
		return "", errors.New("subject is required")
	}
	if d.Audience == "" {
		d.Audience = defaultAudience
	}
	if d.TTL == 0 {
		d.TTL = time.Hour
	}
	appMetadata := d.AppMetadata
	if appMetadata == nil {
		appMetadata = map[string]any{}
	}
	userMetadata := d.UserMetadata
	if userMetadata == nil {
		userMetadata = map[string]any{}
	}

	now := time.Now().UTC()
	builder := jwt.NewBuilder()
	for k, v := range d.Extra {
		builder = builder.Claim(k, v)
	}
	builder = builder.
		Subject(d.Subject).
		Audience([]string{d.Audience}).
		IssuedAt(now).
		Expiration(now.Add(d.TTL)).
		Claim("email", d.Email).
		Claim("phone", d.Phone).
		Claim("role", d.Role).
		Claim("app_metadata", appMetadata).
		Claim("user_metadata", userMetadata)
	if d.Issuer != "" {
		builder = builder.Issuer(d.Issuer)
	}
	tok, err := builder.Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(secret)))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}
