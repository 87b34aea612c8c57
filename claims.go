package authx

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Extra is the catch-all metadata shape. Using it for any of the three claim
// shapes keeps every provider field, documented or not.
type Extra map[string]any

// Claims is the verified payload of a provider session token.
//
// A is merged into app_metadata next to provider/providers, U is the
// user_metadata object, and X is merged into the top level of the payload.
// Fields that A and X do not declare are ignored by encoding/json, so
// undocumented provider extensions never reject a token.
type Claims[A, U, X any] struct {
	Subject      string
	Email        string
	Phone        string
	Expiry       int64
	Role         string
	AppMetadata  AppMetadata[A]
	UserMetadata U
	Additional   X
}

// AppMetadata is the app_metadata block of the claims.
type AppMetadata[A any] struct {
	Provider   string
	Providers  []string
	Additional A
}

// DefaultClaims decodes every extension into Extra maps.
type DefaultClaims = Claims[Extra, Extra, Extra]

type claimsBase[U any] struct {
	Subject      string          `json:"sub"`
	Email        string          `json:"email"`
	Phone        string          `json:"phone"`
	Expiry       int64           `json:"exp"`
	Role         string          `json:"role"`
	AppMetadata  json.RawMessage `json:"app_metadata,omitempty"`
	UserMetadata U               `json:"user_metadata"`
}

type appMetadataBase struct {
	Provider  string   `json:"provider"`
	Providers []string `json:"providers"`
}

// ExpiresAt returns the exp claim as a time.
func (c *Claims[A, U, X]) ExpiresAt() time.Time {
	return time.Unix(c.Expiry, 0).UTC()
}

// UserID parses the subject as the provider's user UUID.
func (c *Claims[A, U, X]) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("subject %q is not a user id: %w", c.Subject, err)
	}
	return id, nil
}

// UnmarshalJSON decodes the fixed claims and merges the whole payload into Additional.
func (c *Claims[A, U, X]) UnmarshalJSON(data []byte) error {
	var base claimsBase[U]
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}
	var additional X
	if err := json.Unmarshal(data, &additional); err != nil {
		return fmt.Errorf("additional claims: %w", err)
	}
	var app AppMetadata[A]
	if len(base.AppMetadata) > 0 && string(base.AppMetadata) != "null" {
		if err := json.Unmarshal(base.AppMetadata, &app); err != nil {
			return fmt.Errorf("app_metadata: %w", err)
		}
	}
	*c = Claims[A, U, X]{
		Subject:      base.Subject,
		Email:        base.Email,
		Phone:        base.Phone,
		Expiry:       base.Expiry,
		Role:         base.Role,
		AppMetadata:  app,
		UserMetadata: base.UserMetadata,
		Additional:   additional,
	}
	return nil
}

// MarshalJSON flattens Additional into the top-level object. Fixed claims win
// over Additional keys with the same name.
func (c Claims[A, U, X]) MarshalJSON() ([]byte, error) {
	out, err := flatten(c.Additional)
	if err != nil {
		return nil, fmt.Errorf("additional claims: %w", err)
	}
	app, err := json.Marshal(c.AppMetadata)
	if err != nil {
		return nil, err
	}
	user, err := json.Marshal(c.UserMetadata)
	if err != nil {
		return nil, err
	}
	out["sub"] = c.Subject
	out["email"] = c.Email
	out["phone"] = c.Phone
	out["exp"] = c.Expiry
	out["role"] = c.Role
	out["app_metadata"] = json.RawMessage(app)
	out["user_metadata"] = json.RawMessage(user)
	return json.Marshal(out)
}

// UnmarshalJSON decodes provider/providers and merges the object into Additional.
func (m *AppMetadata[A]) UnmarshalJSON(data []byte) error {
	var base appMetadataBase
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}
	var additional A
	if err := json.Unmarshal(data, &additional); err != nil {
		return err
	}
	*m = AppMetadata[A]{Provider: base.Provider, Providers: base.Providers, Additional: additional}
	return nil
}

// MarshalJSON flattens Additional next to provider/providers.
func (m AppMetadata[A]) MarshalJSON() ([]byte, error) {
	out, err := flatten(m.Additional)
	if err != nil {
		return nil, err
	}
	out["provider"] = m.Provider
	out["providers"] = m.Providers
	return json.Marshal(out)
}

// flatten turns an arbitrary JSON object value into a map. Non-object values
// (including nil) flatten to an empty map.
func flatten(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if len(raw) == 0 || raw[0] != '{' {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
