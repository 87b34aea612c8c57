package authx

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Session is the token pair and profile returned by a successful sign-in,
// code exchange, or refresh. A refresh yields a new Session value.
type Session struct {
	AccessToken  AccessToken
	TokenType    string
	ExpiresIn    time.Duration
	ExpiresAt    time.Time
	RefreshToken RefreshToken
	User         User
}

type sessionWire struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// UnmarshalJSON decodes the provider's session body. When expires_at is
// absent the absolute expiry is derived from expires_in.
func (s *Session) UnmarshalJSON(data []byte) error {
	var w sessionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	expiresIn := time.Duration(w.ExpiresIn) * time.Second
	expiresAt := time.Now().Add(expiresIn).UTC()
	if w.ExpiresAt > 0 {
		expiresAt = time.Unix(w.ExpiresAt, 0).UTC()
	}
	*s = Session{
		AccessToken:  AccessToken(w.AccessToken),
		TokenType:    w.TokenType,
		ExpiresIn:    expiresIn,
		ExpiresAt:    expiresAt,
		RefreshToken: RefreshToken(w.RefreshToken),
		User:         w.User,
	}
	return nil
}

// MarshalZerologObject logs the session without its tokens.
func (s Session) MarshalZerologObject(e *zerolog.Event) {
	e.Str("access_token", redacted).
		Str("refresh_token", redacted).
		Str("token_type", s.TokenType).
		Dur("expires_in", s.ExpiresIn).
		Time("expires_at", s.ExpiresAt).
		Str("user_id", s.User.ID)
}

// Token converts the session into an oauth2.Token.
func (s Session) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  s.AccessToken.Secret(),
		TokenType:    s.TokenType,
		RefreshToken: s.RefreshToken.Secret(),
		Expiry:       s.ExpiresAt,
	}
	return tok.WithExtra(map[string]any{"user_id": s.User.ID})
}

// User is the provider's user profile.
type User struct {
	ID               string         `json:"id"`
	Aud              string         `json:"aud"`
	Role             string         `json:"role"`
	Email            string         `json:"email"`
	Phone            string         `json:"phone"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	PhoneConfirmedAt *time.Time     `json:"phone_confirmed_at,omitempty"`
	LastSignInAt     *time.Time     `json:"last_sign_in_at,omitempty"`
	AppMetadata      map[string]any `json:"app_metadata,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	IsAnonymous      bool           `json:"is_anonymous"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// UserList is the body of the admin users listing.
type UserList struct {
	Users []User `json:"users"`
	Aud   string `json:"aud,omitempty"`
}

// SignUpResult holds either a Session (autoconfirm enabled) or a User that
// still has to confirm their email or phone.
type SignUpResult struct {
	Session *Session
	User    *User
}

// UnmarshalJSON picks the session shape when an access token is present.
func (r *SignUpResult) UnmarshalJSON(data []byte) error {
	var probe struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.AccessToken != "" {
		var s Session
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = SignUpResult{Session: &s}
		return nil
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return err
	}
	*r = SignUpResult{User: &u}
	return nil
}

// Profile returns the user regardless of which shape the provider answered with.
func (r SignUpResult) Profile() User {
	if r.Session != nil {
		return r.Session.User
	}
	if r.User != nil {
		return *r.User
	}
	return User{}
}

// HealthInfo is the body of the provider health endpoint.
type HealthInfo struct {
	Version     string `json:"version"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
