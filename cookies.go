package authx

import (
	"net/http"
	"strings"
	"time"
)

const csrfCookieTTL = 2 * time.Minute

// CookieConfig names the cookies that carry session state.
type CookieConfig struct {
	AuthName         string `env:"AUTHX_AUTH_COOKIE"`
	RefreshName      string `env:"AUTHX_REFRESH_COOKIE"`
	CSRFVerifierName string `env:"AUTHX_CSRF_VERIFIER_COOKIE"`
	// HTTPOnly hides the auth and refresh cookies from client-side scripts.
	// Off by default so browser code can read the access token.
	HTTPOnly bool `env:"AUTHX_COOKIE_HTTP_ONLY"`
}

func (c *CookieConfig) normalize() {
	if c.AuthName == "" {
		c.AuthName = DefaultAuthCookieName
	}
	if c.RefreshName == "" {
		c.RefreshName = DefaultRefreshCookieName
	}
	if c.CSRFVerifierName == "" {
		c.CSRFVerifierName = DefaultCSRFVerifierCookieName
	}
}

// CookieStore is anything cookies can be looked up in. *http.Request satisfies it.
type CookieStore interface {
	Cookie(name string) (*http.Cookie, error)
}

// CookiePolicy writes and clears the session cookies. It is immutable and
// shared by every request.
type CookiePolicy struct {
	cfg CookieConfig
	now func() time.Time
}

// NewCookiePolicy builds a policy, filling in default cookie names.
func NewCookiePolicy(cfg CookieConfig) *CookiePolicy {
	cfg.normalize()
	return &CookiePolicy{cfg: cfg, now: time.Now}
}

// AuthCookieName returns the auth cookie name.
func (p *CookiePolicy) AuthCookieName() string { return p.cfg.AuthName }

// RefreshCookieName returns the refresh cookie name.
func (p *CookiePolicy) RefreshCookieName() string { return p.cfg.RefreshName }

// CSRFVerifierCookieName returns the CSRF verifier cookie name.
func (p *CookiePolicy) CSRFVerifierCookieName() string { return p.cfg.CSRFVerifierName }

// WriteSessionCookies sets the auth and refresh cookies. Both expire with the session.
func (p *CookiePolicy) WriteSessionCookies(w http.ResponseWriter, session Session) {
	expires := p.now().Add(session.ExpiresIn)
	http.SetCookie(w, p.sessionCookie(p.cfg.AuthName, session.AccessToken.Secret(), expires))
	http.SetCookie(w, p.sessionCookie(p.cfg.RefreshName, session.RefreshToken.Secret(), expires))
}

// WriteCSRFCookie sets the short-lived CSRF verifier cookie.
func (p *CookiePolicy) WriteCSRFCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     p.cfg.CSRFVerifierName,
		Value:    value,
		Path:     "/",
		Expires:  p.now().Add(csrfCookieTTL),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the named cookie.
func (p *CookiePolicy) Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:    name,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
		MaxAge:  -1,
		Secure:  true,
	})
}

// ClearSession expires the auth and refresh cookies.
func (p *CookiePolicy) ClearSession(w http.ResponseWriter) {
	p.Clear(w, p.cfg.AuthName)
	p.Clear(w, p.cfg.RefreshName)
}

func (p *CookiePolicy) sessionCookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		Secure:   true,
		HttpOnly: p.cfg.HTTPOnly,
		SameSite: http.SameSiteLaxMode,
	}
}

// readCookie returns the trimmed cookie value when present and non-empty.
func readCookie(store CookieStore, name string) (string, bool) {
	value, ok := lookupCookie(store, name)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// lookupCookie reports whether the cookie was sent at all; the trimmed value
// may be empty.
func lookupCookie(store CookieStore, name string) (string, bool) {
	if store == nil {
		return "", false
	}
	cookie, err := store.Cookie(name)
	if err != nil || cookie == nil {
		return "", false
	}
	return strings.TrimSpace(cookie.Value), true
}
