package authx

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/oauth2"
)

const (
	codeChallengeMethod = "S256"
	minVerifierLen      = 43
	maxVerifierLen      = 128
)

// AuthorizeResponse is the start of an OAuth PKCE flow. CSRFToken must be
// stored in the CSRF verifier cookie and handed back to ExchangeCode.
type AuthorizeResponse struct {
	URL       string
	CSRFToken string
}

// CreateAuthorizeURL generates a PKCE pair and builds the provider authorize
// URL. The CSRF token is the base64 encoded verifier.
func (s *Service) CreateAuthorizeURL(provider, redirectTo string) AuthorizeResponse {
	verifier := oauth2.GenerateVerifier()
	challenge := oauth2.S256ChallengeFromVerifier(verifier)
	return AuthorizeResponse{
		URL:       s.client.AuthorizeURL(provider, redirectTo, challenge, codeChallengeMethod),
		CSRFToken: base64.StdEncoding.EncodeToString([]byte(verifier)),
	}
}

// ExchangeCode trades an authorization code for a session. A CSRF token that
// does not decode to a PKCE verifier fails with ErrWrongToken before any
// request is made.
func (s *Service) ExchangeCode(ctx context.Context, code, csrfToken string) (Session, error) {
	verifier, ok := verifierFromCSRF(csrfToken)
	if !ok || strings.TrimSpace(code) == "" {
		return Session{}, clientError(ErrCodeWrongToken)
	}
	session, err := s.client.ExchangeCodeForSession(ctx, code, verifier)
	if err != nil {
		return Session{}, s.translate.Translate(OpExchangeCode, err)
	}
	return session, nil
}

func verifierFromCSRF(token string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil || !utf8.Valid(raw) {
		return "", false
	}
	if len(raw) < minVerifierLen || len(raw) > maxVerifierLen {
		return "", false
	}
	for _, r := range string(raw) {
		if !isUnreserved(r) {
			return "", false
		}
	}
	return string(raw), true
}

// isUnreserved reports whether r may appear in a PKCE code verifier (RFC 7636 section 4.1).
func isUnreserved(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '.', r == '_', r == '~':
		return true
	}
	return false
}

// BeginOAuth starts a provider login: it writes the CSRF verifier cookie and
// returns the URL the browser should be sent to.
func (a *AuthState[A, U, X]) BeginOAuth(w http.ResponseWriter, provider, redirectTo string) string {
	resp := a.service.CreateAuthorizeURL(provider, redirectTo)
	a.cookies.WriteCSRFCookie(w, resp.CSRFToken)
	return resp.URL
}

// CompleteOAuth finishes a provider login. The CSRF verifier cookie is cleared
// whatever the outcome so it cannot be replayed. On success the session
// cookies are written.
//
// A missing CSRF cookie yields a *Rejection; provider failures yield client errors.
func (a *AuthState[A, U, X]) CompleteOAuth(ctx context.Context, w http.ResponseWriter, store CookieStore, code string) (Session, error) {
	csrf, ok := readCookie(store, a.cookies.CSRFVerifierCookieName())
	a.cookies.Clear(w, a.cookies.CSRFVerifierCookieName())
	if !ok {
		return Session{}, reject(RejectMissingCSRF, nil)
	}
	session, err := a.service.ExchangeCode(ctx, code, csrf)
	if err != nil {
		return Session{}, err
	}
	a.cookies.WriteSessionCookies(w, session)
	return session, nil
}
