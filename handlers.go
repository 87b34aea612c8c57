package authx

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
)

// RouterConfig controls the redirects issued by Router.
type RouterConfig struct {
	// PublicURL is this service's external origin, used to build the OAuth
	// callback URL, e.g. https://app.example.com.
	PublicURL string
	// AfterLogin is where a successful login lands unless the form carries
	// a local next path. Defaults to /profile.
	AfterLogin string
	// AfterLogout defaults to /.
	AfterLogout string
	// Providers restricts the OAuth providers /login/{provider} accepts.
	// Empty allows any.
	Providers []string
}

func (c *RouterConfig) normalize() {
	c.PublicURL = strings.TrimRight(c.PublicURL, "/")
	if c.AfterLogin == "" {
		c.AfterLogin = "/profile"
	}
	if c.AfterLogout == "" {
		c.AfterLogout = "/"
	}
}

// HTTPStatus returns the response status for a client error code.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeAlreadySignedUp:
		return http.StatusConflict
	case ErrCodeWrongCredentials, ErrCodeNotAuthenticated, ErrCodeWrongToken:
		return http.StatusUnauthorized
	case ErrCodeUserNotFound:
		return http.StatusNotFound
	case ErrCodeMissingRefreshToken:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as a JSON error response. Rejections keep their own
// status; client errors are mapped with HTTPStatus.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var rej *Rejection
	if errors.As(err, &rej) {
		rej.ServeHTTP(w, r)
		return
	}
	code := CodeOf(err)
	msg := errorMessages[code]
	if msg == "" {
		msg = errorMessages[ErrCodeInternal]
	}
	writeJSON(w, HTTPStatus(code), map[string]string{"error": msg})
}

// Router returns the login, logout, OAuth and refresh endpoints:
//
//	POST /signup            form email, password, next
//	POST /login             form email, password, next
//	POST /logout
//	POST /refresh
//	GET  /login/confirm     OAuth callback, ?code=
//	GET  /login/{provider}  OAuth start
func (a *AuthState[A, U, X]) Router(cfg RouterConfig) http.Handler {
	cfg.normalize()
	h := &authHandlers[A, U, X]{state: a, cfg: cfg}

	r := chi.NewRouter()
	r.Post("/signup", h.signUp)
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.Post("/refresh", h.refresh)
	r.Get("/login/confirm", h.confirm)
	r.Get("/login/{provider}", h.beginOAuth)
	return r
}

type authHandlers[A, U, X any] struct {
	state *AuthState[A, U, X]
	cfg   RouterConfig
}

func (h *authHandlers[A, U, X]) credentials(r *http.Request) (Credentials, bool) {
	if err := r.ParseForm(); err != nil {
		return Credentials{}, false
	}
	creds := Credentials{
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
		Phone:    strings.TrimSpace(r.PostForm.Get("phone")),
		Password: r.PostForm.Get("password"),
	}
	return creds, true
}

func (h *authHandlers[A, U, X]) signUp(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.credentials(r)
	if !ok {
		WriteError(w, r, reject(RejectMissingCredentials, nil))
		return
	}
	res, err := h.state.service.SignUp(r.Context(), creds)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if res.Session == nil {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "confirmation_required"})
		return
	}
	h.state.cookies.WriteSessionCookies(w, *res.Session)
	http.Redirect(w, r, localPath(r.PostForm.Get("next"), h.cfg.AfterLogin), http.StatusSeeOther)
}

func (h *authHandlers[A, U, X]) login(w http.ResponseWriter, r *http.Request) {
	if claims, err := h.state.MaybeUser(r.Context(), r); err == nil && claims != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	creds, ok := h.credentials(r)
	if !ok {
		WriteError(w, r, reject(RejectMissingCredentials, nil))
		return
	}
	session, err := h.state.service.SignIn(r.Context(), creds)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.state.cookies.WriteSessionCookies(w, session)
	http.Redirect(w, r, localPath(r.PostForm.Get("next"), h.cfg.AfterLogin), http.StatusSeeOther)
}

func (h *authHandlers[A, U, X]) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := readCookie(r, h.state.cookies.AuthCookieName())
	h.state.cookies.ClearSession(w)
	if ok {
		if err := h.state.service.WithToken(AccessToken(token)).Logout(r.Context()); err != nil {
			WriteError(w, r, err)
			return
		}
	}
	http.Redirect(w, r, h.cfg.AfterLogout, http.StatusSeeOther)
}

func (h *authHandlers[A, U, X]) refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, ok := readCookie(r, h.state.cookies.RefreshCookieName())
	if !ok {
		WriteError(w, r, reject(RejectMissingCredentials, nil))
		return
	}
	access, _ := readCookie(r, h.state.cookies.AuthCookieName())
	client := h.state.service.WithTokens(AccessToken(access), RefreshToken(refreshToken))
	session, err := client.Refresh(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.state.cookies.WriteSessionCookies(w, session)
	w.WriteHeader(http.StatusNoContent)
}

func (h *authHandlers[A, U, X]) beginOAuth(w http.ResponseWriter, r *http.Request) {
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	if provider == "" || (len(h.cfg.Providers) > 0 && !slices.Contains(h.cfg.Providers, provider)) {
		http.NotFound(w, r)
		return
	}
	target := h.state.BeginOAuth(w, provider, h.cfg.PublicURL+"/login/confirm")
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *authHandlers[A, U, X]) confirm(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if _, err := h.state.CompleteOAuth(r.Context(), w, r, code); err != nil {
		WriteError(w, r, err)
		return
	}
	http.Redirect(w, r, h.cfg.AfterLogin, http.StatusSeeOther)
}

// localPath returns next when it is a path on this host, otherwise fallback.
func localPath(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}
