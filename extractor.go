package authx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RejectionCode classifies a request that was refused before any provider call.
type RejectionCode string

const (
	RejectMissingCredentials RejectionCode = "missing_credentials"
	RejectInvalidToken       RejectionCode = "invalid_token"
	RejectMissingCSRF        RejectionCode = "missing_csrf"
)

var rejectionMessages = map[RejectionCode]string{
	RejectMissingCredentials: "Missing credentials",
	RejectInvalidToken:       "Invalid token",
	RejectMissingCSRF:        "Missing CSRF verifier",
}

// Rejection is a request-extraction failure. It renders itself as a JSON
// {"error": "..."} response.
type Rejection struct {
	Code    RejectionCode
	Status  int
	Message string
	Err     error
}

func reject(code RejectionCode, err error) *Rejection {
	status := http.StatusBadRequest
	if code == RejectMissingCSRF {
		status = http.StatusUnauthorized
	}
	msg, ok := rejectionMessages[code]
	if !ok {
		msg = errorMessages[ErrorCode(code)]
	}
	if msg == "" {
		msg = string(code)
	}
	return &Rejection{Code: code, Status: status, Message: msg, Err: err}
}

// Error implements the error interface.
func (r *Rejection) Error() string {
	return "request rejected: " + r.Message
}

// Unwrap returns the decode error behind an invalid token rejection.
func (r *Rejection) Unwrap() error {
	return r.Err
}

// ServeHTTP writes the rejection response.
func (r *Rejection) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, r.Status, map[string]string{"error": r.Message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// MaybeUser reads the auth cookie and decodes it. A missing cookie yields
// (nil, nil); a cookie that is sent but fails to decode, including an empty
// one, yields a *Rejection.
func (a *AuthState[A, U, X]) MaybeUser(ctx context.Context, store CookieStore) (*Claims[A, U, X], error) {
	token, ok := lookupCookie(store, a.cookies.AuthCookieName())
	if !ok {
		return nil, nil
	}
	claims, err := a.decoder.Decode(token)
	if err != nil {
		a.logger.Debug().Str("code", string(CodeOf(err))).Msg("session token rejected")
		return nil, a.tokenRejection(err)
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("enduser.id", claims.Subject))
	return claims, nil
}

// RequireUser is MaybeUser with a missing cookie rejected as missing credentials.
func (a *AuthState[A, U, X]) RequireUser(ctx context.Context, store CookieStore) (*Claims[A, U, X], error) {
	claims, err := a.MaybeUser(ctx, store)
	if err != nil {
		return nil, err
	}
	if claims == nil {
		return nil, reject(RejectMissingCredentials, nil)
	}
	return claims, nil
}

func (a *AuthState[A, U, X]) tokenRejection(err error) *Rejection {
	if a.distinct {
		return reject(RejectionCode(CodeOf(err)), err)
	}
	return reject(RejectInvalidToken, err)
}

// LoadUser is middleware that binds the caller's claims to the request
// context when an auth cookie is present. Requests without one pass through.
func (a *AuthState[A, U, X]) LoadUser(next http.Handler) http.Handler {
	return a.middleware(next, false)
}

// RequireAuth is middleware that rejects requests without valid claims.
func (a *AuthState[A, U, X]) RequireAuth(next http.Handler) http.Handler {
	return a.middleware(next, true)
}

func (a *AuthState[A, U, X]) middleware(next http.Handler, required bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		extract := a.MaybeUser
		if required {
			extract = a.RequireUser
		}
		claims, err := extract(r.Context(), r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		if claims == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := BindClaims(r.Context(), claims)
		if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
			ctx = l.With().Str("user_id", claims.Subject).Logger().WithContext(ctx)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
