package authx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func mintTestToken(t *testing.T, mutate func(*DevClaims)) string {
	t.Helper()
	d := DefaultDevClaims()
	d.Subject = "34abc1f7-e346-4b30-bc26-1b53f707bf54"
	if mutate != nil {
		mutate(&d)
	}
	token, err := MintDevToken(testSecret, d)
	if err != nil {
		t.Fatalf("MintDevToken: %v", err)
	}
	return token
}

func requestWithAuth(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: DefaultAuthCookieName, Value: token})
	}
	return req
}

func TestAuthState_MaybeUser(t *testing.T) {
	state := newTestState(t, "http://127.0.0.1:1", nil)
	ctx := context.Background()

	claims, err := state.MaybeUser(ctx, requestWithAuth(""))
	if err != nil || claims != nil {
		t.Fatalf("expected no identity, got %+v, %v", claims, err)
	}

	claims, err = state.MaybeUser(ctx, requestWithAuth(mintTestToken(t, nil)))
	if err != nil {
		t.Fatalf("MaybeUser: %v", err)
	}
	if claims.Subject != "34abc1f7-e346-4b30-bc26-1b53f707bf54" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
}

func TestAuthState_RequireUser(t *testing.T) {
	state := newTestState(t, "http://127.0.0.1:1", nil)
	ctx := context.Background()

	_, err := state.RequireUser(ctx, requestWithAuth(""))
	var rej *Rejection
	if !errors.As(err, &rej) || rej.Code != RejectMissingCredentials || rej.Status != http.StatusBadRequest {
		t.Fatalf("expected missing credentials, got %v", err)
	}

	expired := mintTestToken(t, func(d *DevClaims) { d.TTL = -time.Hour })
	forged, err := MintDevToken("some-other-secret-that-is-long-enough-to-sign", DefaultDevClaims())
	if err != nil {
		t.Fatalf("MintDevToken: %v", err)
	}
	for _, token := range []string{"garbage", expired, forged} {
		_, err := state.RequireUser(ctx, requestWithAuth(token))
		if !errors.As(err, &rej) || rej.Code != RejectInvalidToken {
			t.Fatalf("expected invalid token, got %v", err)
		}
	}

	blank := httptest.NewRequest(http.MethodGet, "/profile", nil)
	blank.Header.Set("Cookie", DefaultAuthCookieName+"=")
	_, err = state.RequireUser(ctx, blank)
	if !errors.As(err, &rej) || rej.Code != RejectInvalidToken {
		t.Fatalf("expected invalid token for a blank cookie, got %v", err)
	}
	if !errors.Is(err, &Error{Code: ErrCodeMalformedToken}) {
		t.Fatalf("expected malformed token cause, got %v", err)
	}
	claims, err := state.MaybeUser(ctx, blank)
	if claims != nil || !errors.As(err, &rej) || rej.Code != RejectInvalidToken {
		t.Fatalf("expected MaybeUser to reject a blank cookie, got %v %v", claims, err)
	}
}

func TestAuthState_DistinctTokenErrors(t *testing.T) {
	state := newTestState(t, "http://127.0.0.1:1", func(cfg *Config) { cfg.DistinctTokenErrors = true })

	expired := mintTestToken(t, func(d *DevClaims) { d.TTL = -time.Hour })
	_, err := state.MaybeUser(context.Background(), requestWithAuth(expired))
	var rej *Rejection
	if !errors.As(err, &rej) || rej.Code != RejectionCode(ErrCodeExpired) {
		t.Fatalf("expected expired rejection, got %v", err)
	}
	if !errors.Is(err, &Error{Code: ErrCodeExpired}) {
		t.Fatalf("expected decode error to be wrapped, got %v", err)
	}
}

func TestAuthState_CustomCookieName(t *testing.T) {
	state := newTestState(t, "http://127.0.0.1:1", func(cfg *Config) { cfg.Cookies.AuthName = "app-session" })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "app-session", Value: mintTestToken(t, nil)})
	claims, err := state.RequireUser(context.Background(), req)
	if err != nil || claims == nil {
		t.Fatalf("RequireUser: %v", err)
	}
}

func TestAuthState_Middleware(t *testing.T) {
	state := newTestState(t, "http://127.0.0.1:1", nil)

	var seen *DefaultClaims
	protected := state.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext[Extra, Extra, Extra](r.Context())
		if !ok {
			t.Error("claims missing from context")
		}
		seen = claims
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, requestWithAuth(mintTestToken(t, nil)))
	if rec.Code != http.StatusOK || seen == nil {
		t.Fatalf("expected authorized request, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, requestWithAuth(""))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "Missing credentials" {
		t.Fatalf("unexpected body: %v", body)
	}

	optional := state.LoadUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext[Extra, Extra, Extra](r.Context()); ok {
			t.Error("unexpected claims for anonymous request")
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	rec = httptest.NewRecorder()
	optional.ServeHTTP(rec, requestWithAuth(""))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected anonymous pass-through, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	optional.ServeHTTP(rec, requestWithAuth("garbage"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected invalid token rejection, got %d", rec.Code)
	}
}

func TestClaimsFromContext_TypeMismatch(t *testing.T) {
	claims := &DefaultClaims{Subject: "s"}
	ctx := BindClaims(context.Background(), claims)
	if _, ok := ClaimsFromContext[groupMetadata, Extra, Extra](ctx); ok {
		t.Fatal("expected mismatch for different claim shapes")
	}
	got, ok := ClaimsFromContext[Extra, Extra, Extra](ctx)
	if !ok || got.Subject != "s" {
		t.Fatalf("unexpected claims: %+v", got)
	}
}
