package authx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const testAPIKey = "anon-key"

type fakeProvider struct {
	*httptest.Server
	calls atomic.Int32
}

func newFakeProvider(t *testing.T, handler http.HandlerFunc) *fakeProvider {
	t.Helper()
	p := &fakeProvider{}
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(p.Close)
	return p
}

func newTestService(t *testing.T, baseURL string) *Service {
	t.Helper()
	client, err := NewClient(baseURL, testAPIKey, WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return NewService(client, zerolog.Nop())
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func sessionBody(access, refresh string) map[string]any {
	return map[string]any{
		"access_token":  access,
		"token_type":    "bearer",
		"expires_in":    3600,
		"expires_at":    time.Now().Add(time.Hour).Unix(),
		"refresh_token": refresh,
		"user": map[string]any{
			"id":    "34abc1f7-e346-4b30-bc26-1b53f707bf54",
			"aud":   "authenticated",
			"email": "testuser@test.com",
		},
	}
}

func TestClient_RequestShape(t *testing.T) {
	var seen struct {
		path, grant, apiKey, contentType string
		body                             map[string]string
	}
	provider := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		seen.path = r.URL.Path
		seen.grant = r.URL.Query().Get("grant_type")
		seen.apiKey = r.Header.Get("apikey")
		seen.contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&seen.body)
		respondJSON(w, http.StatusOK, sessionBody("access", "refresh"))
	})

	client, err := NewClient(provider.URL+"/auth/v1/", testAPIKey)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	session, err := client.SignInWithPassword(context.Background(), Credentials{Email: "a@b.c", Password: "pw"})
	if err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	if seen.path != "/auth/v1/token" || seen.grant != "password" {
		t.Fatalf("unexpected endpoint %s grant %s", seen.path, seen.grant)
	}
	if seen.apiKey != testAPIKey {
		t.Fatalf("unexpected apikey header: %q", seen.apiKey)
	}
	if seen.contentType != "application/json" {
		t.Fatalf("unexpected content type: %q", seen.contentType)
	}
	if seen.body["email"] != "a@b.c" || seen.body["password"] != "pw" {
		t.Fatalf("unexpected body: %v", seen.body)
	}
	if _, ok := seen.body["phone"]; ok {
		t.Fatalf("phone should be omitted: %v", seen.body)
	}
	if session.AccessToken.Secret() != "access" || session.RefreshToken.Secret() != "refresh" {
		t.Fatal("unexpected session tokens")
	}
	if session.ExpiresIn != time.Hour {
		t.Fatalf("unexpected expires_in: %v", session.ExpiresIn)
	}
	if session.User.Email != "testuser@test.com" {
		t.Fatalf("unexpected user: %+v", session.User)
	}
}

func TestClient_BearerEndpoints(t *testing.T) {
	var auth, query atomic.Value
	provider := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		query.Store(r.URL.RawQuery)
		switch r.URL.Path {
		case "/user":
			respondJSON(w, http.StatusOK, map[string]any{"id": "u1", "email": "u@x.y"})
		case "/admin/users":
			respondJSON(w, http.StatusOK, map[string]any{"users": []map[string]any{{"id": "u1"}, {"id": "u2"}}, "aud": "authenticated"})
		case "/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	})
	client, err := NewClient(provider.URL, testAPIKey)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := context.Background()

	user, err := client.GetUser(ctx, "tok-1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.ID != "u1" || auth.Load() != "Bearer tok-1" {
		t.Fatalf("unexpected user %+v auth %v", user, auth.Load())
	}

	list, err := client.ListUsers(ctx, "admin", url.Values{"page": {"2"}})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(list.Users) != 2 || query.Load() != "page=2" {
		t.Fatalf("unexpected list %+v query %v", list, query.Load())
	}

	if err := client.Logout(ctx, "tok-1"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
}

func TestClient_AuthorizeURL(t *testing.T) {
	client, err := NewClient("https://project.supabase.co/auth/v1", testAPIKey)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	raw := client.AuthorizeURL("github", "https://app.dev/login/confirm", "challenge", "S256")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Host != "project.supabase.co" || u.Path != "/auth/v1/authorize" {
		t.Fatalf("unexpected url: %s", raw)
	}
	q := u.Query()
	if q.Get("provider") != "github" || q.Get("redirect_to") != "https://app.dev/login/confirm" ||
		q.Get("code_challenge") != "challenge" || q.Get("code_challenge_method") != "S256" {
		t.Fatalf("unexpected query: %v", q)
	}
}

func TestClient_ErrorBodies(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		code  string
		msg   string
		oauth bool
	}{
		{name: "rest", body: `{"code":422,"error_code":"user_already_exists","msg":"User already registered"}`, code: "user_already_exists", msg: "User already registered"},
		{name: "oauth", body: `{"error":"invalid_grant","error_description":"Invalid Refresh Token"}`, code: "invalid_grant", msg: "Invalid Refresh Token", oauth: true},
		{name: "legacy", body: `{"code":400,"msg":"Invalid login credentials"}`, msg: "Invalid login credentials"},
		{name: "gateway", body: `{"message":"Invalid API key"}`, msg: "Invalid API key"},
		{name: "plain", body: `upstream timeout`, msg: "upstream timeout"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			apiErr := parseAPIError(OpSignIn, http.StatusBadRequest, []byte(tc.body))
			if apiErr.Code != tc.code || apiErr.Message != tc.msg || apiErr.OAuth != tc.oauth {
				t.Fatalf("unexpected error: %+v", apiErr)
			}
		})
	}
}

func TestClient_NonSuccessReturnsAPIError(t *testing.T) {
	provider := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{"code": 422, "error_code": "user_already_exists", "msg": "exists"})
	})
	client, err := NewClient(provider.URL, testAPIKey)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.SignUp(context.Background(), Credentials{Email: "a@b.c", Password: "pw"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || apiErr.Operation != OpSignUp {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	provider := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	client, err := NewClient(provider.URL, testAPIKey, WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	start := time.Now()
	if _, err := client.Health(context.Background()); err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout not honoured: %v", elapsed)
	}
}

func TestNewClient_RejectsRelativeURL(t *testing.T) {
	if _, err := NewClient("/auth/v1", testAPIKey); err == nil {
		t.Fatal("expected error for relative url")
	}
}

func TestClient_TimeoutDoesNotModifySharedClient(t *testing.T) {
	shared := &http.Client{Timeout: 30 * time.Second}
	client, err := NewClient("http://127.0.0.1:1", testAPIKey, WithHTTPClient(shared), WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if shared.Timeout != 30*time.Second {
		t.Fatalf("shared client timeout changed to %s", shared.Timeout)
	}
	if client.http == shared || client.http.Timeout != time.Second {
		t.Fatalf("expected a copied client with a 1s timeout, got %s", client.http.Timeout)
	}
}
