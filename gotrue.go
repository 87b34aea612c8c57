package authx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName       = "github.com/bionicotaku/lingo-utils-authx"
	maxErrorBodySize = 64 << 10
)

// Operation names a provider call. It labels logs, spans and metrics and
// selects the error mapping in Translator.
type Operation string

const (
	OpSignUp        Operation = "sign_up"
	OpSignIn        Operation = "sign_in"
	OpSignInIDToken Operation = "sign_in_id_token"
	OpLogout        Operation = "logout"
	OpGetUser       Operation = "get_user"
	OpHealth        Operation = "health"
	OpRefresh       Operation = "refresh"
	OpListUsers     Operation = "list_users"
	OpExchangeCode  Operation = "exchange_code"
)

// APIError is a non-success provider response. REST-style bodies fill Code
// from error_code and Message from msg; token-endpoint bodies fill Code from
// error and Message from error_description and set OAuth.
type APIError struct {
	Operation Operation
	Status    int
	Code      string
	Message   string
	OAuth     bool
}

// Error implements the error interface.
func (e *APIError) Error() string {
	kind := "api"
	if e.OAuth {
		kind = "oauth"
	}
	return fmt.Sprintf("%s %s request failed with status %d, code %q: %s", e.Operation, kind, e.Status, e.Code, e.Message)
}

type errorBody struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func parseAPIError(op Operation, status int, body []byte) *APIError {
	apiErr := &APIError{Operation: op, Status: status}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}
	switch {
	case eb.ErrorCode != "":
		apiErr.Code, apiErr.Message = eb.ErrorCode, eb.Msg
	case eb.Error != "":
		apiErr.Code, apiErr.Message, apiErr.OAuth = eb.Error, eb.ErrorDescription, true
	default:
		apiErr.Message = eb.Msg
	}
	if apiErr.Message == "" {
		apiErr.Message = eb.Message
	}
	return apiErr
}

// Client talks to a GoTrue-compatible provider. It is safe for concurrent use
// and shares one connection pool across all callers.
type Client struct {
	baseURL   *url.URL
	apiKey    string
	userAgent string
	http      *http.Client
	metrics   *metrics
	tracer    trace.Tracer
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds every provider call. A client passed to WithHTTPClient
// is copied, not modified.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			hc := *c.http
			hc.Timeout = timeout
			c.http = &hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

func withClientMetrics(m *metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient builds a provider client for baseURL, e.g. https://<ref>.supabase.co/auth/v1.
func NewClient(baseURL, apiKey string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse provider url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("provider url %q must be absolute", baseURL)
	}
	c := &Client{
		baseURL:   u,
		apiKey:    apiKey,
		userAgent: defaultUserAgent,
		http: &http.Client{
			Timeout: defaultHTTPTimeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		},
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Credentials identify a user by email or phone plus password.
type Credentials struct {
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

func (c Credentials) validate() error {
	if c.Email == "" && c.Phone == "" {
		return errors.New("email or phone is required")
	}
	if c.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// SignUp registers a new user.
func (c *Client) SignUp(ctx context.Context, creds Credentials) (SignUpResult, error) {
	var out SignUpResult
	err := c.do(ctx, request{op: OpSignUp, method: http.MethodPost, path: "signup", body: creds}, &out)
	return out, err
}

// SignInWithPassword runs the password grant.
func (c *Client) SignInWithPassword(ctx context.Context, creds Credentials) (Session, error) {
	var out Session
	err := c.do(ctx, request{
		op:     OpSignIn,
		method: http.MethodPost,
		path:   "token",
		query:  url.Values{"grant_type": {"password"}},
		body:   creds,
	}, &out)
	return out, err
}

// IDTokenCredentials sign a user in with an ID token issued by a third party.
type IDTokenCredentials struct {
	Provider    string `json:"provider"`
	IDToken     string `json:"id_token"`
	Nonce       string `json:"nonce,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
}

// SignInWithIDToken runs the id_token grant.
func (c *Client) SignInWithIDToken(ctx context.Context, creds IDTokenCredentials) (Session, error) {
	var out Session
	err := c.do(ctx, request{
		op:     OpSignInIDToken,
		method: http.MethodPost,
		path:   "token",
		query:  url.Values{"grant_type": {"id_token"}},
		body:   creds,
	}, &out)
	return out, err
}

// Logout revokes the session behind accessToken.
func (c *Client) Logout(ctx context.Context, accessToken AccessToken) error {
	return c.do(ctx, request{op: OpLogout, method: http.MethodPost, path: "logout", bearer: accessToken}, nil)
}

// GetUser returns the profile of the token's owner.
func (c *Client) GetUser(ctx context.Context, accessToken AccessToken) (User, error) {
	var out User
	err := c.do(ctx, request{op: OpGetUser, method: http.MethodGet, path: "user", bearer: accessToken}, &out)
	return out, err
}

// Health queries the provider health endpoint.
func (c *Client) Health(ctx context.Context) (HealthInfo, error) {
	var out HealthInfo
	err := c.do(ctx, request{op: OpHealth, method: http.MethodGet, path: "health"}, &out)
	return out, err
}

// RefreshToken exchanges refreshToken for a new session.
func (c *Client) RefreshToken(ctx context.Context, refreshToken RefreshToken) (Session, error) {
	var out Session
	err := c.do(ctx, request{
		op:     OpRefresh,
		method: http.MethodPost,
		path:   "token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": refreshToken.Secret()},
	}, &out)
	return out, err
}

// ListUsers lists users with an admin token. query is passed through, e.g. page, per_page.
func (c *Client) ListUsers(ctx context.Context, accessToken AccessToken, query url.Values) (UserList, error) {
	var out UserList
	err := c.do(ctx, request{
		op:     OpListUsers,
		method: http.MethodGet,
		path:   "admin/users",
		query:  query,
		bearer: accessToken,
	}, &out)
	return out, err
}

// AuthorizeURL builds the provider authorize URL for a PKCE flow.
func (c *Client) AuthorizeURL(provider, redirectTo, challenge, challengeMethod string) string {
	u := c.baseURL.ResolveReference(&url.URL{Path: "authorize"})
	q := url.Values{}
	q.Set("provider", provider)
	q.Set("redirect_to", redirectTo)
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", challengeMethod)
	u.RawQuery = q.Encode()
	return u.String()
}

// ExchangeCodeForSession runs the pkce grant.
func (c *Client) ExchangeCodeForSession(ctx context.Context, code, verifier string) (Session, error) {
	var out Session
	err := c.do(ctx, request{
		op:     OpExchangeCode,
		method: http.MethodPost,
		path:   "token",
		query:  url.Values{"grant_type": {"pkce"}},
		body:   map[string]string{"auth_code": code, "code_verifier": verifier},
	}, &out)
	return out, err
}

type request struct {
	op     Operation
	method string
	path   string
	query  url.Values
	body   any
	bearer AccessToken
}

func (c *Client) do(ctx context.Context, r request, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "authx."+string(r.op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("authx.operation", string(r.op)),
			attribute.String("http.request.method", r.method),
		),
	)
	status := 0
	defer func() {
		c.metrics.observeRequest(r.op, status)
		if status > 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", status))
		}
		if err != nil {
			span.SetStatus(codes.Error, string(r.op)+" failed")
		}
		span.End()
	}()

	endpoint := c.baseURL.ResolveReference(&url.URL{Path: r.path})
	if len(r.query) > 0 {
		endpoint.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", r.op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !r.bearer.IsZero() {
		req.Header.Set("Authorization", "Bearer "+r.bearer.Secret())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", r.op, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return parseAPIError(r.op, resp.StatusCode, raw)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", r.op, err)
	}
	return nil
}
