package authx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Decoder verifies session tokens and parses them into typed claims.
//
// The verification key and rules are fixed at construction, so one Decoder
// can be shared by any number of concurrent requests without locking.
type Decoder[A, U, X any] struct {
	verify   jws.VerifyOption
	validate []jwt.ValidateOption
	skip     bool
	metrics  *metrics
}

// DecoderOption customizes a Decoder.
type DecoderOption func(*decoderOptions)

type decoderOptions struct {
	audience    string
	algorithm   jwa.SignatureAlgorithm
	skipExpiry  bool
	clockSkew   time.Duration
	clock       func() time.Time
	metrics     *metrics
	inferKeyAlg bool
}

// WithAudience overrides the expected aud claim (default "authenticated").
func WithAudience(audience string) DecoderOption {
	return func(o *decoderOptions) { o.audience = audience }
}

// WithAlgorithm overrides the HMAC algorithm (default HS256).
func WithAlgorithm(alg jwa.SignatureAlgorithm) DecoderOption {
	return func(o *decoderOptions) { o.algorithm = alg }
}

// WithoutExpiryCheck disables exp, iat and nbf checks. Only meant for fixed test fixtures.
func WithoutExpiryCheck() DecoderOption {
	return func(o *decoderOptions) { o.skipExpiry = true }
}

// WithClockSkew tolerates clock drift between the provider and this process.
func WithClockSkew(skew time.Duration) DecoderOption {
	return func(o *decoderOptions) { o.clockSkew = skew }
}

// WithClock sets the time source used for expiry checks.
func WithClock(now func() time.Time) DecoderOption {
	return func(o *decoderOptions) { o.clock = now }
}

func withDecoderMetrics(m *metrics) DecoderOption {
	return func(o *decoderOptions) { o.metrics = m }
}

func applyDecoderOptions(opts []DecoderOption) decoderOptions {
	o := decoderOptions{
		audience:    defaultAudience,
		algorithm:   jwa.HS256,
		inferKeyAlg: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewDecoder builds a Decoder that verifies HMAC signatures with secret.
func NewDecoder[A, U, X any](secret string, opts ...DecoderOption) (*Decoder[A, U, X], error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	o := applyDecoderOptions(opts)
	key := []byte(secret)
	return newDecoder[A, U, X](jws.WithKey(o.algorithm, key), o), nil
}

// NewKeySetDecoder builds a Decoder that verifies signatures against a fixed key set.
func NewKeySetDecoder[A, U, X any](set jwk.Set, opts ...DecoderOption) (*Decoder[A, U, X], error) {
	if set == nil || set.Len() == 0 {
		return nil, errors.New("key set is empty")
	}
	o := applyDecoderOptions(opts)
	return newDecoder[A, U, X](jws.WithKeySet(set, jws.WithInferAlgorithmFromKey(o.inferKeyAlg)), o), nil
}

// FetchJWKSDecoder downloads the provider's JWKS once and builds a key set Decoder from it.
func FetchJWKSDecoder[A, U, X any](ctx context.Context, jwksURL string, client *http.Client, opts ...DecoderOption) (*Decoder[A, U, X], error) {
	if client == nil {
		client = &http.Client{
			Timeout: defaultHTTPTimeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		}
	}
	set, err := jwk.Fetch(ctx, jwksURL, jwk.WithHTTPClient(client))
	if err != nil {
		return nil, newError(ErrCodeJWKSUnavailable, err)
	}
	return NewKeySetDecoder[A, U, X](set, opts...)
}

func newDecoder[A, U, X any](verify jws.VerifyOption, o decoderOptions) *Decoder[A, U, X] {
	var validate []jwt.ValidateOption
	if o.skipExpiry {
		validate = append(validate, jwt.WithResetValidators(true))
	}
	if o.clockSkew > 0 {
		validate = append(validate, jwt.WithAcceptableSkew(o.clockSkew))
	}
	if o.clock != nil {
		validate = append(validate, jwt.WithClock(jwt.ClockFunc(o.clock)))
	}
	if o.audience != "" {
		validate = append(validate, jwt.WithAudience(o.audience))
	}
	// Resetting validators with nothing left to check is an error in jwt.Validate.
	skip := o.skipExpiry && o.audience == ""
	return &Decoder[A, U, X]{verify: verify, validate: validate, skip: skip, metrics: o.metrics}
}

// Decode verifies token and returns its claims.
func (d *Decoder[A, U, X]) Decode(token string) (*Claims[A, U, X], error) {
	claims, err := d.decode(token)
	d.metrics.observeDecode(err)
	return claims, err
}

func (d *Decoder[A, U, X]) decode(token string) (*Claims[A, U, X], error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, newError(ErrCodeMalformedToken, errors.New("token is empty"))
	}
	parsed, err := jwt.ParseString(token, jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return nil, newError(ErrCodeMalformedToken, err)
	}
	payload, err := jws.Verify([]byte(token), d.verify)
	if err != nil {
		return nil, newError(ErrCodeInvalidSignature, err)
	}
	if !d.skip {
		if err := jwt.Validate(parsed, d.validate...); err != nil {
			return nil, classifyValidationError(err)
		}
	}

	var claims Claims[A, U, X]
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, newError(ErrCodeMalformedToken, fmt.Errorf("decode claims: %w", err))
	}
	return &claims, nil
}

func classifyValidationError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrInvalidAudience()):
		return newError(ErrCodeInvalidAudience, err)
	case errors.Is(err, jwt.ErrTokenExpired()):
		return newError(ErrCodeExpired, err)
	case errors.Is(err, jwt.ErrTokenNotYetValid()), errors.Is(err, jwt.ErrInvalidIssuedAt()):
		return newError(ErrCodeNotYetValid, err)
	}
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, `"exp" not satisfied`):
		return newError(ErrCodeExpired, err)
	case strings.Contains(lower, `"nbf" not satisfied`), strings.Contains(lower, `"iat" not satisfied`):
		return newError(ErrCodeNotYetValid, err)
	}
	return newError(ErrCodeMalformedToken, err)
}
