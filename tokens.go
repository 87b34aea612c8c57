package authx

import (
	"crypto/subtle"
	"fmt"

	"github.com/rs/zerolog"
)

const redacted = "[redacted]"

// AccessToken is a signed session token issued by the provider.
// It prints as [redacted] through fmt and zerolog; use Secret for the raw value.
type AccessToken string

// RefreshToken is a single-use refresh token issued alongside an AccessToken.
type RefreshToken string

// Secret returns the raw token value.
func (t AccessToken) Secret() string { return string(t) }

// String implements fmt.Stringer.
func (t AccessToken) String() string { return redacted }

// GoString implements fmt.GoStringer.
func (t AccessToken) GoString() string { return "AccessToken(" + redacted + ")" }

// Format keeps every fmt verb, including %s and %q, from printing the secret.
func (t AccessToken) Format(f fmt.State, verb rune) { formatRedacted(f, verb, "AccessToken") }

// MarshalJSON encodes the token as [redacted] so reflective loggers cannot leak it.
func (t AccessToken) MarshalJSON() ([]byte, error) { return []byte(`"` + redacted + `"`), nil }

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (t AccessToken) MarshalZerologObject(e *zerolog.Event) { e.Str("token", redacted) }

// IsZero reports whether the token is empty.
func (t AccessToken) IsZero() bool { return t == "" }

// Equal compares two tokens in constant time.
func (t AccessToken) Equal(other AccessToken) bool {
	return subtle.ConstantTimeCompare([]byte(t), []byte(other)) == 1
}

// Secret returns the raw token value.
func (t RefreshToken) Secret() string { return string(t) }

// String implements fmt.Stringer.
func (t RefreshToken) String() string { return redacted }

// GoString implements fmt.GoStringer.
func (t RefreshToken) GoString() string { return "RefreshToken(" + redacted + ")" }

// Format keeps every fmt verb from printing the secret.
func (t RefreshToken) Format(f fmt.State, verb rune) { formatRedacted(f, verb, "RefreshToken") }

// MarshalJSON encodes the token as [redacted].
func (t RefreshToken) MarshalJSON() ([]byte, error) { return []byte(`"` + redacted + `"`), nil }

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (t RefreshToken) MarshalZerologObject(e *zerolog.Event) { e.Str("token", redacted) }

// IsZero reports whether the token is empty.
func (t RefreshToken) IsZero() bool { return t == "" }

// Equal compares two tokens in constant time.
func (t RefreshToken) Equal(other RefreshToken) bool {
	return subtle.ConstantTimeCompare([]byte(t), []byte(other)) == 1
}

func formatRedacted(f fmt.State, verb rune, name string) {
	switch {
	case verb == 'v' && f.Flag('#'):
		fmt.Fprintf(f, "%s(%s)", name, redacted)
	case verb == 'q':
		fmt.Fprintf(f, "%q", redacted)
	default:
		fmt.Fprint(f, redacted)
	}
}
