package authx

import (
	"errors"
	"fmt"
)

// ErrorCode represents authx error categories.
type ErrorCode string

// Token decoding codes.
const (
	ErrCodeMalformedToken   ErrorCode = "malformed_token"
	ErrCodeInvalidSignature ErrorCode = "invalid_signature"
	ErrCodeExpired          ErrorCode = "token_expired"
	ErrCodeNotYetValid      ErrorCode = "token_not_yet_valid"
	ErrCodeInvalidAudience  ErrorCode = "invalid_audience"
	ErrCodeJWKSUnavailable  ErrorCode = "jwks_unavailable"
)

// Client-facing codes. This set is closed: every provider failure maps onto one of them.
const (
	ErrCodeAlreadySignedUp     ErrorCode = "already_signed_up"
	ErrCodeWrongCredentials    ErrorCode = "wrong_credentials"
	ErrCodeUserNotFound        ErrorCode = "user_not_found"
	ErrCodeNotAuthenticated    ErrorCode = "not_authenticated"
	ErrCodeMissingRefreshToken ErrorCode = "missing_refresh_token"
	ErrCodeWrongToken          ErrorCode = "wrong_token"
	ErrCodeInternal            ErrorCode = "internal_error"
)

var errorMessages = map[ErrorCode]string{
	ErrCodeMalformedToken:      "Malformed token",
	ErrCodeInvalidSignature:    "Invalid token signature",
	ErrCodeExpired:             "Token expired",
	ErrCodeNotYetValid:         "Token not yet valid",
	ErrCodeInvalidAudience:     "Invalid audience",
	ErrCodeJWKSUnavailable:     "JWKS unavailable",
	ErrCodeAlreadySignedUp:     "User already signed up",
	ErrCodeWrongCredentials:    "Wrong credentials",
	ErrCodeUserNotFound:        "User not found",
	ErrCodeNotAuthenticated:    "User not authenticated",
	ErrCodeMissingRefreshToken: "Missing refresh token",
	ErrCodeWrongToken:          "Wrong token",
	ErrCodeInternal:            "Auth provider internal error",
}

// Sentinels for errors.Is comparisons against client errors.
var (
	ErrAlreadySignedUp     = &Error{Code: ErrCodeAlreadySignedUp, Message: errorMessages[ErrCodeAlreadySignedUp]}
	ErrWrongCredentials    = &Error{Code: ErrCodeWrongCredentials, Message: errorMessages[ErrCodeWrongCredentials]}
	ErrUserNotFound        = &Error{Code: ErrCodeUserNotFound, Message: errorMessages[ErrCodeUserNotFound]}
	ErrNotAuthenticated    = &Error{Code: ErrCodeNotAuthenticated, Message: errorMessages[ErrCodeNotAuthenticated]}
	ErrMissingRefreshToken = &Error{Code: ErrCodeMissingRefreshToken, Message: errorMessages[ErrCodeMissingRefreshToken]}
	ErrWrongToken          = &Error{Code: ErrCodeWrongToken, Message: errorMessages[ErrCodeWrongToken]}
	ErrInternal            = &Error{Code: ErrCodeInternal, Message: errorMessages[ErrCodeInternal]}
)

// Error wraps authx errors with a stable code and message.
//
// Client errors returned by Service and SessionClient never carry the provider
// response in Err; that detail is only written to the server-side log.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := e.Message
	if base == "" {
		base = string(e.Code)
	}
	if e.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(code ErrorCode, err error) error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = string(code)
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// clientError returns a fresh client-facing error without any cause attached.
func clientError(code ErrorCode) error {
	return newError(code, nil)
}

// CodeOf extracts the ErrorCode from err, or ErrCodeInternal when err is not an *Error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ErrCodeInternal
}
