package authx

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

var (
	alreadySignedUpCodes = codeSet("user_already_exists", "email_exists", "phone_exists", "user_already_registered")
	wrongCredentialCodes = codeSet("invalid_credentials", "invalid_login_credentials", "invalid_grant", "")
	adminDeniedCodes     = codeSet("invalid_credentials", "not_admin", "bad_jwt", "no_authorization")
	staleRefreshCodes    = codeSet("invalid_grant", "refresh_token_not_found", "refresh_token_already_used", "session_not_found", "session_expired")
	notAuthCodes         = codeSet("bad_jwt", "session_not_found", "no_authorization", "")
	badFlowCodes         = codeSet("flow_state_not_found", "flow_state_expired", "bad_code_verifier", "invalid_grant", "bad_oauth_state")
)

func codeSet(codes ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

func normalizeCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	return strings.Join(strings.Fields(code), "_")
}

// Classify maps a provider failure onto the client error set. It is total:
// anything it does not recognise is ErrCodeInternal.
func Classify(op Operation, status int, code string) ErrorCode {
	code = normalizeCode(code)
	in := func(set map[string]struct{}) bool {
		_, ok := set[code]
		return ok
	}
	switch op {
	case OpSignUp:
		if status == 422 && in(alreadySignedUpCodes) {
			return ErrCodeAlreadySignedUp
		}
	case OpSignIn, OpSignInIDToken:
		if status == 400 && in(wrongCredentialCodes) {
			return ErrCodeWrongCredentials
		}
	case OpListUsers:
		if in(adminDeniedCodes) {
			return ErrCodeWrongCredentials
		}
	case OpRefresh:
		if status >= 400 && status < 500 && in(staleRefreshCodes) {
			return ErrCodeWrongToken
		}
	case OpGetUser:
		switch {
		case status == 404 || code == "user_not_found":
			return ErrCodeUserNotFound
		case (status == 401 || status == 403) && in(notAuthCodes):
			return ErrCodeNotAuthenticated
		}
	case OpExchangeCode:
		if status >= 400 && status < 500 && in(badFlowCodes) {
			return ErrCodeWrongToken
		}
	}
	return ErrCodeInternal
}

// Translator turns provider failures into client errors and writes the
// original detail to the server log.
type Translator struct {
	logger zerolog.Logger
}

// NewTranslator returns a Translator that logs to logger.
func NewTranslator(logger zerolog.Logger) Translator {
	return Translator{logger: logger}
}

// Translate returns nil for nil, passes client errors through, and maps
// everything else to a fresh client error with no cause attached.
func (t Translator) Translate(op Operation, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return clientError(ae.Code)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		code := apiErr.Code
		if code == "" {
			code = apiErr.Message
		}
		mapped := Classify(op, apiErr.Status, code)
		ev := t.logger.Warn()
		if mapped == ErrCodeInternal {
			ev = t.logger.Error()
		}
		ev.Str("operation", string(op)).
			Int("status", apiErr.Status).
			Str("provider_code", apiErr.Code).
			Str("provider_message", apiErr.Message).
			Bool("oauth", apiErr.OAuth).
			Str("code", string(mapped)).
			Msg("auth provider request failed")
		return clientError(mapped)
	}

	ev := t.logger.Error().Err(err).Str("operation", string(op))
	if errors.Is(err, context.DeadlineExceeded) {
		ev = ev.Bool("timeout", true)
	}
	ev.Msg("auth provider unreachable")
	return clientError(ErrCodeInternal)
}
