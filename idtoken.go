package authx

import (
	"context"
	"strings"

	"google.golang.org/api/idtoken"
)

const providerGoogle = "google"

var googleValidate = idtoken.Validate

// SignInWithIDToken signs a user in with an ID token from a third-party
// provider. Google tokens are checked locally first when a Google client ID
// is configured, so forged or foreign tokens never reach the provider.
func (s *Service) SignInWithIDToken(ctx context.Context, creds IDTokenCredentials) (Session, error) {
	creds.Provider = strings.ToLower(strings.TrimSpace(creds.Provider))
	if creds.Provider == "" || strings.TrimSpace(creds.IDToken) == "" {
		return Session{}, clientError(ErrCodeWrongToken)
	}
	if creds.Provider == providerGoogle && s.googleClientID != "" {
		if err := s.validateGoogle(ctx, creds.IDToken); err != nil {
			return Session{}, err
		}
	}
	session, err := s.client.SignInWithIDToken(ctx, creds)
	if err != nil {
		return Session{}, s.translate.Translate(OpSignInIDToken, err)
	}
	return session, nil
}

func (s *Service) validateGoogle(ctx context.Context, token string) error {
	if timeout := s.client.http.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	payload, err := googleValidate(ctx, token, s.googleClientID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("google id token rejected")
		if ctx.Err() != nil {
			return clientError(ErrCodeInternal)
		}
		return clientError(ErrCodeWrongToken)
	}
	s.logger.Debug().Str("subject", payload.Subject).Msg("google id token accepted")
	return nil
}
