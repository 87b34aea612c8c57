package authx

import (
	"context"

	"github.com/rs/zerolog"
)

// Service runs credential flows against the provider and returns client
// errors only. It is safe for concurrent use.
type Service struct {
	client         *Client
	translate      Translator
	logger         zerolog.Logger
	googleClientID string
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithGoogleClientID validates Google ID tokens locally against clientID
// before SignInWithIDToken forwards them.
func WithGoogleClientID(clientID string) ServiceOption {
	return func(s *Service) { s.googleClientID = clientID }
}

// NewService wraps client.
func NewService(client *Client, logger zerolog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		client:    client,
		translate: NewTranslator(logger),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client exposes the underlying provider client.
func (s *Service) Client() *Client { return s.client }

// SignUp registers a user. Depending on the provider's autoconfirm setting the
// result holds a Session or just the unconfirmed User.
func (s *Service) SignUp(ctx context.Context, creds Credentials) (SignUpResult, error) {
	if err := creds.validate(); err != nil {
		s.logger.Debug().Err(err).Msg("sign up rejected locally")
		return SignUpResult{}, clientError(ErrCodeWrongCredentials)
	}
	res, err := s.client.SignUp(ctx, creds)
	if err != nil {
		return SignUpResult{}, s.translate.Translate(OpSignUp, err)
	}
	return res, nil
}

// SignIn runs the password grant.
func (s *Service) SignIn(ctx context.Context, creds Credentials) (Session, error) {
	if err := creds.validate(); err != nil {
		s.logger.Debug().Err(err).Msg("sign in rejected locally")
		return Session{}, clientError(ErrCodeWrongCredentials)
	}
	session, err := s.client.SignInWithPassword(ctx, creds)
	if err != nil {
		return Session{}, s.translate.Translate(OpSignIn, err)
	}
	s.logger.Debug().Str("user_id", session.User.ID).Msg("signed in")
	return session, nil
}

// GetUser returns the profile behind accessToken.
func (s *Service) GetUser(ctx context.Context, accessToken AccessToken) (User, error) {
	if accessToken.IsZero() {
		return User{}, clientError(ErrCodeNotAuthenticated)
	}
	user, err := s.client.GetUser(ctx, accessToken)
	if err != nil {
		return User{}, s.translate.Translate(OpGetUser, err)
	}
	return user, nil
}

// Health reports the provider's health.
func (s *Service) Health(ctx context.Context) (HealthInfo, error) {
	info, err := s.client.Health(ctx)
	if err != nil {
		return HealthInfo{}, s.translate.Translate(OpHealth, err)
	}
	return info, nil
}

// WithToken binds accessToken to a SessionClient.
func (s *Service) WithToken(accessToken AccessToken) *SessionClient {
	return newSessionClient(s, accessToken, "")
}

// WithTokens binds an access and refresh token pair to a SessionClient.
func (s *Service) WithTokens(accessToken AccessToken, refreshToken RefreshToken) *SessionClient {
	return newSessionClient(s, accessToken, refreshToken)
}

// WithSession binds the tokens of session to a SessionClient.
func (s *Service) WithSession(session Session) *SessionClient {
	return newSessionClient(s, session.AccessToken, session.RefreshToken)
}
