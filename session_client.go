package authx

import (
	"context"
	"net/url"
	"sync/atomic"
)

type tokenPair struct {
	access  AccessToken
	refresh RefreshToken
}

// SessionClient runs provider calls on behalf of one signed-in user.
//
// Refresh rotates the held token pair. The provider invalidates a refresh
// token on first use, so Refresh must not run concurrently on the same
// SessionClient: callers either keep one instance per task or serialize
// access themselves (SessionTokenSource does the latter). Readers always see
// a consistent pair, never one new and one stale token.
type SessionClient struct {
	service *Service
	tokens  atomic.Pointer[tokenPair]
}

func newSessionClient(s *Service, access AccessToken, refresh RefreshToken) *SessionClient {
	c := &SessionClient{service: s}
	c.tokens.Store(&tokenPair{access: access, refresh: refresh})
	return c
}

// AccessToken returns the currently held access token.
func (c *SessionClient) AccessToken() AccessToken {
	return c.tokens.Load().access
}

// RefreshToken returns the currently held refresh token, which may be empty.
func (c *SessionClient) RefreshToken() RefreshToken {
	return c.tokens.Load().refresh
}

// Logout revokes the session on the provider. Clearing cookies is up to the caller.
func (c *SessionClient) Logout(ctx context.Context) error {
	err := c.service.client.Logout(ctx, c.AccessToken())
	return c.service.translate.Translate(OpLogout, err)
}

// ListUsers lists users with the bound token, which must belong to an admin.
// query may be nil.
func (c *SessionClient) ListUsers(ctx context.Context, query url.Values) (UserList, error) {
	list, err := c.service.client.ListUsers(ctx, c.AccessToken(), query)
	if err != nil {
		return UserList{}, c.service.translate.Translate(OpListUsers, err)
	}
	return list, nil
}

// GetUser returns the profile of the bound token's owner.
func (c *SessionClient) GetUser(ctx context.Context) (User, error) {
	return c.service.GetUser(ctx, c.AccessToken())
}

// Refresh exchanges the held refresh token for a new session and swaps both
// held tokens for the new pair. Without a refresh token it fails with
// ErrMissingRefreshToken and makes no request.
func (c *SessionClient) Refresh(ctx context.Context) (Session, error) {
	current := c.tokens.Load()
	if current.refresh.IsZero() {
		return Session{}, clientError(ErrCodeMissingRefreshToken)
	}
	session, err := c.service.client.RefreshToken(ctx, current.refresh)
	if err != nil {
		return Session{}, c.service.translate.Translate(OpRefresh, err)
	}
	c.tokens.Store(&tokenPair{access: session.AccessToken, refresh: session.RefreshToken})
	return session, nil
}
