package authx

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// TokenSource returns an oauth2.TokenSource that hands out the held access
// token until it expires and then rotates it with Refresh. The returned source
// serializes refreshes, so it may be shared between goroutines where the
// SessionClient itself may not. expiry is the current access token's expiry;
// the zero time forces a refresh on first use.
//
// ctx is only used for its values; refreshes are not cancelled with it.
func (c *SessionClient) TokenSource(ctx context.Context, expiry time.Time) oauth2.TokenSource {
	if ctx == nil {
		ctx = context.Background()
	}
	var current *oauth2.Token
	if access := c.AccessToken(); !access.IsZero() && !expiry.IsZero() {
		current = &oauth2.Token{
			AccessToken:  access.Secret(),
			TokenType:    "bearer",
			RefreshToken: c.RefreshToken().Secret(),
			Expiry:       expiry,
		}
	}
	return oauth2.ReuseTokenSource(current, &refreshingSource{client: c, ctx: context.WithoutCancel(ctx)})
}

type refreshingSource struct {
	client *SessionClient
	ctx    context.Context
}

func (s *refreshingSource) Token() (*oauth2.Token, error) {
	session, err := s.client.Refresh(s.ctx)
	if err != nil {
		return nil, err
	}
	if session.AccessToken.IsZero() {
		return nil, errors.New("empty access token returned")
	}
	return session.Token(), nil
}
