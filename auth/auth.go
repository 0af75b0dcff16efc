package auth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCred acquires and caches bearer tokens for the platform API.
type ClientCred struct {
	conf clientcredentials.Config
	base *http.Client
	src  oauth2.TokenSource
}

// NewClientCred returns a token provider. base is used to reach the token
// endpoint; nil means http.DefaultClient.
func NewClientCred(conf Conf, base *http.Client) *ClientCred {
	if base == nil {
		base = http.DefaultClient
	}
	c := &ClientCred{conf: conf.toOauth2Config(), base: base}
	c.src = c.conf.TokenSource(c.tokenContext(context.Background()))
	return c
}

func (c *ClientCred) tokenContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.base)
}

// Token returns a valid access token, fetching a new one when the cached
// token expired.
func (c *ClientCred) Token() (string, error) {
	tok, err := c.src.Token()
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}
	return tok.AccessToken, nil
}

// ForceRefresh discards the cached token and fetches a new one.
func (c *ClientCred) ForceRefresh(ctx context.Context) (string, error) {
	tok, err := c.conf.Token(c.tokenContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}
	c.src = oauth2.ReuseTokenSource(tok, c.conf.TokenSource(c.tokenContext(context.Background())))
	return tok.AccessToken, nil
}

// SetAuthHeader sets the Authorization header of r.
func (c *ClientCred) SetAuthHeader(r *http.Request) error {
	tok, err := c.src.Token()
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}
	tok.SetAuthHeader(r)
	return nil
}

// Client returns an HTTP client that authenticates every request, sharing
// base's transport and timeout.
func (c *ClientCred) Client() *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{Source: c.src, Base: c.base.Transport},
		Timeout:   c.base.Timeout,
	}
}
