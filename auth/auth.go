// Package auth authenticates outgoing requests with OAuth2 client
// credentials and incoming API requests with a static bearer token.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCred caches the access token of a client credentials grant. It is
// safe for concurrent use.
type ClientCred struct {
	conf  clientcredentials.Config
	mu    sync.Mutex
	token *oauth2.Token
}

func NewClientCred(conf Conf) *ClientCred {
	return &ClientCred{conf: conf.toOauth2Config()}
}

// GetToken returns the cached access token, requesting a new one when it
// is missing or expired.
func (c *ClientCred) GetToken(ctx context.Context) (string, error) {
	tok, err := c.valid(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// ForceRefresh requests a new token even if the cached one is still valid.
func (c *ClientCred) ForceRefresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fetch(ctx); err != nil {
		return "", err
	}
	return c.token.AccessToken, nil
}

// SetAuthHeader adds the Authorization header to r.
func (c *ClientCred) SetAuthHeader(r *http.Request) error {
	tok, err := c.valid(r.Context())
	if err != nil {
		return err
	}
	tok.SetAuthHeader(r)
	return nil
}

func (c *ClientCred) valid(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil || !c.token.Valid() {
		if err := c.fetch(ctx); err != nil {
			return nil, err
		}
	}
	return c.token, nil
}

func (c *ClientCred) fetch(ctx context.Context) error {
	tok, err := c.conf.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}
	c.token = tok
	return nil
}

// RequireBearer rejects requests whose Authorization header does not carry
// token. An empty token lets every request through.
func RequireBearer(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	want := []byte("Bearer " + token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), want) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
