package filehost

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenLeeway renews tokens slightly before their stated expiry so an
// in-flight request does not race the deadline.
const tokenLeeway = 30 * time.Second

// SetAuthToken installs a session token and records its expiry. The token's
// signature is enforced by the filehost itself; the client only reads the
// claims to know when to renew.
func (c *Client) SetAuthToken(token string) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("parsing filehost token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fmt.Errorf("filehost token has no usable expiry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.tokenExp = exp.Time
	return nil
}

func (c *Client) tokenValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != "" && time.Now().Add(tokenLeeway).Before(c.tokenExp)
}

// ensureToken renews the session token through the token source when the
// current one is missing or about to expire.
func (c *Client) ensureToken(ctx context.Context) error {
	if c.tokenValid() {
		return nil
	}
	if c.tokens == nil {
		return ErrTokenExpired
	}

	token, err := c.tokens(ctx)
	if err != nil {
		return fmt.Errorf("renewing filehost token: %w", err)
	}
	if err := c.SetAuthToken(token); err != nil {
		return err
	}
	c.log.Debug(ctx, "filehost token renewed")
	return nil
}
