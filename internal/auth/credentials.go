// Package auth holds the engine's view of the identity provider: a token
// it was handed and never refreshes itself.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned when no access token has been configured.
var ErrNoToken = errors.New("no access token configured")

// StaticCredentials wraps a fixed access token. The token is forwarded
// opaquely; claims are read without signature verification and are
// advisory only (display name, expiry hints for the caller).
type StaticCredentials struct {
	token  string
	claims jwt.MapClaims
}

// NewStaticCredentials creates credentials around a raw bearer token. A
// token that does not parse as a JWT is still usable; it just carries no
// claims.
func NewStaticCredentials(token string) *StaticCredentials {
	c := &StaticCredentials{token: token}
	if token == "" {
		return c
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		c.claims = claims
	}
	return c
}

// AccessToken returns the configured token, which may be stale. Expired
// tokens are not refreshed here; the backend rejects them like any other
// bad request.
func (c *StaticCredentials) AccessToken() (string, error) {
	if c.token == "" {
		return "", ErrNoToken
	}
	return c.token, nil
}

// DisplayName returns the token's name claim, or empty when absent.
func (c *StaticCredentials) DisplayName() string {
	return c.stringClaim("name")
}

// Email returns the token's email claim, or empty when absent.
func (c *StaticCredentials) Email() string {
	return c.stringClaim("email")
}

// Subject returns the token's subject claim, or empty when absent.
func (c *StaticCredentials) Subject() string {
	return c.stringClaim("sub")
}

// ExpiresAt returns the token's expiry claim when present.
func (c *StaticCredentials) ExpiresAt() (time.Time, bool) {
	if c.claims == nil {
		return time.Time{}, false
	}
	exp, err := c.claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether the token's expiry claim has passed. Tokens
// without a readable expiry are assumed live.
func (c *StaticCredentials) Expired(now time.Time) bool {
	exp, ok := c.ExpiresAt()
	if !ok {
		return false
	}
	return now.After(exp)
}

func (c *StaticCredentials) stringClaim(key string) string {
	if c.claims == nil {
		return ""
	}
	value, _ := c.claims[key].(string)
	return value
}
