package tours

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims are the claims embedded in a session token
type JWTClaims struct {
	jwt.RegisteredClaims
	UID string `json:"uid"`
}

// UserID returns the identity the token was issued to
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// IssuedAtTime returns the iat claim, zero when missing
func (c *JWTClaims) IssuedAtTime() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}

// ExpiresAtTime returns the exp claim, zero when missing
func (c *JWTClaims) ExpiresAtTime() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}
