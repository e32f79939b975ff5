package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims is the decoded view of a bearer token.
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
	Expires() time.Time
	IssuedAt() time.Time
}

// BearerClaims is the concrete claims payload carried by bearer tokens.
// The identity lives in the `id` claim; everything else is standard.
type BearerClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"id,omitempty"`
	UserRole string `json:"role,omitempty"`
}

var _ AuthClaims = (*BearerClaims)(nil)

// Subject returns the subject claim.
func (c *BearerClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the principal id carried by the token.
func (c *BearerClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the role snapshot taken at mint time.
func (c *BearerClaims) Role() string {
	return c.UserRole
}

// Expires returns the expiration time.
func (c *BearerClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issue time.
func (c *BearerClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
