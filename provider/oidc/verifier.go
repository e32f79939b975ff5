// Package oidc validates federated identity assertions (OIDC ID tokens)
// against the provider's published JWKS.
package oidc

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	identity "github.com/harborauth/go-identity"
)

// Config carries the provider endpoints and expected token claims.
type Config struct {
	// JWKSEndpoint is the provider's key-set URL.
	JWKSEndpoint string
	// Issuer must match the token's iss claim.
	Issuer string
	// Audience must match the token's aud claim. Empty skips the check.
	Audience string
	// RefreshInterval bounds background JWKS refreshes.
	RefreshInterval time.Duration
}

type idTokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Verifier validates raw ID tokens and maps their claims onto a
// federated assertion.
type Verifier struct {
	config Config
	jwks   *keyfunc.JWKS
}

var _ identity.AssertionVerifier = (*Verifier)(nil)

// NewVerifier fetches the provider JWKS and keeps it refreshed in the
// background until Close is called.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.JWKSEndpoint == "" {
		return nil, fmt.Errorf("oidc: JWKS endpoint is required")
	}
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("oidc: issuer is required")
	}

	refresh := cfg.RefreshInterval
	if refresh == 0 {
		refresh = time.Hour
	}

	jwks, err := keyfunc.Get(cfg.JWKSEndpoint, keyfunc.Options{
		RefreshInterval:   refresh,
		RefreshRateLimit:  time.Minute,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			// Stale keys keep serving until the next successful refresh.
		},
	})
	if err != nil {
		return nil, fmt.Errorf("oidc: failed to load JWKS: %w", err)
	}

	return &Verifier{
		config: cfg,
		jwks:   jwks,
	}, nil
}

// Close stops the background JWKS refresh.
func (v *Verifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// Verify implements identity.AssertionVerifier.
func (v *Verifier) Verify(ctx context.Context, rawAssertion string) (*identity.FederatedAssertion, error) {
	if rawAssertion == "" {
		return nil, v.rejected(stderrors.New("empty assertion"))
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.config.Issuer),
	}
	if v.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.config.Audience))
	}

	claims := &idTokenClaims{}
	token, err := jwt.ParseWithClaims(rawAssertion, claims, v.jwks.Keyfunc, opts...)
	if err != nil {
		return nil, v.rejected(err)
	}

	if !token.Valid {
		return nil, v.rejected(stderrors.New("assertion failed validation"))
	}

	if claims.Email == "" || claims.Subject == "" {
		return nil, v.rejected(stderrors.New("assertion missing email or subject"))
	}

	return &identity.FederatedAssertion{
		Email:       claims.Email,
		DisplayName: claims.Name,
		Subject:     claims.Subject,
	}, nil
}

func (v *Verifier) rejected(err error) error {
	clone := identity.ErrProviderAssertion.Clone()
	clone.Source = err
	return clone.WithMetadata(map[string]any{
		"issuer": v.config.Issuer,
		"cause":  err.Error(),
	})
}
