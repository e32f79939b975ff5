package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService mints and validates signed bearer tokens. The token carries
// the principal id and is independent of the cookie session; its cache-side
// lifetime is enforced by the TokenCache, its cryptographic lifetime here.
type TokenService interface {
	Mint(user *User) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

// TokenServiceImpl implements TokenService with HS256.
type TokenServiceImpl struct {
	signingKey []byte
	expiration time.Duration
	issuer     string
	logger     Logger
}

// NewTokenService creates a new TokenService instance.
func NewTokenService(signingKey []byte, expiration time.Duration, issuer string, logger Logger) *TokenServiceImpl {
	if expiration <= 0 {
		expiration = time.Hour
	}
	return &TokenServiceImpl{
		signingKey: signingKey,
		expiration: expiration,
		issuer:     issuer,
		logger:     normalizeLogger(logger),
	}
}

// Expiration exposes the configured token lifetime so the cache TTL can be
// kept aligned with the cryptographic expiry.
func (ts *TokenServiceImpl) Expiration() time.Duration {
	return ts.expiration
}

// Mint signs a fresh bearer token for the user.
func (ts *TokenServiceImpl) Mint(user *User) (string, error) {
	if user == nil || user.ID == uuid.Nil {
		return "", errors.New("cannot mint token without a user id", errors.CategoryInternal)
	}

	now := time.Now()
	claims := &BearerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   user.ID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.expiration)),
		},
		UID:      user.ID.String(),
		UserRole: string(user.Role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign bearer token")
	}

	return signed, nil
}

// Validate parses and validates a token string, returning structured claims.
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 1)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &BearerClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*BearerClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("token validate could not decode claims")
	return nil, ErrTokenMalformed
}
