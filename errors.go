package identity

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced to API clients alongside status codes.
const (
	TextCodeIdentityNotFound     = "identity_not_found"
	TextCodeBadCredential        = "bad_credential"
	TextCodeDuplicateIdentity    = "duplicate_identity"
	TextCodeIdentityCollision    = "identity_collision"
	TextCodeTokenExpired         = "token_expired"
	TextCodeTokenInvalid         = "token_invalid"
	TextCodeUnauthenticated      = "unauthenticated"
	TextCodeForbidden            = "forbidden"
	TextCodeEmailUnverified      = "email_unverified"
	TextCodeVerificationMissing  = "verification_token_not_found"
	TextCodeVerificationExpired  = "verification_token_expired"
	TextCodeProviderAssertion    = "provider_assertion_invalid"
	TextCodeWeakPassword         = "weak_password"
	TextCodePasswordlessAccount  = "passwordless_account"
	TextCodeMailDeliveryDeferred = "mail_delivery_deferred"
)

// ErrIdentityNotFound is returned when no user matches an identifier.
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeIdentityNotFound)

// ErrBadCredential is returned when a secret does not match the stored hash.
// It is deliberately indistinguishable in message from a missing identity at
// the login boundary.
var ErrBadCredential = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeBadCredential)

// ErrDuplicateIdentity is returned when a signup collides with an existing
// username.
var ErrDuplicateIdentity = goerrors.New("identity already registered", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict).
	WithTextCode(TextCodeDuplicateIdentity)

// ErrIdentityCollision is returned when a federated assertion resolves to an
// existing local (non-federated) account. The accounts are not merged; the
// user must link them explicitly.
var ErrIdentityCollision = goerrors.New("email belongs to a local account", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict).
	WithTextCode(TextCodeIdentityCollision)

// ErrTokenExpired is returned when a bearer token fails expiry validation.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed is returned when a bearer token fails signature or
// structural validation.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenInvalid)

// ErrUnauthenticated is returned by the access gate when no authenticated
// principal can be established for a request.
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeUnauthenticated)

// ErrForbidden is returned when the principal's role does not permit the
// requested resource.
var ErrForbidden = goerrors.New("insufficient role", goerrors.CategoryAuth).
	WithCode(goerrors.CodeForbidden).
	WithTextCode(TextCodeForbidden)

// ErrEmailUnverified is returned by the access gate for local accounts that
// have not confirmed their email address yet.
var ErrEmailUnverified = goerrors.New("email address not verified", goerrors.CategoryAuth).
	WithCode(goerrors.CodeForbidden).
	WithTextCode(TextCodeEmailUnverified)

// ErrVerificationNotFound is returned when a verification token does not
// match any account: unknown, or already consumed.
var ErrVerificationNotFound = goerrors.New("verification token is invalid", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeVerificationMissing)

// ErrVerificationExpired is returned when a verification token matched but
// its expiry has passed. The token stays invalid; no regeneration happens.
var ErrVerificationExpired = goerrors.New("verification token has expired", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeVerificationExpired)

// ErrProviderAssertion is returned when a federated identity assertion is
// malformed or cannot be validated against the provider.
var ErrProviderAssertion = goerrors.New("identity assertion rejected", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeProviderAssertion)

// ErrWeakPassword is returned when a password fails the strength policy.
var ErrWeakPassword = goerrors.New("password does not meet the required criteria", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeWeakPassword)

// ErrPasswordlessAccount is returned when a password operation targets a
// federated account that has no local credential.
var ErrPasswordlessAccount = goerrors.New("no password set for this account", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodePasswordlessAccount)

// ErrMailDelivery wraps verification email hand-off failures. Issuance is
// never rolled back on delivery failure; callers log and surface this as a
// degraded success.
var ErrMailDelivery = goerrors.New("verification email could not be delivered", goerrors.CategoryOperation).
	WithTextCode(TextCodeMailDeliveryDeferred)

// ErrNoEmptyString rejects empty input to hashing helpers.
var ErrNoEmptyString = errors.New("value must not be empty")

// ErrTokenNotCached is the cache-miss sentinel for the token cache.
var ErrTokenNotCached = errors.New("no cached token for principal")

// ErrSessionNotFound is the miss sentinel for the session store.
var ErrSessionNotFound = errors.New("session not found")

// IsAuthFailure reports whether err maps to a 401 at the request boundary.
func IsAuthFailure(err error) bool {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == goerrors.CategoryAuth
	}
	return false
}

// IsNotFound reports whether err represents a missing record, either from
// the repository layer or from this package's taxonomy.
func IsNotFound(err error) bool {
	if goerrors.IsNotFound(err) {
		return true
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == goerrors.CategoryNotFound
	}
	return false
}
