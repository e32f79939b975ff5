// Package identity implements the identity and credential-consistency core
// of a web application backend: local and federated authentication
// strategies, a session/access gate that reconciles session state,
// email-verification state, and a cache-backed bearer token, a single-use
// email verification issuer, and usage statistics derived from an
// append-only activity log.
//
// Stores, caches, mailers, and assertion verifiers are injected as
// interfaces so the core is unit testable without HTTP or infrastructure.
package identity
