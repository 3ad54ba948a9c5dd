// Package token implements stateless access token issuance and verification.
//
// Tokens are HS256-signed JWTs carrying the user id as subject plus the email,
// issued-at and expiry claims. Verification is pure: no storage lookup and no
// revocation list, so invalidation happens only through expiry. Revocable
// lifetime belongs to refresh tokens, which live in storage.
package token
