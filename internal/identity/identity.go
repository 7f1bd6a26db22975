// Package identity issues and verifies the short-lived RS256 JWTs the
// Compliance Gate (C6b) binds to a subject's verified attribute hashes, so
// repeated evaluate() calls need not re-fetch off-chain attributes within
// the token's lifetime.
package identity
