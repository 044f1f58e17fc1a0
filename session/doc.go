// Package session implements the signed session token format and the cookie policy
// that carries it.
//
// # Wire format
//
// A token is two unpadded base64url segments joined by a dot:
//
//	base64url(JSON payload) "." base64url(HMAC-SHA256(secret, first segment))
//
// The payload holds sub, email, name, role, companies, iat and exp. Nothing is stored
// server-side; a token is valid for as long as its signature matches and exp has not
// passed.
//
// # Architecture boundaries
//
// This package owns encoding, signing, verification, and cookie attributes. It does NOT
// look users up, evaluate permissions, or apply rate limits. Those belong to the Engine.
//
// # What this package must NOT do
//
//   - Import dashauth or middleware (no upward imports).
//   - Distinguish expired tokens from forged ones to callers.
//   - Log or persist token values.
package session
