// Package dashauth authenticates dashboard users and answers per-company
// authorization questions.
//
// Sessions are stateless: a session is an HMAC-SHA256 signed token carried
// in an HttpOnly cookie. Verification needs only the signing secret, so any
// replica holding the same secret accepts the same cookies.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// dashauth is the public surface. It exposes [Engine], [Builder], [Config],
// the store interfaces ([UserStore], [PermissionStore]) and value types.
// Flow orchestration, rate limiting, audit dispatch and logging setup live
// under internal/. Account and permission data always come from an
// external store; this package never writes them.
//
// # Failure behavior
//
// Login failures are indistinguishable to the caller: unknown users,
// disabled accounts, wrong secrets and store outages all return
// [ErrInvalidCredentials]. Authorization fails closed: any store error or
// unknown resource denies.
package dashauth
