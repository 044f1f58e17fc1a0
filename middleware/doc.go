// Package middleware exposes HTTP adapters around dashauth.Engine: session
// guards for pages and APIs, capability checks, client metadata capture,
// request IDs, access logging and security headers.
//
// # Guards
//
//   - [RequireAPISession] answers a missing or invalid session with a JSON 401.
//   - [RequirePageSession] redirects to the login page with a from= parameter.
//   - [RequireCapability] answers 401 without a session and 403 when the
//     session lacks the capability.
//
// Guards read the session cookie through Engine.RequireAuth and inject the
// verified session with dashauth.WithSession.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It never
// decodes tokens or consults stores itself.
package middleware
