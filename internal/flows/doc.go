// Package flows contains pure-function orchestrators for Engine operations.
//
// Each flow function ([RunLogin], [RunCan], [RunAllowedCompanies]) accepts a typed
// dependency struct and returns results without side effects beyond those dependencies.
// The Engine builds the dependency structs once and delegates to these functions, which
// keeps ordering rules testable with plain function fakes.
//
// # Architecture boundaries
//
// Flow functions coordinate the rate limiter, user and permission lookups, the session
// codec, audit emission, and metrics. They do NOT own any of these resources.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import dashauth (to avoid import cycles).
//   - Perform I/O directly; all I/O goes through dependency functions.
package flows
