// Package permission defines roles, resources, actions, and the per-company capability
// flags that dashauth authorization decisions are evaluated against.
//
// # Capability masks
//
// A [Record] carries one [Mask] per (user, company) pair. Each capability flag occupies a
// fixed bit; bit positions are part of the persisted format and never move.
//
// # Policy tables
//
// [CapabilityFor] maps a (resource, action) pair to the flag that grants it.
// [AdminOnly] names resources that no stored record can ever unlock.
//
// # What this package must NOT do
//
//   - Access the network, a database, or any store.
//   - Import dashauth, session, or middleware.
//   - Decide admin bypass (the Engine owns that rule).
package permission
