// Package rate implements fixed-window attempt counters used to gate login attempts.
//
// # Window semantics
//
// The first attempt for a key opens a window of the configured length. Attempts inside
// the window are counted until the maximum is reached; further attempts are denied
// without being counted and report the unchanged reset time. After the window closes,
// the next attempt opens a fresh window.
//
// # Backends
//
//   - [Memory] keeps a mutex-guarded table in process memory. [Sweeper] removes closed
//     windows on a cron schedule. Counts are per-instance.
//   - [Redis] keeps one key per window with a PEXPIRE equal to the window, evaluated
//     atomically by a Lua script, so every instance shares the same counts.
//
// # What this package must NOT do
//
//   - Decide which keys to build (the Engine does that).
//   - Be imported outside the dashauth module.
package rate
