// Package audit defines the audit event model, sink implementations, and the
// asynchronous dispatcher that keeps sink latency and failures off request paths.
//
// # Components
//
//   - [Sink] receives events (channel, JSON lines, logrus, fan-out, no-op).
//   - [Dispatcher] is a buffered relay with drop-if-full or block-if-full semantics.
//     Sink errors are logged and counted, never returned to the emitter.
//
// # What this package must NOT do
//
//   - Decide which events to emit (the Engine does that).
//   - Carry secrets or session tokens in [Event] fields.
//   - Import dashauth or any sibling internal package.
package audit
