// Package tokenstore provides durable storage backends for the session
// record.
//
// Three backends with different tradeoffs:
//   - File: local filesystem with atomic writes, secure permissions, and
//     change notifications so concurrent seedhub processes stay in sync
//   - Env: read-only environment variable access for injected sessions
//   - Keyring: OS-native credential storage (no change notifications)
//
// The record itself is opaque JSON owned by the session package; the
// backends move bytes.
package tokenstore
