// Package session owns the authoritative in-memory view of "who is logged
// in" and its durable mirror.
//
// # State machine
//
// A [Manager] is either anonymous or authenticated. Login, registration, and
// startup rehydration move it to authenticated; token refresh updates the two
// credential fields in place without touching identity; logout or an
// unrecoverable refresh failure clears everything. No other transition
// exists, and a transition that would leave partial credentials behind is
// rejected with [ErrPartialSession].
//
// # Write-through
//
// Every transition persists the session record before returning and pushes
// the (possibly empty) access token into the credential cell, so durable
// storage, in-memory state, and the request-stamping path converge after
// every mutation.
//
// # What this package must NOT do
//
//   - Perform HTTP calls or interpret token contents.
//   - Import the root package or the transport (no upward imports).
package session
