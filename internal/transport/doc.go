// Package transport executes HTTP calls against the backend with automatic
// credential attachment and a single-shot, coalesced token refresh on 401.
//
// # Refresh contract
//
// A 401 on a request that has not been retried triggers the [Refresher]. All
// requests observing a 401 while a refresh is already in flight wait for that
// one refresh instead of issuing their own; the winner's outcome is shared.
// The original request is then re-stamped and resent exactly once; a 401 on
// the retry is final, never a second refresh. Refresher failures surface as
// session-expired results; the refresher itself owns the session clearing.
//
// # Failure shape
//
// HTTP-level failures are never Go errors from Do. Every outcome is a
// [Result] carrying the status, a [FailureKind], and the decoded envelope so
// the orchestration layer can decide per call what to surface.
//
// # What this package must NOT do
//
//   - Mutate session state or durable storage (the refresher callback does).
//   - Emit notifications or touch the cache.
//   - Import the root package (no upward imports).
package transport
