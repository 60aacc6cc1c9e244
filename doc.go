// Package fxclient is a Go client for the currency-conversion backend: typed
// operations for authentication, conversions, exchange rates, and the audit
// event feed, on top of an authenticated request pipeline with transparent
// token refresh.
//
// All business logic (rate computation, persistence, audit logging) lives
// in the backend. This package renders none of it; it issues requests,
// keeps the session consistent across process restarts, caches reads under
// invalidation tags, and hands user-facing notifications to whatever sink
// the embedding application wires in.
//
// # Architecture boundaries
//
// fxclient is the public surface. It exposes [Client], [Builder], [Config],
// the typed request/response types, and the sentinel errors. Session state
// lives in [github.com/fxtrail/fxclient/session], durable persistence behind
// [github.com/fxtrail/fxclient/storage], and the HTTP pipeline under
// internal/ where it cannot be reached around the orchestration layer.
//
// # What this package must NOT do
//
//   - Verify token signatures or make authorization decisions (backend-owned).
//   - Render UI, format CSV, or route pages.
//   - Keep package-level mutable state: every Client owns its own session,
//     cache, and credential cell.
//
// # Session and refresh contract
//
// A 401 triggers at most one silent refresh per call, coalesced across
// concurrent calls, followed by exactly one retry. When no refresh
// credential exists, or the refresh itself fails, the session is cleared
// everywhere (memory, credential cell, durable record) and the call fails
// with [ErrSessionExpired]; the embedder is expected to route to its login
// entry point.
package fxclient
