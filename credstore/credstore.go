// Package credstore holds the process-wide access credential that every
// outgoing request is stamped with. It is a deliberately tiny cell: the
// session manager writes it on every transition, the transport reads it
// before every send, and neither needs to know about the other.
//
// # What this package must NOT do
//
//   - Validate token shape or expiry.
//   - Mutate session state or durable storage.
package credstore

import "sync"

// Fallback supplies a token when the cell has never been written in this
// process, typically by reading the persisted session record. It must return
// "" on any failure; a broken fallback is equivalent to no token.
type Fallback func() string

// Cell stores the current access credential. The zero value is usable and
// reports no token. Safe for concurrent use.
type Cell struct {
	mu       sync.RWMutex
	token    string
	set      bool
	fallback Fallback
}

// New returns a cell that consults fallback on cold reads. A nil fallback
// disables the cold-read path.
func New(fallback Fallback) *Cell {
	return &Cell{fallback: fallback}
}

// SetToken replaces the held credential. An empty string clears it.
// Subsequent Token calls observe the new value immediately.
func (c *Cell) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.set = true
	c.mu.Unlock()
}

// Token returns the last value set in this process. If SetToken has never
// been called, the fallback is consulted so a freshly started process can
// stamp requests before session rehydration completes.
func (c *Cell) Token() string {
	c.mu.RLock()
	token, set, fallback := c.token, c.set, c.fallback
	c.mu.RUnlock()

	if set || fallback == nil {
		return token
	}
	return fallback()
}
