// Package cache implements the tag-indexed read cache behind the client's
// query layer.
//
// Every cached read is filed under the logical resource tags it provides;
// every successful write names the tags it invalidates. Intersection marks
// entries stale, and a stale entry is refetched on next use. This is the
// only consistency mechanism between writes and cached reads; there is no
// manual busting anywhere else in the client.
package cache

import (
	"strings"
	"sync"
)

// Tag labels a cached read with the writes that must invalidate it. Tags may
// be broad ("Conversions") or instance-scoped ("Conversion:42").
type Tag string

// WithID scopes a tag to one resource instance.
func (t Tag) WithID(id string) Tag {
	return Tag(string(t) + ":" + id)
}

// Key builds a cache key from an operation name and its canonicalized
// parameters. Two calls with identical parts share one entry.
func Key(operation string, parts ...string) string {
	if len(parts) == 0 {
		return operation
	}
	return operation + "?" + strings.Join(parts, "&")
}

type entry struct {
	value []byte
	tags  []Tag
	stale bool
}

// Store is the in-memory tag cache. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty cache.
func New() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Lookup returns the cached value for key. fresh is false when the entry is
// absent or has been invalidated; callers refetch in either case, but a
// stale value remains available for render-while-revalidate use.
func (s *Store) Lookup(key string) (value []byte, fresh bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, !e.stale
}

// Set stores value under key with its providing tags, replacing any previous
// entry and clearing its stale mark.
func (s *Store) Set(key string, value []byte, tags ...Tag) {
	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &entry{
		value: stored,
		tags:  append([]Tag(nil), tags...),
	}
}

// Invalidate marks every entry whose tag set intersects tags as stale and
// returns how many entries were affected.
func (s *Store) Invalidate(tags ...Tag) int {
	if len(tags) == 0 {
		return 0
	}
	marked := map[Tag]struct{}{}
	for _, t := range tags {
		marked[t] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	affected := 0
	for _, e := range s.entries {
		if e.stale {
			continue
		}
		for _, t := range e.tags {
			if _, hit := marked[t]; hit {
				e.stale = true
				affected++
				break
			}
		}
	}
	return affected
}

// Remove drops the entry for key, if any.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Clear drops every entry. Called on logout so one user's cached reads can
// never leak into the next session.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry)
}

// Len reports the number of entries, stale ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
