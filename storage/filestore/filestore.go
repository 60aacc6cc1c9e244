// Package filestore persists keys as a single JSON document on disk. It is
// the desktop/CLI analog of browser local storage: one small file, replaced
// atomically on every write so a crash never leaves a half-written record.
//
// # What this package must NOT do
//
//   - Interpret the stored bytes (values are opaque to the store).
//   - Hold the file open between operations.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxtrail/fxclient/storage"
)

// Store keeps all keys in one JSON file. Concurrent access within a process
// is serialized by an internal mutex; cross-process locking is out of scope.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a store backed by the file at path. The file and its parent
// directory are created lazily on the first Set.
func New(path string) *Store {
	return &Store{path: path}
}

// Get returns the value stored under key or [storage.ErrNotFound]. A missing
// or unreadable file is treated as an empty store.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return nil, err
	}
	raw, ok := data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return raw, nil
}

// Set replaces the value stored under key and rewrites the backing file.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	stored := make(json.RawMessage, len(value))
	copy(stored, value)
	data[key] = stored
	return s.write(data)
}

// Delete removes key and rewrites the backing file. Deleting an absent key
// is not an error; an empty store removes the file entirely.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	if len(data) == 0 {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("filestore: remove: %w", err)
		}
		return nil
	}
	return s.write(data)
}

func (s *Store) read() (map[string]json.RawMessage, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("filestore: read: %w", err)
	}

	data := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &data); err != nil {
		// Corrupt file: start over rather than failing every operation.
		return map[string]json.RawMessage{}, nil
	}
	return data, nil
}

func (s *Store) write(data map[string]json.RawMessage) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("filestore: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("filestore: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("filestore: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("filestore: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("filestore: rename: %w", err)
	}
	return nil
}
