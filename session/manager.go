package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fxtrail/fxclient/storage"
)

// DefaultRecordKey is the storage key holding the persisted session record.
const DefaultRecordKey = "user"

// ErrPartialSession is returned when a transition would leave credentials
// without an identity, or an identity without both credentials.
var ErrPartialSession = errors.New("session: partial credentials rejected")

// ErrNoSession is returned by UpdateTokens when no session is established.
var ErrNoSession = errors.New("session: no active session")

// TokenSink receives the current access token after every transition. The
// credential cell satisfies this; the indirection avoids an import cycle
// between session state and the request-stamping path.
type TokenSink func(token string)

// Manager is the single writer of session state. All mutation goes through
// SetUser, UpdateTokens, and Logout; reads go through value-copy accessors.
// Safe for concurrent use.
type Manager struct {
	store  storage.Store
	key    string
	sink   TokenSink
	logger *slog.Logger

	mu      sync.RWMutex
	current Session
}

// NewManager returns an anonymous manager persisting under key (or
// [DefaultRecordKey] when key is empty). sink may be nil. Call Rehydrate to
// seed state from a previously persisted record.
func NewManager(store storage.Store, key string, sink TokenSink, logger *slog.Logger) *Manager {
	if key == "" {
		key = DefaultRecordKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		key:    key,
		sink:   sink,
		logger: logger,
	}
}

// Rehydrate seeds the manager from the persisted record. A missing record is
// a clean anonymous start; a corrupt or incomplete record is discarded and
// removed so it cannot be half-trusted on the next start.
func (m *Manager) Rehydrate(ctx context.Context) error {
	raw, err := m.store.Get(ctx, m.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		m.logger.Warn("session: rehydration read failed, starting anonymous", "err", err)
		return nil
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil || !record.Complete() {
		m.logger.Warn("session: discarding incomplete persisted record")
		if delErr := m.store.Delete(ctx, m.key); delErr != nil {
			m.logger.Warn("session: failed to remove stale record", "err", delErr)
		}
		return nil
	}

	m.mu.Lock()
	m.current = Session{
		User:          &User{ID: record.User.ID, Name: record.User.Name, Email: record.User.Email},
		AccessToken:   record.AccessToken,
		RefreshToken:  record.RefreshToken,
		Authenticated: true,
	}
	m.mu.Unlock()

	m.pushToken(record.AccessToken)
	return nil
}

// SetUser establishes an authenticated session for user with the given token
// pair. All three parts are required; anything less is ErrPartialSession.
func (m *Manager) SetUser(ctx context.Context, user User, accessToken, refreshToken string) error {
	if user.ID == "" || accessToken == "" || refreshToken == "" {
		return ErrPartialSession
	}

	m.mu.Lock()
	m.current = Session{
		User:          &User{ID: user.ID, Name: user.Name, Email: user.Email},
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		Authenticated: true,
	}
	snapshot := m.current
	m.mu.Unlock()

	m.pushToken(accessToken)
	return m.persist(ctx, snapshot)
}

// UpdateTokens replaces the credential pair of the current session, leaving
// identity untouched. Requires an established session.
func (m *Manager) UpdateTokens(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken == "" || refreshToken == "" {
		return ErrPartialSession
	}

	m.mu.Lock()
	if !m.current.Authenticated {
		m.mu.Unlock()
		return ErrNoSession
	}
	m.current.AccessToken = accessToken
	m.current.RefreshToken = refreshToken
	snapshot := m.current
	m.mu.Unlock()

	m.pushToken(accessToken)
	return m.persist(ctx, snapshot)
}

// Logout clears the session and removes the persisted record. Calling it on
// an anonymous manager is a no-op with the same terminal state.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.current = Session{}
	m.mu.Unlock()

	m.pushToken("")
	if err := m.store.Delete(ctx, m.key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("session: clear record: %w", err)
	}
	return nil
}

// IsAuthenticated reports whether a session is established.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Authenticated
}

// CurrentUser returns a copy of the session identity, or nil when anonymous.
func (m *Manager) CurrentUser() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current.User == nil {
		return nil
	}
	user := *m.current.User
	return &user
}

// AccessToken returns the current access credential, or "" when anonymous.
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.AccessToken
}

// RefreshToken returns the current refresh credential, or "" when anonymous.
func (m *Manager) RefreshToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.RefreshToken
}

// Snapshot returns a value copy of the full session state.
func (m *Manager) Snapshot() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot := m.current
	if snapshot.User != nil {
		user := *snapshot.User
		snapshot.User = &user
	}
	return snapshot
}

func (m *Manager) pushToken(token string) {
	if m.sink != nil {
		m.sink(token)
	}
}

func (m *Manager) persist(ctx context.Context, snapshot Session) error {
	record := Record{
		User:            snapshot.User,
		AccessToken:     snapshot.AccessToken,
		RefreshToken:    snapshot.RefreshToken,
		IsAuthenticated: snapshot.Authenticated,
	}
	if snapshot.User != nil {
		record.Email = snapshot.User.Email
		record.UserID = snapshot.User.ID
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("session: encode record: %w", err)
	}
	if err := m.store.Set(ctx, m.key, raw); err != nil {
		return fmt.Errorf("session: persist record: %w", err)
	}
	return nil
}
