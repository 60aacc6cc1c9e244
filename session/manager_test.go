package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/fxtrail/fxclient/storage"
	"github.com/fxtrail/fxclient/storage/memstore"
)

func testUser() User {
	return User{ID: "u1", Name: "Alice", Email: "alice@example.com"}
}

func newTestManager(t *testing.T) (*Manager, storage.Store, *tokenRecorder) {
	t.Helper()
	store := memstore.New()
	rec := &tokenRecorder{}
	return NewManager(store, "", rec.sink, nil), store, rec
}

type tokenRecorder struct {
	tokens []string
}

func (r *tokenRecorder) sink(token string) {
	r.tokens = append(r.tokens, token)
}

func (r *tokenRecorder) last(t *testing.T) string {
	t.Helper()
	if len(r.tokens) == 0 {
		t.Fatalf("no token pushed to sink")
	}
	return r.tokens[len(r.tokens)-1]
}

func TestSetUserEstablishesSession(t *testing.T) {
	m, store, rec := newTestManager(t)

	if err := m.SetUser(context.Background(), testUser(), "A1", "R1"); err != nil {
		t.Fatalf("SetUser failed: %v", err)
	}

	if !m.IsAuthenticated() {
		t.Fatalf("expected authenticated session")
	}
	if got := m.AccessToken(); got != "A1" {
		t.Fatalf("access token = %q, want A1", got)
	}
	if got := m.RefreshToken(); got != "R1" {
		t.Fatalf("refresh token = %q, want R1", got)
	}
	if user := m.CurrentUser(); user == nil || user.ID != "u1" {
		t.Fatalf("unexpected user %+v", user)
	}
	if got := rec.last(t); got != "A1" {
		t.Fatalf("sink received %q, want A1", got)
	}

	raw, err := store.Get(context.Background(), DefaultRecordKey)
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		t.Fatalf("record not readable: %v", err)
	}
	if !record.Complete() {
		t.Fatalf("persisted record incomplete: %+v", record)
	}
	if record.Email != "alice@example.com" || record.UserID != "u1" {
		t.Fatalf("denormalized fields wrong: email=%q userId=%q", record.Email, record.UserID)
	}
}

func TestSetUserRejectsPartialCredentials(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		user    User
		access  string
		refresh string
	}{
		{"no user id", User{}, "A1", "R1"},
		{"no access token", testUser(), "", "R1"},
		{"no refresh token", testUser(), "A1", ""},
	}
	for _, tc := range cases {
		if err := m.SetUser(ctx, tc.user, tc.access, tc.refresh); !errors.Is(err, ErrPartialSession) {
			t.Fatalf("%s: err = %v, want ErrPartialSession", tc.name, err)
		}
	}
	if m.IsAuthenticated() {
		t.Fatalf("rejected transition must leave the session anonymous")
	}
}

func TestUpdateTokensRequiresSession(t *testing.T) {
	m, _, _ := newTestManager(t)

	if err := m.UpdateTokens(context.Background(), "A2", "R2"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}

func TestUpdateTokensKeepsIdentity(t *testing.T) {
	m, store, rec := newTestManager(t)
	ctx := context.Background()

	if err := m.SetUser(ctx, testUser(), "A1", "R1"); err != nil {
		t.Fatalf("SetUser failed: %v", err)
	}
	if err := m.UpdateTokens(ctx, "A2", "R2"); err != nil {
		t.Fatalf("UpdateTokens failed: %v", err)
	}

	if got := m.AccessToken(); got != "A2" {
		t.Fatalf("access token = %q, want A2", got)
	}
	if user := m.CurrentUser(); user == nil || user.Name != "Alice" {
		t.Fatalf("identity changed by token rotation: %+v", user)
	}
	if got := rec.last(t); got != "A2" {
		t.Fatalf("sink received %q, want A2", got)
	}

	raw, err := store.Get(ctx, DefaultRecordKey)
	if err != nil {
		t.Fatalf("record missing after rotation: %v", err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		t.Fatalf("record not readable: %v", err)
	}
	if record.AccessToken != "A2" || record.RefreshToken != "R2" {
		t.Fatalf("rotation not persisted: %+v", record)
	}
}

func TestLogoutIsTerminalAndIdempotent(t *testing.T) {
	m, store, rec := newTestManager(t)
	ctx := context.Background()

	if err := m.SetUser(ctx, testUser(), "A1", "R1"); err != nil {
		t.Fatalf("SetUser failed: %v", err)
	}
	if err := m.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if m.IsAuthenticated() {
		t.Fatalf("still authenticated after logout")
	}
	if user := m.CurrentUser(); user != nil {
		t.Fatalf("user survives logout: %+v", user)
	}
	if got := rec.last(t); got != "" {
		t.Fatalf("sink received %q after logout, want empty", got)
	}
	if _, err := store.Get(ctx, DefaultRecordKey); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("record survives logout: err = %v", err)
	}

	// Second logout on an already anonymous manager is a clean no-op.
	if err := m.Logout(ctx); err != nil {
		t.Fatalf("repeated Logout failed: %v", err)
	}
}

func TestRehydrateRestoresSessionAcrossManagers(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	first := NewManager(store, "", nil, nil)
	if err := first.SetUser(ctx, testUser(), "A1", "R1"); err != nil {
		t.Fatalf("SetUser failed: %v", err)
	}

	// A fresh manager on the same store stands in for a process restart.
	rec := &tokenRecorder{}
	second := NewManager(store, "", rec.sink, nil)
	if err := second.Rehydrate(ctx); err != nil {
		t.Fatalf("Rehydrate failed: %v", err)
	}

	if !second.IsAuthenticated() {
		t.Fatalf("rehydrated manager not authenticated")
	}
	snap := second.Snapshot()
	if snap.AccessToken != "A1" || snap.RefreshToken != "R1" {
		t.Fatalf("tokens not restored: %+v", snap)
	}
	if snap.User == nil || snap.User.Email != "alice@example.com" {
		t.Fatalf("identity not restored: %+v", snap.User)
	}
	if got := rec.last(t); got != "A1" {
		t.Fatalf("sink received %q on rehydration, want A1", got)
	}
}

func TestRehydrateMissingRecordStartsAnonymous(t *testing.T) {
	m, _, _ := newTestManager(t)

	if err := m.Rehydrate(context.Background()); err != nil {
		t.Fatalf("Rehydrate failed: %v", err)
	}
	if m.IsAuthenticated() {
		t.Fatalf("expected anonymous start")
	}
}

func TestRehydrateDiscardsIncompleteRecord(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	// Authenticated flag without a refresh token: never trustable.
	partial := Record{
		User:            &User{ID: "u1"},
		AccessToken:     "A1",
		IsAuthenticated: true,
	}
	raw, err := json.Marshal(partial)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := store.Set(ctx, DefaultRecordKey, raw); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	m := NewManager(store, "", nil, nil)
	if err := m.Rehydrate(ctx); err != nil {
		t.Fatalf("Rehydrate failed: %v", err)
	}
	if m.IsAuthenticated() {
		t.Fatalf("incomplete record must not authenticate")
	}
	if _, err := store.Get(ctx, DefaultRecordKey); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("incomplete record not removed: err = %v", err)
	}
}

func TestRehydrateDiscardsCorruptRecord(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	if err := store.Set(ctx, DefaultRecordKey, []byte("{not json")); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	m := NewManager(store, "", nil, nil)
	if err := m.Rehydrate(ctx); err != nil {
		t.Fatalf("Rehydrate failed: %v", err)
	}
	if m.IsAuthenticated() {
		t.Fatalf("corrupt record must not authenticate")
	}
}

func TestSnapshotIsValueCopy(t *testing.T) {
	m, _, _ := newTestManager(t)
	if err := m.SetUser(context.Background(), testUser(), "A1", "R1"); err != nil {
		t.Fatalf("SetUser failed: %v", err)
	}

	snap := m.Snapshot()
	snap.User.Name = "Mallory"

	if user := m.CurrentUser(); user.Name != "Alice" {
		t.Fatalf("snapshot mutation leaked into manager state: %q", user.Name)
	}
}
