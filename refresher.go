package fxclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/fxtrail/fxclient/internal/envelope"
	"github.com/fxtrail/fxclient/session"
	"github.com/fxtrail/fxclient/storage"
)

// sessionRefresher exchanges the persisted refresh credential for a fresh
// token pair. It satisfies transport.Refresher; the pipeline guarantees at
// most one concurrent invocation. Any failure clears the session everywhere
// before returning, so callers observing an error can rely on a clean
// anonymous state.
type sessionRefresher struct {
	baseURL  string
	http     *http.Client
	store    storage.Store
	key      string
	sessions *session.Manager
	logger   *slog.Logger
}

type refreshPayload struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshTokens struct {
	Tokens TokenPair `json:"tokens"`
}

// Refresh implements the refresh-and-clear contract. The refresh credential
// is read from durable storage, not memory, so a cold process that only ever
// served stamped requests can still recover.
func (r *sessionRefresher) Refresh(ctx context.Context) (string, error) {
	refreshToken := r.storedRefreshToken(ctx)
	if refreshToken == "" {
		r.clear(ctx)
		return "", fmt.Errorf("refresh: no refresh credential: %w", ErrSessionExpired)
	}

	pair, err := r.exchange(ctx, refreshToken)
	if err != nil {
		r.logger.Warn("fxclient: token refresh failed", "err", err)
		r.clear(ctx)
		return "", fmt.Errorf("refresh: %w", ErrSessionExpired)
	}

	if err := r.sessions.UpdateTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		// Tokens arrived but no session exists to attach them to; treating
		// this as expiry keeps the invariant that credentials never outlive
		// their identity.
		r.clear(ctx)
		return "", fmt.Errorf("refresh: apply tokens: %w", ErrSessionExpired)
	}
	return pair.AccessToken, nil
}

// exchange performs the bare refresh call. It bypasses the pipeline on
// purpose: no bearer stamping and no recursive 401 handling.
func (r *sessionRefresher) exchange(ctx context.Context, refreshToken string) (TokenPair, error) {
	raw, err := json.Marshal(refreshPayload{RefreshToken: refreshToken})
	if err != nil {
		return TokenPair{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/auth/refresh-token", bytes.NewReader(raw))
	if err != nil {
		return TokenPair{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return TokenPair{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return TokenPair{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return TokenPair{}, fmt.Errorf("refresh endpoint returned %d", resp.StatusCode)
	}

	env, err := envelope.Decode(body)
	if err != nil {
		return TokenPair{}, err
	}
	var data refreshTokens
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return TokenPair{}, err
	}
	if data.Tokens.AccessToken == "" || data.Tokens.RefreshToken == "" {
		return TokenPair{}, fmt.Errorf("refresh endpoint returned incomplete token pair")
	}
	return data.Tokens, nil
}

func (r *sessionRefresher) storedRefreshToken(ctx context.Context) string {
	raw, err := r.store.Get(ctx, r.key)
	if err != nil {
		return ""
	}
	var record session.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return ""
	}
	return record.RefreshToken
}

func (r *sessionRefresher) clear(ctx context.Context) {
	if err := r.sessions.Logout(ctx); err != nil {
		r.logger.Warn("fxclient: session clear after refresh failure incomplete", "err", err)
	}
}
