package fxclient

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fxtrail/fxclient/cache"
	"github.com/fxtrail/fxclient/internal/transport"
	"github.com/fxtrail/fxclient/session"
)

type authPayload struct {
	Tokens TokenPair    `json:"tokens"`
	User   session.User `json:"user"`
}

// Health probes GET /health without notifications. Useful as a cheap
// reachability check before rendering a login form.
func (c *Client) Health(ctx context.Context, opts ...CallOption) error {
	_, err := c.query(ctx, callSpec{
		operation: "health",
		method:    http.MethodGet,
		path:      "/health",
		silent:    true,
	}, buildOptions(opts))
	return err
}

// Login authenticates with email and password. On success the session
// transitions to authenticated, the record is persisted, and any cached
// reads from a previous session are dropped.
func (c *Client) Login(ctx context.Context, req LoginRequest, opts ...CallOption) (*AuthResult, error) {
	if err := c.checkRequest("login", req); err != nil {
		return nil, err
	}

	env, err := c.mutate(ctx, callSpec{
		operation:      "login",
		method:         http.MethodPost,
		path:           "/auth/login",
		body:           req,
		invalidates:    []cache.Tag{TagUser},
		successMessage: "Welcome back! Login successful.",
	}, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	return c.establishSession(ctx, "login", env.Data)
}

// Register creates an account and logs it in, with the same session side
// effects as Login.
func (c *Client) Register(ctx context.Context, req RegisterRequest, opts ...CallOption) (*AuthResult, error) {
	if err := c.checkRequest("register", req); err != nil {
		return nil, err
	}

	env, err := c.mutate(ctx, callSpec{
		operation:      "register",
		method:         http.MethodPost,
		path:           "/auth/register",
		body:           req,
		successMessage: "Account created successfully! Welcome aboard.",
		errorMessage:   "Registration failed. Please check your information.",
	}, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	return c.establishSession(ctx, "register", env.Data)
}

func (c *Client) establishSession(ctx context.Context, operation string, data json.RawMessage) (*AuthResult, error) {
	var payload authPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &ResultError{Kind: ErrDecode, Operation: operation, Message: "unexpected auth payload shape"}
	}
	if err := c.sessions.SetUser(ctx, payload.User, payload.Tokens.AccessToken, payload.Tokens.RefreshToken); err != nil {
		return nil, &ResultError{Kind: ErrDecode, Operation: operation, Message: err.Error()}
	}
	// A new identity invalidates everything the previous one cached.
	c.cache.Clear()
	return &AuthResult{User: payload.User, Tokens: payload.Tokens}, nil
}

// Logout ends the session. The local session is cleared even when the
// backend call fails: being unable to reach the server must never trap the
// user in a logged-in shell.
func (c *Client) Logout(ctx context.Context, opts ...CallOption) error {
	return c.logout(ctx, "logout", "/auth/logout", "Logged out successfully!", opts)
}

// LogoutAll ends every session of this account on the backend, then clears
// the local one with the same always-clear semantics as Logout.
func (c *Client) LogoutAll(ctx context.Context, opts ...CallOption) error {
	return c.logout(ctx, "logoutAll", "/auth/logout-all", "Logged out from all devices successfully!", opts)
}

func (c *Client) logout(ctx context.Context, operation, path, successMessage string, opts []CallOption) error {
	_, callErr := c.mutate(ctx, callSpec{
		operation:      operation,
		method:         http.MethodPost,
		path:           path,
		successMessage: successMessage,
	}, buildOptions(opts))

	if err := c.sessions.Logout(ctx); err != nil {
		c.logger.Warn("fxclient: local session clear incomplete", "err", err)
	}
	c.cache.Clear()
	return callErr
}

// RefreshSession forces a token refresh outside the 401 path, silently. It
// joins any refresh the pipeline already has in flight rather than racing it
// with a second exchange. On refresh failure the session is cleared and
// ErrSessionExpired returned, exactly as if an automatic refresh had failed.
func (c *Client) RefreshSession(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if err := c.pipeline.ForceRefresh(ctx); err != nil {
		if transport.IsWaitCanceled(err) {
			// The caller stopped waiting; the session was not expired.
			return &ResultError{Kind: ErrNetwork, Operation: "refreshSession", Message: msgUnexpected}
		}
		c.cache.Clear()
		return &ResultError{Kind: ErrSessionExpired, Operation: "refreshSession", Message: msgSessionExpired}
	}
	return nil
}

// Profile fetches the account profile. Cached under [TagUserProfile] until
// UpdateProfile invalidates it.
func (c *Client) Profile(ctx context.Context, opts ...CallOption) (*Profile, error) {
	env, err := c.query(ctx, callSpec{
		operation: "getProfile",
		method:    http.MethodGet,
		path:      "/auth/profile",
		cacheKey:  "profile",
		provides:  []cache.Tag{TagUserProfile},
	}, buildOptions(opts))
	if err != nil {
		return nil, err
	}

	var profile Profile
	if err := decodeData(env, "getProfile", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile applies a partial profile update and invalidates the cached
// profile.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate, opts ...CallOption) (*Profile, error) {
	if err := c.checkRequest("updateProfile", update); err != nil {
		return nil, err
	}

	env, err := c.mutate(ctx, callSpec{
		operation:   "updateProfile",
		method:      http.MethodPut,
		path:        "/auth/profile",
		body:        update,
		invalidates: []cache.Tag{TagUserProfile},
	}, buildOptions(opts))
	if err != nil {
		return nil, err
	}

	var profile Profile
	if err := decodeData(env, "updateProfile", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ChangePassword rotates the account password. Tokens are unaffected; the
// backend keeps the current session valid.
func (c *Client) ChangePassword(ctx context.Context, req ChangePasswordRequest, opts ...CallOption) error {
	if err := c.checkRequest("changePassword", req); err != nil {
		return err
	}

	_, err := c.mutate(ctx, callSpec{
		operation:      "changePassword",
		method:         http.MethodPost,
		path:           "/auth/change-password",
		body:           req,
		successMessage: "Password changed successfully!",
		errorMessage:   "Failed to change password. Please check your current password.",
	}, buildOptions(opts))
	return err
}
