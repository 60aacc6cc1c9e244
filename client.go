package fxclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"github.com/fxtrail/fxclient/cache"
	"github.com/fxtrail/fxclient/internal/envelope"
	"github.com/fxtrail/fxclient/internal/transport"
	"github.com/fxtrail/fxclient/jwt"
	"github.com/fxtrail/fxclient/notify"
	"github.com/fxtrail/fxclient/session"
)

// Client is the top-level handle. Construct it through [Builder.Build];
// methods are safe to call from multiple goroutines afterwards.
type Client struct {
	config     Config
	logger     *slog.Logger
	sessions   *session.Manager
	cache      *cache.Store
	dispatcher *notify.Dispatcher
	pipeline   *transport.Pipeline
	metrics    *metrics
	validate   *validator.Validate
	closed     atomic.Bool
}

// Close stops the notification dispatcher, draining anything still queued.
// In-flight HTTP calls are left to finish; the client rejects new ones.
func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.closed.CompareAndSwap(false, true) {
		c.dispatcher.Close()
	}
}

// IsAuthenticated reports whether a session is currently established.
func (c *Client) IsAuthenticated() bool {
	return c.sessions.IsAuthenticated()
}

// CurrentUser returns the session identity, or nil when anonymous.
func (c *Client) CurrentUser() *session.User {
	return c.sessions.CurrentUser()
}

// Session returns a value snapshot of the full session state.
func (c *Client) Session() session.Session {
	return c.sessions.Snapshot()
}

// SessionClaims decodes the current access token's registered claims without
// verification, for UX hints only. Returns [ErrNotAuthenticated] when
// anonymous.
func (c *Client) SessionClaims() (*jwt.Claims, error) {
	token := c.sessions.AccessToken()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	return jwt.Inspect(token)
}

/*
====================================
PER-CALL OPTIONS
====================================
*/

type callOptions struct {
	successMessage string
	errorMessage   string
	skipSuccess    bool
	skipError      bool
	skipCache      bool
}

// CallOption adjusts notification and caching behavior for one call.
type CallOption func(*callOptions)

// WithSuccessMessage overrides the success notification text.
func WithSuccessMessage(message string) CallOption {
	return func(o *callOptions) { o.successMessage = message }
}

// WithErrorMessage overrides the failure notification text.
func WithErrorMessage(message string) CallOption {
	return func(o *callOptions) { o.errorMessage = message }
}

// WithoutSuccessNotification suppresses the success notification.
func WithoutSuccessNotification() CallOption {
	return func(o *callOptions) { o.skipSuccess = true }
}

// WithoutErrorNotification suppresses the failure notification.
func WithoutErrorNotification() CallOption {
	return func(o *callOptions) { o.skipError = true }
}

// Silent suppresses both notifications for this call.
func Silent() CallOption {
	return func(o *callOptions) {
		o.skipSuccess = true
		o.skipError = true
	}
}

// FreshRead bypasses the cache for this query and refetches.
func FreshRead() CallOption {
	return func(o *callOptions) { o.skipCache = true }
}

func buildOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

/*
====================================
ORCHESTRATION
====================================
*/

// callSpec is the uniform shape every typed operation reduces to: a named
// endpoint plus its cache tags and default notification texts.
type callSpec struct {
	operation string
	method    string
	path      string
	query     url.Values
	body      any

	// cacheKey enables read caching; provides files the entry under its
	// invalidation tags. Mutations set invalidates instead.
	cacheKey    string
	provides    []cache.Tag
	invalidates []cache.Tag

	// silent drops both default notifications, matching endpoints the
	// dashboard polls in the background.
	silent         bool
	successMessage string
	errorMessage   string
}

const (
	msgGenericSuccess = "Operation completed successfully"
	msgGenericError   = "An error occurred. Please try again."
	msgForbidden      = "You do not have permission to perform this action"
	msgUnexpected     = "An unexpected error occurred. Please try again later."
	msgSessionExpired = "Your session has expired. Please log in again."
)

// query executes a cached read. On a fresh cache hit no HTTP call is made;
// stale and missing entries refetch and re-file the response.
func (c *Client) query(ctx context.Context, spec callSpec, opts callOptions) (*envelope.Envelope, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	useCache := !c.config.Cache.Disabled && spec.cacheKey != "" && !opts.skipCache
	if useCache {
		if body, fresh := c.cache.Lookup(spec.cacheKey); fresh {
			if env, err := envelope.Decode(body); err == nil {
				c.metrics.cacheHit()
				return env, nil
			}
			c.cache.Remove(spec.cacheKey)
		}
		c.metrics.cacheMiss()
	}

	result := c.pipeline.Do(ctx, transport.Request{
		Operation: spec.operation,
		Method:    spec.method,
		Path:      spec.path,
		Query:     spec.query,
		Body:      spec.body,
	})
	if !result.OK() {
		return nil, c.fail(ctx, spec, opts, result)
	}

	if !c.config.Cache.Disabled && spec.cacheKey != "" {
		c.cache.Set(spec.cacheKey, result.Body, spec.provides...)
	}
	c.notifySuccess(ctx, spec, opts, result)
	return result.Envelope, nil
}

// mutate executes a write and, on success, marks every cached read whose
// tags intersect the write's invalidation set as stale.
func (c *Client) mutate(ctx context.Context, spec callSpec, opts callOptions) (*envelope.Envelope, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	result := c.pipeline.Do(ctx, transport.Request{
		Operation: spec.operation,
		Method:    spec.method,
		Path:      spec.path,
		Query:     spec.query,
		Body:      spec.body,
	})
	if !result.OK() {
		return nil, c.fail(ctx, spec, opts, result)
	}

	c.metrics.invalidated(c.cache.Invalidate(spec.invalidates...))
	c.notifySuccess(ctx, spec, opts, result)
	return result.Envelope, nil
}

// fail maps a pipeline failure to the error taxonomy and emits at most one
// failure notification.
func (c *Client) fail(ctx context.Context, spec callSpec, opts callOptions, result transport.Result) error {
	kind, message := classify(result)

	if errors.Is(kind, ErrSessionExpired) {
		// The refresher already cleared the session; drop the cache too so
		// nothing user-scoped survives into the next login.
		c.cache.Clear()
	}

	resultErr := &ResultError{
		Kind:      kind,
		Status:    result.Status,
		Message:   message,
		Operation: spec.operation,
	}

	if !c.shouldNotifyError(spec, opts, kind) {
		return resultErr
	}

	text := opts.errorMessage
	if text == "" {
		text = spec.errorMessage
	}
	if text == "" {
		text = message
	}
	if text == "" {
		text = msgGenericError
	}
	c.dispatcher.Publish(ctx, notify.New(notify.LevelError, spec.operation, text))
	return resultErr
}

// classify picks the sentinel and the default surfaced message for a
// failure result.
func classify(result transport.Result) (error, string) {
	switch result.Failure {
	case transport.FailureNetwork:
		return ErrNetwork, msgUnexpected
	case transport.FailureSessionExpired:
		return ErrSessionExpired, msgSessionExpired
	case transport.FailureUnauthorized:
		return ErrUnauthorized, result.Message()
	case transport.FailureForbidden:
		return ErrForbidden, msgForbidden
	case transport.FailureNotFound:
		return ErrNotFound, result.Message()
	case transport.FailureValidation:
		if result.Envelope != nil {
			return ErrValidation, result.Envelope.FirstError()
		}
		return ErrValidation, msgGenericError
	case transport.FailureServer:
		return ErrServer, msgUnexpected
	case transport.FailureDecode:
		return ErrDecode, msgUnexpected
	default:
		return ErrRequestFailed, result.Message()
	}
}

// shouldNotifyError applies the suppression ladder: per-call option, then
// the operation default, then the client-wide gate. Hard session expiry is
// still suppressible; only its session-clearing side effect is not. 404s
// stay silent; background probes routinely expect them.
func (c *Client) shouldNotifyError(spec callSpec, opts callOptions, kind error) bool {
	if opts.skipError || spec.silent || !c.config.Notify.ShowErrors {
		return false
	}
	return !errors.Is(kind, ErrNotFound)
}

func (c *Client) notifySuccess(ctx context.Context, spec callSpec, opts callOptions, result transport.Result) {
	if opts.skipSuccess || spec.silent || !c.config.Notify.ShowSuccess {
		return
	}

	text := opts.successMessage
	if text == "" {
		text = spec.successMessage
	}
	if text == "" {
		text = result.Message()
	}
	if text == "" {
		text = msgGenericSuccess
	}
	c.dispatcher.Publish(ctx, notify.New(notify.LevelSuccess, spec.operation, text))
}

// decodeData unmarshals the envelope payload into out, tolerating a nil out
// for operations whose payload the caller discards.
func decodeData(env *envelope.Envelope, operation string, out any) error {
	if out == nil || env == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &ResultError{
			Kind:      ErrDecode,
			Operation: operation,
			Message:   fmt.Sprintf("unexpected payload shape: %v", err),
		}
	}
	return nil
}

// checkRequest runs client-side payload validation before any network I/O.
func (c *Client) checkRequest(operation string, payload any) error {
	if err := c.validate.Struct(payload); err != nil {
		return &ResultError{
			Kind:      ErrInvalidRequest,
			Operation: operation,
			Message:   err.Error(),
		}
	}
	return nil
}

// page converts the envelope pagination block to the public type.
func page(env *envelope.Envelope) Page {
	if env == nil || env.Pagination == nil {
		return Page{}
	}
	p := env.Pagination
	return Page{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      p.Total,
		TotalPages: p.TotalPages,
		HasNext:    p.HasNext,
		HasPrev:    p.HasPrev,
	}
}
