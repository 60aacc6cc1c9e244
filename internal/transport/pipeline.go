package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"github.com/fxtrail/fxclient/internal/envelope"
)

// maxBodyBytes bounds response reads; backend payloads are small JSON.
const maxBodyBytes = 4 << 20

// Request describes one outbound call.
type Request struct {
	Operation string
	Method    string
	Path      string
	Query     url.Values
	Body      any
}

// TokenSource yields the current access credential, or "" when anonymous.
type TokenSource interface {
	Token() string
}

// Refresher exchanges the persisted refresh credential for a new access
// token, applying all session side effects (persistence, credential cell,
// clearing on failure). It is called at most once per refresh cycle
// regardless of how many requests are waiting.
type Refresher interface {
	Refresh(ctx context.Context) (accessToken string, err error)
}

// Metrics receives pipeline counters. All methods must be cheap and
// non-blocking; a nil Metrics disables accounting.
type Metrics interface {
	RequestStarted()
	RequestFailed()
	RefreshAttempted()
	RefreshFailed()
	RetryIssued()
}

// Pipeline is the authenticated HTTP execution path. Safe for concurrent
// use; concurrent 401s share one refresh.
type Pipeline struct {
	base      *url.URL
	http      *http.Client
	tokens    TokenSource
	refresher Refresher
	metrics   Metrics
	logger    *slog.Logger
	userAgent string

	refreshMu sync.Mutex
	inflight  *refreshFuture
}

// Options carries Pipeline construction parameters.
type Options struct {
	BaseURL    *url.URL
	HTTPClient *http.Client
	Tokens     TokenSource
	Refresher  Refresher
	Metrics    Metrics
	Logger     *slog.Logger
	UserAgent  string
}

// NewPipeline wires a pipeline. BaseURL, HTTPClient, and Tokens are
// required; Refresher and Metrics are optional.
func NewPipeline(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		base:      opts.BaseURL,
		http:      opts.HTTPClient,
		tokens:    opts.Tokens,
		refresher: opts.Refresher,
		metrics:   opts.Metrics,
		logger:    logger,
		userAgent: opts.UserAgent,
	}
}

// Do executes req and returns its structured outcome. HTTP-level failures
// are reported through the result, never as a Go error.
func (p *Pipeline) Do(ctx context.Context, req Request) Result {
	if p.metrics != nil {
		p.metrics.RequestStarted()
	}

	result := p.send(ctx, req, p.tokens.Token(), false)
	if result.Status != http.StatusUnauthorized || p.refresher == nil {
		return p.counted(result)
	}

	// Single-shot refresh-and-retry. The refresh is coalesced across
	// concurrent 401s; whatever it yields is this request's last chance.
	token, err := p.awaitRefresh(ctx)
	if err != nil {
		if IsWaitCanceled(err) {
			// This caller ran out of context before the shared refresh
			// resolved. The session's fate is unknown; only the refresher's
			// own verdict may expire it.
			result.Failure = FailureNetwork
		} else {
			result.Failure = FailureSessionExpired
		}
		result.Err = err
		return p.counted(result)
	}

	if p.metrics != nil {
		p.metrics.RetryIssued()
	}
	retried := p.send(ctx, req, token, true)
	retried.Retried = true
	return p.counted(retried)
}

func (p *Pipeline) counted(result Result) Result {
	if !result.OK() && p.metrics != nil {
		p.metrics.RequestFailed()
	}
	return result
}

// send performs a single HTTP exchange and classifies the response. retried
// marks the post-refresh attempt, whose 401 must stay final.
func (p *Pipeline) send(ctx context.Context, req Request, token string, retried bool) Result {
	httpReq, err := p.build(ctx, req, token)
	if err != nil {
		return Result{Failure: FailureNetwork, Err: err}
	}

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return Result{Failure: FailureNetwork, Err: fmt.Errorf("transport: %s %s: %w", req.Method, req.Path, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{Status: resp.StatusCode, Failure: FailureNetwork, Err: fmt.Errorf("transport: read body: %w", err)}
	}

	env, decodeErr := envelope.Decode(body)
	result := Result{Status: resp.StatusCode, Envelope: env, Body: body}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if decodeErr != nil {
			result.Failure = FailureDecode
			result.Err = decodeErr
		}
	case resp.StatusCode == http.StatusUnauthorized:
		result.Failure = FailureUnauthorized
		if retried {
			p.logger.Warn("transport: retry after refresh still unauthorized", "path", req.Path)
		}
	case resp.StatusCode == http.StatusForbidden:
		result.Failure = FailureForbidden
	case resp.StatusCode == http.StatusNotFound:
		result.Failure = FailureNotFound
	case resp.StatusCode == http.StatusUnprocessableEntity:
		result.Failure = FailureValidation
	case resp.StatusCode >= 500:
		result.Failure = FailureServer
	default:
		result.Failure = FailureHTTP
	}
	return result
}

func (p *Pipeline) build(ctx context.Context, req Request, token string) (*http.Request, error) {
	target := *p.base
	target.Path = joinPath(p.base.Path, req.Path)
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("transport: encode body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if p.userAgent != "" {
		httpReq.Header.Set("User-Agent", p.userAgent)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}

func joinPath(base, path string) string {
	switch {
	case base == "" || base == "/":
		return path
	case len(base) > 0 && base[len(base)-1] == '/':
		return base[:len(base)-1] + path
	default:
		return base + path
	}
}

type refreshFuture struct {
	done  chan struct{}
	token string
	err   error
}

// waitCanceled records a waiter whose own context ended before the shared
// refresh resolved.
type waitCanceled struct{ cause error }

func (e *waitCanceled) Error() string { return "transport: await refresh: " + e.cause.Error() }

func (e *waitCanceled) Unwrap() error { return e.cause }

// IsWaitCanceled reports whether err means the caller stopped waiting for
// an in-flight refresh without learning its outcome.
func IsWaitCanceled(err error) bool {
	var canceled *waitCanceled
	return errors.As(err, &canceled)
}

// ForceRefresh runs a token refresh through the same single-flight future
// the 401 path uses, joining any refresh already in progress instead of
// issuing a second exchange against the rotating credential.
func (p *Pipeline) ForceRefresh(ctx context.Context) error {
	if p.refresher == nil {
		return fmt.Errorf("transport: no refresher configured")
	}
	_, err := p.awaitRefresh(ctx)
	return err
}

// awaitRefresh joins or starts the in-flight refresh. The refresh itself
// runs detached from any single caller's context so one canceled request
// cannot poison the outcome every other waiter shares.
func (p *Pipeline) awaitRefresh(ctx context.Context) (string, error) {
	p.refreshMu.Lock()
	future := p.inflight
	if future == nil {
		future = &refreshFuture{done: make(chan struct{})}
		p.inflight = future
		if p.metrics != nil {
			p.metrics.RefreshAttempted()
		}
		go func() {
			future.token, future.err = p.refresher.Refresh(context.WithoutCancel(ctx))
			if future.err != nil && p.metrics != nil {
				p.metrics.RefreshFailed()
			}
			p.refreshMu.Lock()
			p.inflight = nil
			p.refreshMu.Unlock()
			close(future.done)
		}()
	}
	p.refreshMu.Unlock()

	select {
	case <-future.done:
		return future.token, future.err
	case <-ctx.Done():
		return "", &waitCanceled{cause: ctx.Err()}
	}
}
