package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type staticTokens struct {
	mu    sync.Mutex
	token string
}

func (s *staticTokens) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *staticTokens) set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

type fakeRefresher struct {
	calls atomic.Int64
	token string
	err   error
	// gate, when set, holds Refresh open until the test releases it.
	gate chan struct{}
	// applied mirrors the real refresher's side effect of pushing the new
	// token into the credential cell.
	applied *staticTokens
}

func (r *fakeRefresher) Refresh(context.Context) (string, error) {
	r.calls.Add(1)
	if r.gate != nil {
		<-r.gate
	}
	if r.err != nil {
		return "", r.err
	}
	if r.applied != nil {
		r.applied.set(r.token)
	}
	return r.token, nil
}

func newTestPipeline(t *testing.T, serverURL string, tokens TokenSource, refresher Refresher) *Pipeline {
	t.Helper()
	base, err := url.Parse(serverURL)
	if err != nil {
		t.Fatalf("parse server URL: %v", err)
	}
	return NewPipeline(Options{
		BaseURL:    base,
		HTTPClient: &http.Client{},
		Tokens:     tokens,
		Refresher:  refresher,
	})
}

func TestDoSuccessCarriesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer A1" {
			t.Errorf("Authorization = %q, want Bearer A1", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Errorf("missing X-Request-ID header")
		}
		fmt.Fprint(w, `{"success":true,"message":"ok","data":{"value":42}}`)
	}))
	defer server.Close()

	p := newTestPipeline(t, server.URL, &staticTokens{token: "A1"}, nil)
	result := p.Do(context.Background(), Request{Operation: "probe", Method: http.MethodGet, Path: "/thing"})

	if !result.OK() {
		t.Fatalf("unexpected failure %v: %v", result.Failure, result.Err)
	}
	if result.Message() != "ok" {
		t.Fatalf("message = %q, want ok", result.Message())
	}
	if result.Retried {
		t.Fatalf("success path must not be marked retried")
	}
}

func TestDoRefreshesOnceAndRetriesOnce(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") == "Bearer A2" {
			fmt.Fprint(w, `{"success":true,"message":"ok"}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"success":false,"message":"token expired"}`)
	}))
	defer server.Close()

	tokens := &staticTokens{token: "A1"}
	refresher := &fakeRefresher{token: "A2", applied: tokens}

	p := newTestPipeline(t, server.URL, tokens, refresher)
	result := p.Do(context.Background(), Request{Operation: "probe", Method: http.MethodGet, Path: "/thing"})

	if !result.OK() {
		t.Fatalf("unexpected failure %v: %v", result.Failure, result.Err)
	}
	if !result.Retried {
		t.Fatalf("result not marked retried")
	}
	if got := refresher.calls.Load(); got != 1 {
		t.Fatalf("refresh called %d times, want 1", got)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("server hit %d times, want 2", got)
	}
}

func TestDoRetryUnauthorizedIsFinal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"success":false,"message":"nope"}`)
	}))
	defer server.Close()

	refresher := &fakeRefresher{token: "A2"}
	p := newTestPipeline(t, server.URL, &staticTokens{token: "A1"}, refresher)
	result := p.Do(context.Background(), Request{Operation: "probe", Method: http.MethodGet, Path: "/thing"})

	if result.Failure != FailureUnauthorized {
		t.Fatalf("failure = %v, want FailureUnauthorized", result.Failure)
	}
	if !result.Retried {
		t.Fatalf("result not marked retried")
	}
	// The 401 on the retry must not start a second refresh cycle.
	if got := refresher.calls.Load(); got != 1 {
		t.Fatalf("refresh called %d times, want 1", got)
	}
}

func TestDoRefreshFailureIsSessionExpired(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"success":false}`)
	}))
	defer server.Close()

	wantErr := errors.New("refresh credential rejected")
	p := newTestPipeline(t, server.URL, &staticTokens{token: "A1"}, &fakeRefresher{err: wantErr})
	result := p.Do(context.Background(), Request{Operation: "probe", Method: http.MethodGet, Path: "/thing"})

	if result.Failure != FailureSessionExpired {
		t.Fatalf("failure = %v, want FailureSessionExpired", result.Failure)
	}
	if !errors.Is(result.Err, wantErr) {
		t.Fatalf("err = %v, want %v", result.Err, wantErr)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("server hit %d times after failed refresh, want 1", got)
	}
}

func TestDoWithoutRefresherLeaves401Final(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"success":false}`)
	}))
	defer server.Close()

	p := newTestPipeline(t, server.URL, &staticTokens{}, nil)
	result := p.Do(context.Background(), Request{Operation: "probe", Method: http.MethodGet, Path: "/thing"})

	if result.Failure != FailureUnauthorized {
		t.Fatalf("failure = %v, want FailureUnauthorized", result.Failure)
	}
	if result.Retried {
		t.Fatalf("no refresher, nothing to retry")
	}
}

func TestConcurrent401sShareOneRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer A2" {
			fmt.Fprint(w, `{"success":true}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"success":false}`)
	}))
	defer server.Close()

	tokens := &staticTokens{token: "A1"}
	refresher := &fakeRefresher{token: "A2", applied: tokens}
	p := newTestPipeline(t, server.URL, tokens, refresher)

	const n = 12
	var wg sync.WaitGroup
	wg.Add(n)
	results := make(chan Result, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			results <- p.Do(context.Background(), Request{Operation: "probe", Method: http.MethodGet, Path: "/thing"})
		}()
	}
	wg.Wait()
	close(results)

	for result := range results {
		if !result.OK() {
			t.Fatalf("unexpected failure %v: %v", result.Failure, result.Err)
		}
	}
	// Coalescing cannot guarantee exactly one refresh across goroutines that
	// start after the first cycle completes, but simultaneous 401s must not
	// fan out into one refresh each.
	if got := refresher.calls.Load(); got < 1 || got >= n {
		t.Fatalf("refresh called %d times for %d concurrent 401s", got, n)
	}
}

func TestCanceledWaiterDoesNotExpireSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer A2" {
			fmt.Fprint(w, `{"success":true}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"success":false}`)
	}))
	defer server.Close()

	tokens := &staticTokens{token: "A1"}
	gate := make(chan struct{})
	refresher := &fakeRefresher{token: "A2", applied: tokens, gate: gate}
	p := newTestPipeline(t, server.URL, tokens, refresher)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for refresher.calls.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	result := p.Do(ctx, Request{Operation: "probe", Method: http.MethodGet, Path: "/thing"})
	if result.Failure != FailureNetwork {
		t.Fatalf("failure = %v, want FailureNetwork", result.Failure)
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled in chain", result.Err)
	}
	if !IsWaitCanceled(result.Err) {
		t.Fatalf("err = %v, not recognized as a canceled wait", result.Err)
	}

	// The shared refresh was never poisoned by the canceled waiter; once it
	// lands, the next call on the same pipeline succeeds.
	close(gate)
	deadline := time.Now().Add(2 * time.Second)
	for tokens.Token() != "A2" {
		if time.Now().After(deadline) {
			t.Fatalf("refresh never applied the new token")
		}
		time.Sleep(time.Millisecond)
	}
	later := p.Do(context.Background(), Request{Operation: "probe", Method: http.MethodGet, Path: "/thing"})
	if !later.OK() {
		t.Fatalf("call after canceled wait failed %v: %v", later.Failure, later.Err)
	}
}

func TestForceRefreshJoinsInflightRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer A2" {
			fmt.Fprint(w, `{"success":true}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"success":false}`)
	}))
	defer server.Close()

	tokens := &staticTokens{token: "A1"}
	gate := make(chan struct{})
	refresher := &fakeRefresher{token: "A2", applied: tokens, gate: gate}
	p := newTestPipeline(t, server.URL, tokens, refresher)

	results := make(chan Result, 1)
	go func() {
		results <- p.Do(context.Background(), Request{Operation: "probe", Method: http.MethodGet, Path: "/thing"})
	}()
	for refresher.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	// The future stays in flight while the gate is held, so the manual
	// refresh must park on it instead of issuing a second exchange.
	forceErr := make(chan error, 1)
	go func() {
		forceErr <- p.ForceRefresh(context.Background())
	}()
	time.Sleep(20 * time.Millisecond)
	close(gate)

	if err := <-forceErr; err != nil {
		t.Fatalf("ForceRefresh: %v", err)
	}
	if result := <-results; !result.OK() {
		t.Fatalf("401 path failed %v: %v", result.Failure, result.Err)
	}
	if got := refresher.calls.Load(); got != 1 {
		t.Fatalf("refresh called %d times, want the shared single flight", got)
	}
}

func TestForceRefreshWithoutRefresherFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true}`)
	}))
	defer server.Close()

	p := newTestPipeline(t, server.URL, &staticTokens{token: "A1"}, nil)
	if err := p.ForceRefresh(context.Background()); err == nil {
		t.Fatalf("expected error without a refresher")
	}
}

func TestDoClassifiesStatuses(t *testing.T) {
	cases := []struct {
		status int
		want   FailureKind
	}{
		{http.StatusForbidden, FailureForbidden},
		{http.StatusNotFound, FailureNotFound},
		{http.StatusUnprocessableEntity, FailureValidation},
		{http.StatusInternalServerError, FailureServer},
		{http.StatusBadGateway, FailureServer},
		{http.StatusConflict, FailureHTTP},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			fmt.Fprint(w, `{"success":false,"message":"denied"}`)
		}))

		p := newTestPipeline(t, server.URL, &staticTokens{token: "A1"}, &fakeRefresher{token: "A2"})
		result := p.Do(context.Background(), Request{Operation: "probe", Method: http.MethodGet, Path: "/thing"})
		server.Close()

		if result.Failure != tc.want {
			t.Fatalf("status %d: failure = %v, want %v", tc.status, result.Failure, tc.want)
		}
		if result.Status != tc.status {
			t.Fatalf("status %d echoed as %d", tc.status, result.Status)
		}
	}
}

func TestDoNetworkErrorHasNoStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	p := newTestPipeline(t, server.URL, &staticTokens{}, nil)
	result := p.Do(context.Background(), Request{Operation: "probe", Method: http.MethodGet, Path: "/thing"})

	if result.Failure != FailureNetwork {
		t.Fatalf("failure = %v, want FailureNetwork", result.Failure)
	}
	if result.Status != 0 {
		t.Fatalf("status = %d, want 0", result.Status)
	}
	if result.Err == nil {
		t.Fatalf("network failure must carry an error")
	}
}

func TestDoUndecodableSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>gateway error page</html>`)
	}))
	defer server.Close()

	p := newTestPipeline(t, server.URL, &staticTokens{token: "A1"}, nil)
	result := p.Do(context.Background(), Request{Operation: "probe", Method: http.MethodGet, Path: "/thing"})

	if result.Failure != FailureDecode {
		t.Fatalf("failure = %v, want FailureDecode", result.Failure)
	}
}

func TestJoinPath(t *testing.T) {
	cases := []struct {
		base, path, want string
	}{
		{"", "/health", "/health"},
		{"/", "/health", "/health"},
		{"/api/v1", "/health", "/api/v1/health"},
		{"/api/v1/", "/health", "/api/v1/health"},
	}
	for _, tc := range cases {
		if got := joinPath(tc.base, tc.path); got != tc.want {
			t.Fatalf("joinPath(%q, %q) = %q, want %q", tc.base, tc.path, got, tc.want)
		}
	}
}
