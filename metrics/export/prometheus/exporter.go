// Package prometheus renders fxclient metrics in Prometheus text exposition
// format. It deliberately avoids a client_golang dependency: the counter set
// is flat and tiny, so the format is written directly.
package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	fxclient "github.com/fxtrail/fxclient"
)

type metricsSource interface {
	MetricsSnapshot() fxclient.MetricsSnapshot
}

// Exporter renders the counters of one client.
type Exporter struct {
	source metricsSource
}

// New creates an exporter reading from client.
func New(client *fxclient.Client) *Exporter {
	return &Exporter{source: client}
}

// NewFromSource creates an exporter from a custom snapshot source.
func NewFromSource(source metricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler returns an http.Handler serving the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(e.Render()))
	})
}

// Render writes the current counters in Prometheus text format.
func (e *Exporter) Render() string {
	if e == nil || e.source == nil {
		return ""
	}
	s := e.source.MetricsSnapshot()

	var b strings.Builder
	b.Grow(2048)
	writeCounter(&b, "fxclient_requests_started_total", "Outbound API calls started.", s.RequestsStarted)
	writeCounter(&b, "fxclient_requests_failed_total", "Outbound API calls that ended in a failure result.", s.RequestsFailed)
	writeCounter(&b, "fxclient_refreshes_attempted_total", "Token refresh cycles started.", s.RefreshesAttempted)
	writeCounter(&b, "fxclient_refreshes_failed_total", "Token refresh cycles that cleared the session.", s.RefreshesFailed)
	writeCounter(&b, "fxclient_retries_issued_total", "Requests resent after a successful refresh.", s.RetriesIssued)
	writeCounter(&b, "fxclient_cache_hits_total", "Queries served from a fresh cache entry.", s.CacheHits)
	writeCounter(&b, "fxclient_cache_misses_total", "Queries that went to the backend.", s.CacheMisses)
	writeCounter(&b, "fxclient_cache_invalidations_total", "Cache entries marked stale by mutations.", s.CacheInvalidations)
	writeCounter(&b, "fxclient_notifications_dropped_total", "Notifications dropped under dispatcher backpressure.", s.NotificationsDropped)
	return b.String()
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(help)
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteString(" counter\n")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}
