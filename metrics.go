package fxclient

import "sync/atomic"

// MetricsSnapshot is a point-in-time copy of the client's counters.
type MetricsSnapshot struct {
	RequestsStarted      uint64
	RequestsFailed       uint64
	RefreshesAttempted   uint64
	RefreshesFailed      uint64
	RetriesIssued        uint64
	CacheHits            uint64
	CacheMisses          uint64
	CacheInvalidations   uint64
	NotificationsDropped uint64
}

// metrics is the lock-free counter set threaded through the pipeline and
// the orchestration layer. It satisfies transport.Metrics.
type metrics struct {
	requestsStarted    atomic.Uint64
	requestsFailed     atomic.Uint64
	refreshesAttempted atomic.Uint64
	refreshesFailed    atomic.Uint64
	retriesIssued      atomic.Uint64
	cacheHits          atomic.Uint64
	cacheMisses        atomic.Uint64
	cacheInvalidations atomic.Uint64
}

func (m *metrics) RequestStarted() { m.requestsStarted.Add(1) }

func (m *metrics) RequestFailed() { m.requestsFailed.Add(1) }

func (m *metrics) RefreshAttempted() { m.refreshesAttempted.Add(1) }

func (m *metrics) RefreshFailed() { m.refreshesFailed.Add(1) }

func (m *metrics) RetryIssued() { m.retriesIssued.Add(1) }

func (m *metrics) cacheHit() { m.cacheHits.Add(1) }

func (m *metrics) cacheMiss() { m.cacheMisses.Add(1) }

func (m *metrics) invalidated(n int) {
	if n > 0 {
		m.cacheInvalidations.Add(uint64(n))
	}
}

// MetricsSnapshot returns the current counter values plus the notification
// dispatcher's drop count.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{}
	}
	snapshot := MetricsSnapshot{
		RequestsStarted:    c.metrics.requestsStarted.Load(),
		RequestsFailed:     c.metrics.requestsFailed.Load(),
		RefreshesAttempted: c.metrics.refreshesAttempted.Load(),
		RefreshesFailed:    c.metrics.refreshesFailed.Load(),
		RetriesIssued:      c.metrics.retriesIssued.Load(),
		CacheHits:          c.metrics.cacheHits.Load(),
		CacheMisses:        c.metrics.cacheMisses.Load(),
		CacheInvalidations: c.metrics.cacheInvalidations.Load(),
	}
	if c.dispatcher != nil {
		snapshot.NotificationsDropped = c.dispatcher.Dropped()
	}
	return snapshot
}
