package metrics

import "sync/atomic"

// Metrics captures shared operational stats for the fetch and summary path.
type Metrics struct {
	fetches       int64
	fetchFailures int64
	summaryBuilds int64
	cacheHits     int64
	cacheMisses   int64
	writeOps      int64
	writeFailures int64
}

// Snapshot provides a consistent view of the current metrics.
type Snapshot struct {
	Fetches       int64 `json:"fetches"`
	FetchFailures int64 `json:"fetchFailures"`
	SummaryBuilds int64 `json:"summaryBuilds"`
	CacheHits     int64 `json:"cacheHits"`
	CacheMisses   int64 `json:"cacheMisses"`
	WriteOps      int64 `json:"writeOps"`
	WriteFailures int64 `json:"writeFailures"`
}

// New creates a zeroed Metrics instance.
func New() *Metrics {
	return &Metrics{}
}

// RecordFetch increments fetch counters based on outcome.
func (m *Metrics) RecordFetch(err error) {
	atomic.AddInt64(&m.fetches, 1)
	if err != nil {
		atomic.AddInt64(&m.fetchFailures, 1)
	}
}

func (m *Metrics) RecordSummaryBuild() { atomic.AddInt64(&m.summaryBuilds, 1) }
func (m *Metrics) RecordCacheHit()     { atomic.AddInt64(&m.cacheHits, 1) }
func (m *Metrics) RecordCacheMiss()    { atomic.AddInt64(&m.cacheMisses, 1) }

// RecordWrite increments write counters based on outcome.
func (m *Metrics) RecordWrite(err error) {
	atomic.AddInt64(&m.writeOps, 1)
	if err != nil {
		atomic.AddInt64(&m.writeFailures, 1)
	}
}

// Snapshot returns a read-only view of metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Fetches:       atomic.LoadInt64(&m.fetches),
		FetchFailures: atomic.LoadInt64(&m.fetchFailures),
		SummaryBuilds: atomic.LoadInt64(&m.summaryBuilds),
		CacheHits:     atomic.LoadInt64(&m.cacheHits),
		CacheMisses:   atomic.LoadInt64(&m.cacheMisses),
		WriteOps:      atomic.LoadInt64(&m.writeOps),
		WriteFailures: atomic.LoadInt64(&m.writeFailures),
	}
}
