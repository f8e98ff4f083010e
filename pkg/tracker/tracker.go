package tracker

import (
	"sync"
	"sync/atomic"
	"time"
)

// Tracker tracks request statistics per provider (backend host or logical endpoint).
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*providerStats
}

type providerStats struct {
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	success     atomic.Int64
	failures    atomic.Int64
	lastLatency atomic.Int64 // nanoseconds

	mu        sync.Mutex
	lastError string
	lastOK    time.Time
	lastFail  time.Time
}

// ProviderStats is a point-in-time copy of one provider's counters.
type ProviderStats struct {
	CacheHits   int64         `json:"cache_hits"`
	CacheMisses int64         `json:"cache_misses"`
	APISuccess  int64         `json:"api_success"`
	APIFailures int64         `json:"api_errors"`
	LastLatency time.Duration `json:"last_latency_ns"`
	LastError   string        `json:"last_error,omitempty"`
	LastSuccess time.Time     `json:"last_success"`
	LastFailure time.Time     `json:"last_failure"`
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*providerStats),
	}
}

func (t *Tracker) get(provider string) *providerStats {
	t.mu.RLock()
	s, ok := t.stats[provider]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.stats[provider]; ok {
		return s
	}
	s = &providerStats{}
	t.stats[provider] = s
	return s
}

// TrackCacheHit increments the cache hit counter.
func (t *Tracker) TrackCacheHit(provider string) {
	t.get(provider).cacheHits.Add(1)
}

func (t *Tracker) TrackCacheMiss(provider string) {
	t.get(provider).cacheMisses.Add(1)
}

// TrackAPISuccess records a completed request and its latency.
func (t *Tracker) TrackAPISuccess(provider string, latency time.Duration) {
	s := t.get(provider)
	s.success.Add(1)
	s.lastLatency.Store(int64(latency))
	s.mu.Lock()
	s.lastOK = time.Now()
	s.mu.Unlock()
}

// TrackAPIFailure records a failed request with its cause.
func (t *Tracker) TrackAPIFailure(provider string, err error) {
	s := t.get(provider)
	s.failures.Add(1)
	s.mu.Lock()
	s.lastFail = time.Now()
	if err != nil {
		s.lastError = err.Error()
	}
	s.mu.Unlock()
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]ProviderStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]ProviderStats, len(t.stats))
	for k, v := range t.stats {
		v.mu.Lock()
		result[k] = ProviderStats{
			CacheHits:   v.cacheHits.Load(),
			CacheMisses: v.cacheMisses.Load(),
			APISuccess:  v.success.Load(),
			APIFailures: v.failures.Load(),
			LastLatency: time.Duration(v.lastLatency.Load()),
			LastError:   v.lastError,
			LastSuccess: v.lastOK,
			LastFailure: v.lastFail,
		}
		v.mu.Unlock()
	}
	return result
}
