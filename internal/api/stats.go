package api

import (
	"net/http"
	"runtime"
	"sync"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/metrics"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/tracker"
)

// POICounter reports the size and origin of the loaded POI set.
type POICounter interface {
	Count() int
	Origin() string
}

type StatsHandler struct {
	tracker *tracker.Tracker
	metrics *metrics.Recorder
	pois    POICounter

	mu     sync.Mutex
	maxMem uint64
}

// NewStatsHandler creates a StatsHandler. Any argument may be nil.
func NewStatsHandler(t *tracker.Tracker, m *metrics.Recorder, pois POICounter) *StatsHandler {
	return &StatsHandler{tracker: t, metrics: m, pois: pois}
}

type ProviderStatsDTO struct {
	CacheHits   int64  `json:"cache_hits"`
	CacheMisses int64  `json:"cache_misses"`
	APISuccess  int64  `json:"api_success"`
	APIFailures int64  `json:"api_errors"`
	HitRate     int64  `json:"hit_rate"`
	LatencyMS   int64  `json:"last_latency_ms"`
	LastError   string `json:"last_error,omitempty"`
}

type Diagnostics struct {
	MemoryMB    uint64 `json:"memory_mb"`
	MemoryMaxMB uint64 `json:"memory_max_mb"`
	Goroutines  int    `json:"goroutines"`
}

type TrackingStats struct {
	POIs      int    `json:"pois"`
	POIOrigin string `json:"poi_origin"`
}

type StatsResponse struct {
	Diagnostics Diagnostics                 `json:"diagnostics"`
	Tracking    TrackingStats               `json:"tracking"`
	Providers   map[string]ProviderStatsDTO `json:"providers"`
	Counters    map[string]int64            `json:"counters"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Diagnostics: h.gatherDiagnostics(),
		Providers:   make(map[string]ProviderStatsDTO),
		Counters:    h.metrics.Snapshot(),
	}
	if h.pois != nil {
		resp.Tracking = TrackingStats{POIs: h.pois.Count(), POIOrigin: h.pois.Origin()}
	}

	if h.tracker != nil {
		for provider, stats := range h.tracker.Snapshot() {
			totalCache := stats.CacheHits + stats.CacheMisses
			hitRate := int64(0)
			if totalCache > 0 {
				hitRate = (stats.CacheHits * 100) / totalCache
			}
			resp.Providers[provider] = ProviderStatsDTO{
				CacheHits:   stats.CacheHits,
				CacheMisses: stats.CacheMisses,
				APISuccess:  stats.APISuccess,
				APIFailures: stats.APIFailures,
				HitRate:     hitRate,
				LatencyMS:   stats.LastLatency.Milliseconds(),
				LastError:   stats.LastError,
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *StatsHandler) gatherDiagnostics() Diagnostics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	h.mu.Lock()
	defer h.mu.Unlock()
	if ms.Sys > h.maxMem {
		h.maxMem = ms.Sys
	}
	return Diagnostics{
		MemoryMB:    bToMb(ms.Sys),
		MemoryMaxMB: bToMb(h.maxMem),
		Goroutines:  runtime.NumGoroutine(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
