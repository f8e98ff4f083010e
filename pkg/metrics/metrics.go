// Package metrics holds the narration counters. They are recorded on the global
// otel meter, which stays a no-op unless a provider is installed, and mirrored
// in-process for the stats endpoint.
package metrics

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc"

// Recorder counts gate decisions, playback sessions and telemetry failures.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	gate      metric.Int64Counter
	sessions  metric.Int64Counter
	telemetry metric.Int64Counter

	mu     sync.Mutex
	counts map[string]int64
}

// New creates a Recorder. When disabled the counters use the no-op meter.
func New(enabled bool) *Recorder {
	var meter metric.Meter = noop.Meter{}
	if enabled {
		meter = otel.Meter(meterName)
	}

	r := &Recorder{counts: make(map[string]int64)}
	// Instrument creation only fails on invalid names; fall back to no-op.
	var err error
	if r.gate, err = meter.Int64Counter("narrator.gate.decisions",
		metric.WithDescription("Narration gate outcomes")); err != nil {
		r.gate, _ = noop.Meter{}.Int64Counter("narrator.gate.decisions")
	}
	if r.sessions, err = meter.Int64Counter("narrator.playback.sessions",
		metric.WithDescription("Playback lifecycle events by status")); err != nil {
		r.sessions, _ = noop.Meter{}.Int64Counter("narrator.playback.sessions")
	}
	if r.telemetry, err = meter.Int64Counter("narrator.telemetry.failures",
		metric.WithDescription("Narration log deliveries that failed")); err != nil {
		r.telemetry, _ = noop.Meter{}.Int64Counter("narrator.telemetry.failures")
	}
	return r
}

// GateDecision counts one gate outcome: play, deny, error_open or error_closed.
func (r *Recorder) GateDecision(ctx context.Context, outcome string) {
	if r == nil {
		return
	}
	r.gate.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	r.bump("gate." + outcome)
}

// Session counts one lifecycle event.
func (r *Recorder) Session(ctx context.Context, status, trigger string) {
	if r == nil {
		return
	}
	r.sessions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("trigger", trigger),
	))
	r.bump("session." + strings.ToLower(status))
}

// TelemetryFailure counts one failed delivery to sink.
func (r *Recorder) TelemetryFailure(ctx context.Context, sink string) {
	if r == nil {
		return
	}
	r.telemetry.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
	r.bump("telemetry.failed." + sink)
}

func (r *Recorder) bump(key string) {
	r.mu.Lock()
	r.counts[key]++
	r.mu.Unlock()
}

// Snapshot returns a copy of the in-process counters.
func (r *Recorder) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	if r == nil {
		return out
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

// Keys returns the recorded counter names, sorted.
func (r *Recorder) Keys() []string {
	snap := r.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
