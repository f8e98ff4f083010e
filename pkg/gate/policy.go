package gate

import (
	"context"
	"log/slog"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/config"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/metrics"
)

// Policy is the single place gate failures are turned into a play decision.
type Policy struct {
	gate    Gate
	failure func(context.Context) string
	metrics *metrics.Recorder
}

// NewPolicy wraps g. failure returns config.FailClosed or config.FailOpen.
func NewPolicy(g Gate, failure func(context.Context) string, m *metrics.Recorder) *Policy {
	if failure == nil {
		failure = func(context.Context) string { return config.FailClosed }
	}
	return &Policy{gate: g, failure: failure, metrics: m}
}

// Allow consults the gate and reports whether automatic playback may start.
// Gate errors never propagate: they are logged and resolved by the failure policy.
func (p *Policy) Allow(ctx context.Context, req Request) bool {
	d, err := p.gate.Check(ctx, req)
	if err != nil {
		open := p.failure(ctx) == config.FailOpen
		slog.Warn("Gate: check failed", "audio_id", req.AudioID, "error", err, "fail_open", open)
		if open {
			p.metrics.GateDecision(ctx, "error_open")
		} else {
			p.metrics.GateDecision(ctx, "error_closed")
		}
		return open
	}

	if !d.ShouldPlay {
		slog.Info("Gate: playback denied", "audio_id", req.AudioID, "reason", d.Reason)
		p.metrics.GateDecision(ctx, "deny")
		return false
	}
	slog.Debug("Gate: playback approved", "audio_id", req.AudioID)
	p.metrics.GateDecision(ctx, "play")
	return true
}
