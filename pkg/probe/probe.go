// Package probe runs the start-up checks of the narrator and the backend.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTimeout bounds a probe that sets no Timeout of its own.
const DefaultTimeout = 5 * time.Second

// CheckFunc returns nil when the check passes.
type CheckFunc func(ctx context.Context) error

// Probe is a single start-up check.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool // a failure aborts start-up
	Timeout  time.Duration
}

// Result holds the outcome of a single probe.
type Result struct {
	Probe    Probe         `json:"-"`
	Name     string        `json:"name"`
	Critical bool          `json:"critical"`
	Error    error         `json:"-"`
	Message  string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Passed reports whether the check succeeded.
func (r *Result) Passed() bool { return r.Error == nil }

// Run executes probes in order, each under its own timeout.
func Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, len(probes))

	for i, p := range probes {
		timeout := p.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		start := time.Now()
		pctx, cancel := context.WithTimeout(ctx, timeout)
		err := p.Check(pctx)
		cancel()

		results[i] = Result{
			Probe:    p,
			Name:     p.Name,
			Critical: p.Critical,
			Error:    err,
			Duration: time.Since(start),
		}
		if err != nil {
			results[i].Message = err.Error()
		}
	}

	return results
}

// AnalyzeResults logs every result and joins the errors of failed critical probes.
func AnalyzeResults(results []Result) error {
	var criticalErrors []error

	slog.Info("Startup checks")

	for i := range results {
		r := &results[i]
		status := "PASS"
		if !r.Passed() {
			status = "FAIL"
		}

		msg := fmt.Sprintf("[%s] %-12s (%v)", status, r.Probe.Name, r.Duration.Round(time.Millisecond))

		switch {
		case r.Passed():
			slog.Info(msg)
		case r.Probe.Critical:
			slog.Error(msg, "error", r.Error)
			criticalErrors = append(criticalErrors, fmt.Errorf("%s: %w", r.Probe.Name, r.Error))
		default:
			slog.Warn(msg, "error", r.Error)
		}
	}

	return errors.Join(criticalErrors...)
}
