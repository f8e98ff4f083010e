// Package telemetry delivers playback lifecycle records to the narration log.
// Delivery is best effort: no retry queue, failures are logged and counted.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/logging"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/metrics"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/model"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/request"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/store"
)

// Entry is the log-narration payload.
type Entry struct {
	DeviceID        string               `json:"deviceId"`
	AudioID         int64                `json:"ttsAudioId"`
	PlayedAt        int64                `json:"playedAt"` // epoch millis
	DurationSeconds *int                 `json:"durationSeconds,omitempty"`
	Status          model.PlaybackStatus `json:"status"`
}

// NewEntry builds an entry for a session that started at startedAt.
func NewEntry(deviceID string, audioID int64, startedAt time.Time, duration *int, status model.PlaybackStatus) Entry {
	return Entry{
		DeviceID:        deviceID,
		AudioID:         audioID,
		PlayedAt:        startedAt.UnixMilli(),
		DurationSeconds: duration,
		Status:          status,
	}
}

// Log converts the entry into a stored narration log row.
func (e *Entry) Log() model.NarrationLog {
	return model.NarrationLog{
		DeviceID:        e.DeviceID,
		AudioID:         e.AudioID,
		PlayedAt:        time.UnixMilli(e.PlayedAt),
		DurationSeconds: e.DurationSeconds,
		Status:          e.Status,
	}
}

// Sink receives entries.
type Sink interface {
	Name() string
	Send(ctx context.Context, e Entry) error
}

// HTTPSink posts entries to the backend.
type HTTPSink struct {
	client *request.Client
	url    string
}

// NewHTTPSink returns a sink posting to url.
func NewHTTPSink(c *request.Client, url string) *HTTPSink {
	return &HTTPSink{client: c, url: url}
}

func (s *HTTPSink) Name() string { return "http" }

// Send implements Sink.
func (s *HTTPSink) Send(ctx context.Context, e Entry) error {
	if _, err := s.client.PostJSON(ctx, s.url, e); err != nil {
		return fmt.Errorf("log narration: %w", err)
	}
	return nil
}

// StoreSink writes entries to the local narration log.
type StoreSink struct {
	store store.NarrationLogStore
}

// NewStoreSink returns a sink writing to st.
func NewStoreSink(st store.NarrationLogStore) *StoreSink {
	return &StoreSink{store: st}
}

func (s *StoreSink) Name() string { return "store" }

// Send implements Sink.
func (s *StoreSink) Send(ctx context.Context, e Entry) error {
	l := e.Log()
	return s.store.SaveNarrationLog(ctx, &l)
}

// Reporter fans entries out to its sinks without blocking the caller.
type Reporter struct {
	sinks   []Sink
	metrics *metrics.Recorder
	timeout time.Duration
	// Title names an audio id in the event log; nil prints the id.
	Title func(audioID int64) string

	wg sync.WaitGroup
}

// NewReporter creates a Reporter. Each delivery gets its own timeout.
func NewReporter(m *metrics.Recorder, timeout time.Duration, sinks ...Sink) *Reporter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Reporter{sinks: sinks, metrics: m, timeout: timeout}
}

// Report delivers e to every sink in the background and returns immediately.
func (r *Reporter) Report(e Entry) {
	r.logEvent(&e)
	for _, s := range r.sinks {
		r.wg.Add(1)
		go func(s Sink) {
			defer r.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			defer cancel()
			if err := s.Send(ctx, e); err != nil {
				slog.Warn("Telemetry: delivery failed", "sink", s.Name(), "audio_id", e.AudioID, "status", e.Status, "error", err)
				r.metrics.TelemetryFailure(ctx, s.Name())
			}
		}(s)
	}
}

// Wait blocks until in-flight deliveries finish. Used on shutdown.
func (r *Reporter) Wait() {
	r.wg.Wait()
}

func (r *Reporter) logEvent(e *Entry) {
	title := fmt.Sprintf("audio %d", e.AudioID)
	if r.Title != nil {
		if t := r.Title(e.AudioID); t != "" {
			title = t
		}
	}
	summary := fmt.Sprintf("audio=%d device=%s", e.AudioID, e.DeviceID)
	if e.DurationSeconds != nil {
		summary += fmt.Sprintf(" duration=%ds", *e.DurationSeconds)
	}
	logging.LogEvent(time.UnixMilli(e.PlayedAt), string(e.Status), title, summary)
}
