// Package audio owns the single speaker output clips are played on.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
)

// EventKind is a media element event.
type EventKind string

const (
	EventStarted EventKind = "started"
	EventEnded   EventKind = "ended"
	EventError   EventKind = "error"
)

// Event reports progress of the clip loaded under Token.
type Event struct {
	Token    uint64
	AudioID  int64
	Kind     EventKind
	Duration time.Duration // clip length, known once started
	Err      error
}

// Manager plays one clip at a time. Loading a new clip cancels whatever was
// loading or playing (last request wins). Media events are delivered to the
// sink from background goroutines, never while the manager lock is held.
type Manager struct {
	fetcher    Fetcher
	speaker    Speaker
	sampleRate beep.SampleRate

	mu                 sync.Mutex
	sink               func(Event)
	volume             float64
	speakerInitialized bool
	token              uint64
	audioID            int64
	cancelLoad         context.CancelFunc
	ctrl               *beep.Ctrl
	streamer           *effects.Volume
	trackStreamer      beep.StreamSeekCloser
	trackFormat        beep.Format
}

// New creates a Manager. sampleRate is the device rate clips are resampled to.
func New(f Fetcher, sp Speaker, sampleRate int) *Manager {
	if sp == nil {
		sp = SystemSpeaker{}
	}
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	return &Manager{
		fetcher:    f,
		speaker:    sp,
		sampleRate: beep.SampleRate(sampleRate),
		volume:     1.0,
	}
}

// SetSink installs the media event callback.
func (m *Manager) SetSink(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = fn
}

// Play assigns audioID as the source under token and starts it asynchronously.
// The outcome arrives as EventStarted or EventError carrying the same token.
func (m *Manager) Play(token uint64, audioID int64) {
	m.mu.Lock()
	m.stopLocked()
	ctx, cancel := context.WithCancel(context.Background())
	m.token = token
	m.audioID = audioID
	m.cancelLoad = cancel
	m.mu.Unlock()

	go m.load(ctx, token, audioID)
}

func (m *Manager) load(ctx context.Context, token uint64, audioID int64) {
	data, err := m.fetcher.Fetch(ctx, audioID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.fail(token, audioID, fmt.Errorf("fetch clip: %w", err))
		return
	}

	streamer, format, err := Decode(data)
	if err != nil {
		m.fail(token, audioID, err)
		return
	}

	m.mu.Lock()
	if m.token != token || ctx.Err() != nil {
		m.mu.Unlock()
		streamer.Close()
		return
	}
	if err := m.ensureSpeakerInitialized(); err != nil {
		m.mu.Unlock()
		streamer.Close()
		m.fail(token, audioID, err)
		return
	}

	var resampled beep.Streamer = streamer
	if format.SampleRate != m.sampleRate {
		resampled = beep.Resample(3, format.SampleRate, m.sampleRate, streamer)
	}
	vol := &effects.Volume{Streamer: resampled, Base: 2}
	vol.Volume, vol.Silent = gain(m.volume)
	m.streamer = vol
	m.trackStreamer = streamer
	m.trackFormat = format
	// Held paused until EventStarted is out, so EventEnded can never overtake it
	ctrl := &beep.Ctrl{Streamer: vol, Paused: true}
	m.ctrl = ctrl
	duration := format.SampleRate.D(streamer.Len())
	sink := m.sink

	m.speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		// Never block the speaker goroutine
		go m.finished(token)
	})))
	m.mu.Unlock()

	slog.Debug("Audio: playing clip", "audio_id", audioID, "duration", duration)
	if sink != nil {
		sink(Event{Token: token, AudioID: audioID, Kind: EventStarted, Duration: duration})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == token && m.ctrl == ctrl {
		m.speaker.Lock()
		ctrl.Paused = false
		m.speaker.Unlock()
	}
}

func (m *Manager) finished(token uint64) {
	m.mu.Lock()
	if m.token != token || m.ctrl == nil {
		m.mu.Unlock()
		return
	}
	duration := m.trackFormat.SampleRate.D(m.trackStreamer.Len())
	audioID := m.audioID
	m.releaseLocked()
	sink := m.sink
	m.mu.Unlock()

	if sink != nil {
		sink(Event{Token: token, AudioID: audioID, Kind: EventEnded, Duration: duration})
	}
}

func (m *Manager) fail(token uint64, audioID int64, err error) {
	m.mu.Lock()
	current := m.token == token
	sink := m.sink
	m.mu.Unlock()
	if !current {
		return
	}
	slog.Warn("Audio: clip failed", "audio_id", audioID, "error", err)
	if sink != nil {
		sink(Event{Token: token, AudioID: audioID, Kind: EventError, Err: err})
	}
}

// Stop detaches the current source. No event is emitted for it afterwards.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	m.token = 0
}

func (m *Manager) stopLocked() {
	if m.cancelLoad != nil {
		m.cancelLoad()
		m.cancelLoad = nil
	}
	if m.ctrl != nil {
		m.speaker.Clear()
	}
	m.releaseLocked()
}

func (m *Manager) releaseLocked() {
	if m.trackStreamer != nil {
		m.trackStreamer.Close()
		m.trackStreamer = nil
	}
	m.ctrl = nil
	m.streamer = nil
}

func (m *Manager) ensureSpeakerInitialized() error {
	if m.speakerInitialized {
		return nil
	}
	if err := m.speaker.Init(m.sampleRate, m.sampleRate.N(time.Second/10)); err != nil {
		slog.Error("Audio: failed to initialize speaker", "error", err)
		return errors.Join(errors.New("speaker unavailable"), err)
	}
	m.speakerInitialized = true
	return nil
}

// IsPlaying reports whether a clip is sounding.
func (m *Manager) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctrl != nil
}

// SetVolume sets playback volume, clamped to 0..1, applying it to the live clip.
func (m *Manager) SetVolume(vol float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if vol < 0 {
		vol = 0
	} else if vol > 1 {
		vol = 1
	}
	m.volume = vol

	if m.streamer != nil {
		m.speaker.Lock()
		m.streamer.Volume, m.streamer.Silent = gain(vol)
		m.speaker.Unlock()
	}
}

// gain maps a linear 0..1 volume to a base-2 exponent. Near zero is muted outright.
func gain(vol float64) (exp float64, silent bool) {
	if vol <= 0.01 {
		return -10, true
	}
	return math.Log2(vol), false
}

// Volume returns the current volume level.
func (m *Manager) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// Position returns the playback position of the current clip.
func (m *Manager) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.trackStreamer == nil || m.trackFormat.SampleRate == 0 {
		return 0
	}
	m.speaker.Lock()
	defer m.speaker.Unlock()
	return m.trackFormat.SampleRate.D(m.trackStreamer.Position())
}

// Duration returns the total length of the current clip.
func (m *Manager) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.trackStreamer == nil || m.trackFormat.SampleRate == 0 {
		return 0
	}
	return m.trackFormat.SampleRate.D(m.trackStreamer.Len())
}
