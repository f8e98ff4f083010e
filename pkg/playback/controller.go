// Package playback is the state machine that owns the single audio output.
package playback

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/audio"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/model"
)

// State of the controller.
type State string

const (
	StateIdle         State = "idle"
	StateLoading      State = "loading"
	StatePlaying      State = "playing"
	StatePausedByUser State = "paused_by_user"
)

// Output is the audio element. Play assigns a source under token and reports
// back through audio events carrying that token; Stop detaches the source.
// Implementations must not call back into the controller synchronously.
type Output interface {
	Play(token uint64, audioID int64)
	Stop()
}

// Session is the interval one clip is actually sounding.
type Session struct {
	Token     uint64            `json:"token"`
	POI       model.POI         `json:"poi"`
	Kind      model.TriggerKind `json:"kind"`
	StartedAt time.Time         `json:"started_at"`
	// Clip length as reported by the output
	MediaDuration time.Duration `json:"media_duration"`
}

// Event is emitted for every session lifecycle change.
type Event struct {
	Status          model.PlaybackStatus
	Session         Session
	DurationSeconds *int // nil for PLAYING
	At              time.Time
}

// Listener receives lifecycle events, in order, outside the controller lock.
type Listener func(Event)

// Snapshot is a copy of the controller state.
type Snapshot struct {
	State      State      `json:"state"`
	UserPaused bool       `json:"user_paused"`
	Pending    *model.POI `json:"pending,omitempty"`
	Session    *Session   `json:"session,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

type pending struct {
	token uint64
	poi   model.POI
	kind  model.TriggerKind
}

// Controller serialises play requests, user pauses, geofence exits and media
// events into one state machine. At most one session is open at any time.
type Controller struct {
	out       Output
	now       func() time.Time
	listeners []Listener

	mu         sync.Mutex
	state      State
	userPaused bool
	token      uint64
	pending    *pending
	session    *Session
	lastErr    error
}

// NewController creates an idle controller driving out.
func NewController(out Output) *Controller {
	return &Controller{out: out, now: time.Now, state: StateIdle}
}

// OnEvent registers a lifecycle listener. Not safe to call concurrently with commands.
func (c *Controller) OnEvent(l Listener) {
	c.listeners = append(c.listeners, l)
}

// RequestPlay asks for poi's clip. Automatic requests are honoured only from
// Idle with the user pause flag clear; user requests always win, closing any
// open session as SKIPPED first. It reports whether a source was assigned.
func (c *Controller) RequestPlay(poi model.POI, kind model.TriggerKind) bool {
	c.mu.Lock()
	var events []Event

	if kind == model.TriggerAuto && (c.state != StateIdle || c.userPaused) {
		c.mu.Unlock()
		slog.Debug("Playback: auto request suppressed", "poi", poi.ID, "state", c.state, "user_paused", c.userPaused)
		return false
	}

	if c.session != nil {
		events = append(events, c.closeLocked(model.StatusSkipped, nil))
	}
	if kind == model.TriggerUser {
		c.userPaused = false
		c.lastErr = nil
	}

	c.token++
	c.pending = &pending{token: c.token, poi: poi, kind: kind}
	c.state = StateLoading
	c.out.Play(c.token, poi.AudioID)
	c.mu.Unlock()

	slog.Info("Playback: loading", "poi", poi.ID, "audio_id", poi.AudioID, "kind", kind)
	c.emit(events)
	return true
}

// HandleMedia applies an output event. Events for a superseded source are ignored.
func (c *Controller) HandleMedia(e audio.Event) {
	c.mu.Lock()
	if e.Token != c.token {
		c.mu.Unlock()
		slog.Debug("Playback: stale media event", "token", e.Token, "current", c.token, "kind", e.Kind)
		return
	}

	var events []Event
	switch e.Kind {
	case audio.EventStarted:
		if c.state == StateLoading && c.pending != nil {
			c.session = &Session{
				Token:         c.pending.token,
				POI:           c.pending.poi,
				Kind:          c.pending.kind,
				StartedAt:     c.now(),
				MediaDuration: e.Duration,
			}
			c.pending = nil
			c.state = StatePlaying
			events = append(events, Event{Status: model.StatusPlaying, Session: *c.session, At: c.session.StartedAt})
		}

	case audio.EventEnded:
		if c.state == StatePlaying && c.session != nil {
			d := e.Duration
			if d <= 0 {
				d = c.session.MediaDuration
			}
			var secs *int
			if d > 0 {
				secs = seconds(d)
			}
			events = append(events, c.closeLocked(model.StatusCompleted, secs))
			c.state = StateIdle
		}

	case audio.EventError:
		switch {
		case c.state == StateLoading && c.pending != nil:
			if c.pending.kind == model.TriggerUser {
				c.lastErr = e.Err
			}
			slog.Warn("Playback: clip failed to start", "poi", c.pending.poi.ID, "kind", c.pending.kind, "error", e.Err)
			c.pending = nil
			c.state = StateIdle
		case c.state == StatePlaying && c.session != nil:
			if c.session.Kind == model.TriggerUser {
				c.lastErr = e.Err
			}
			events = append(events, c.closeLocked(model.StatusSkipped, nil))
			c.state = StateIdle
		}
	}
	c.mu.Unlock()
	c.emit(events)
}

// UserPause stops whatever is loading or playing and suppresses automatic
// playback until the next user request.
func (c *Controller) UserPause() {
	c.mu.Lock()
	var events []Event
	switch c.state {
	case StatePlaying:
		events = append(events, c.closeLocked(model.StatusSkipped, nil))
		c.out.Stop()
	case StateLoading:
		c.pending = nil
		c.out.Stop()
	}
	c.state = StatePausedByUser
	c.userPaused = true
	c.mu.Unlock()

	slog.Info("Playback: paused by user")
	c.emit(events)
}

// NotifyLeftRadius stops poiID's clip when the device has left its geofence.
// The user pause flag is left untouched.
func (c *Controller) NotifyLeftRadius(poiID int64) bool {
	c.mu.Lock()
	var events []Event
	switch {
	case c.state == StatePlaying && c.session != nil && c.session.POI.ID == poiID:
		events = append(events, c.closeLocked(model.StatusSkipped, nil))
	case c.state == StateLoading && c.pending != nil && c.pending.poi.ID == poiID:
		c.pending = nil
	default:
		c.mu.Unlock()
		return false
	}
	c.out.Stop()
	c.state = StateIdle
	c.mu.Unlock()

	slog.Info("Playback: left geofence, stopped", "poi", poiID)
	c.emit(events)
	return true
}

// Teardown detaches the output and closes an open session as SKIPPED.
func (c *Controller) Teardown() {
	c.mu.Lock()
	var events []Event
	if c.session != nil {
		events = append(events, c.closeLocked(model.StatusSkipped, nil))
	}
	c.pending = nil
	c.token++
	c.out.Stop()
	if c.state != StatePausedByUser {
		c.state = StateIdle
	}
	c.mu.Unlock()
	c.emit(events)
}

// closeLocked ends the open session. A nil duration means elapsed wall-clock time.
func (c *Controller) closeLocked(status model.PlaybackStatus, duration *int) Event {
	s := *c.session
	now := c.now()
	if duration == nil {
		duration = seconds(now.Sub(s.StartedAt))
	}
	c.session = nil
	return Event{Status: status, Session: s, DurationSeconds: duration, At: now}
}

func (c *Controller) emit(events []Event) {
	for _, e := range events {
		for _, l := range c.listeners {
			l(e)
		}
	}
}

func seconds(d time.Duration) *int {
	if d < 0 {
		d = 0
	}
	s := int(math.Round(d.Seconds()))
	return &s
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the open session.
func (c *Controller) Current() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Snapshot returns a copy of the controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{State: c.state, UserPaused: c.userPaused}
	if c.pending != nil {
		p := c.pending.poi
		s.Pending = &p
	}
	if c.session != nil {
		sess := *c.session
		s.Session = &sess
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}
