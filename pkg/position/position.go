// Package position merges a live sensor feed and an operator supplied coordinate
// into one cancellable stream of position events.
package position

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/geo"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/logging"
)

// Mode selects where positions come from.
type Mode string

const (
	ModeLive      Mode = "live"
	ModeSimulated Mode = "simulated"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLive, ModeSimulated:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown position mode %q", s)
}

// Origin tags every event with the feed that produced it.
type Origin string

const (
	OriginSensor    Origin = "sensor"
	OriginSimulated Origin = "simulated"
)

var (
	// ErrNoPosition is carried by events when the sensor failed and no simulated coordinate exists.
	ErrNoPosition = errors.New("no position available")
	// ErrSensorStopped is reported when a sensor closes its feed while still watched.
	ErrSensorStopped = errors.New("sensor feed stopped")
)

// Event is one element of the position stream. Exactly one of Point or Err is meaningful.
type Event struct {
	Point    geo.Point `json:"point"`
	Origin   Origin    `json:"origin,omitempty"`
	Degraded bool      `json:"degraded"`
	Err      error     `json:"-"`
	Time     time.Time `json:"time"`
}

// HasPosition reports whether the event carries a usable coordinate.
func (e *Event) HasPosition() bool { return e.Err == nil }

// Fix is one raw reading from a sensor. A non-nil Err is a failed fix attempt.
type Fix struct {
	Point geo.Point
	Err   error
}

// Sensor is a continuous location watch. The returned channel must be closed
// once ctx is cancelled; cancellation is what stops the underlying watch.
type Sensor interface {
	Watch(ctx context.Context) (<-chan Fix, error)
}

// Status is a point-in-time view of the source.
type Status struct {
	Mode      Mode       `json:"mode"`
	Degraded  bool       `json:"degraded"`
	LastError string     `json:"last_error,omitempty"`
	Simulated *geo.Point `json:"simulated,omitempty"`
	Last      *Event     `json:"last,omitempty"`
}

// Source unifies a Sensor and a simulated coordinate with automatic fallback.
type Source struct {
	sensor Sensor
	now    func() time.Time

	mu         sync.Mutex
	mode       Mode
	sim        *geo.Point
	simVersion int
	degraded   bool
	lastErr    error
	last       *Event
	subs       map[int]chan struct{}
	nextSub    int
}

// NewSource creates a Source. sensor may be nil, in which case live mode behaves
// like a sensor that never produces a fix.
func NewSource(sensor Sensor, mode Mode) *Source {
	if mode == "" {
		mode = ModeLive
	}
	return &Source{
		sensor: sensor,
		now:    time.Now,
		mode:   mode,
		subs:   make(map[int]chan struct{}),
	}
}

// Mode returns the current mode.
func (s *Source) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches between live and simulated feeds for all subscribers.
func (s *Source) SetMode(m Mode) {
	s.mu.Lock()
	if s.mode == m {
		s.mu.Unlock()
		return
	}
	s.mode = m
	s.degraded = false
	s.lastErr = nil
	s.mu.Unlock()
	slog.Info("Position: mode changed", "mode", m)
	s.wake()
}

// SetSimulated stores the operator coordinate. It is forwarded immediately in
// simulated mode and while a live feed is degraded.
func (s *Source) SetSimulated(p geo.Point) {
	s.mu.Lock()
	s.sim = &p
	s.simVersion++
	s.mu.Unlock()
	s.wake()
}

// Simulated returns the stored operator coordinate.
func (s *Source) Simulated() (geo.Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sim == nil {
		return geo.Point{}, false
	}
	return *s.sim, true
}

// Last returns the most recent emitted event carrying a position.
func (s *Source) Last() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Event{}, false
	}
	return *s.last, true
}

// Status returns a snapshot for the control API.
func (s *Source) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Mode: s.mode, Degraded: s.degraded}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	if s.sim != nil {
		p := *s.sim
		st.Simulated = &p
	}
	if s.last != nil {
		e := *s.last
		st.Last = &e
	}
	return st
}

func (s *Source) wake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe starts a position stream that lives until ctx is cancelled. The
// sensor watch is owned by the subscription and stopped with it; the returned
// channel is closed after cleanup.
func (s *Source) Subscribe(ctx context.Context) <-chan Event {
	out := make(chan Event, 16)
	wake := make(chan struct{}, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = wake
	s.mu.Unlock()

	go s.run(ctx, id, wake, out)
	return out
}

type subscription struct {
	s          *Source
	ctx        context.Context
	out        chan<- Event
	fixes      <-chan Fix
	stopWatch  context.CancelFunc
	mode       Mode
	simVersion int
}

func (s *Source) run(ctx context.Context, id int, wake <-chan struct{}, out chan Event) {
	sub := &subscription{s: s, ctx: ctx, out: out}
	defer func() {
		sub.stop()
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		close(out)
	}()

	sub.sync(true)
	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
			sub.sync(false)
		case fix, ok := <-sub.fixes:
			if !ok {
				sub.fixes = nil
				sub.stop()
				if sub.mode == ModeLive && ctx.Err() == nil {
					sub.onSensorError(ErrSensorStopped)
				}
				continue
			}
			if sub.mode != ModeLive {
				continue
			}
			if fix.Err != nil {
				sub.onSensorError(fix.Err)
				continue
			}
			s.mu.Lock()
			s.degraded = false
			s.lastErr = nil
			s.mu.Unlock()
			logging.Trace("Position: fix", "lat", fix.Point.Lat, "lon", fix.Point.Lon)
			sub.emit(Event{Point: fix.Point, Origin: OriginSensor})
		}
	}
}

// sync reconciles the subscription with the source's mode and simulated coordinate.
func (sub *subscription) sync(initial bool) {
	s := sub.s
	s.mu.Lock()
	mode, sim, version, degraded := s.mode, s.sim, s.simVersion, s.degraded
	s.mu.Unlock()

	modeChanged := initial || mode != sub.mode
	simChanged := version != sub.simVersion
	sub.mode, sub.simVersion = mode, version

	if modeChanged {
		switch mode {
		case ModeLive:
			sub.startWatch()
		case ModeSimulated:
			sub.stop()
		}
	}

	if sim == nil {
		return
	}
	switch {
	case mode == ModeSimulated && (modeChanged || simChanged):
		sub.emit(Event{Point: *sim, Origin: OriginSimulated})
	case mode == ModeLive && degraded && simChanged:
		sub.emit(Event{Point: *sim, Origin: OriginSimulated, Degraded: true})
	}
}

func (sub *subscription) startWatch() {
	if sub.fixes != nil {
		return
	}
	if sub.s.sensor == nil {
		sub.onSensorError(errors.New("no sensor configured"))
		return
	}
	wctx, cancel := context.WithCancel(sub.ctx)
	ch, err := sub.s.sensor.Watch(wctx)
	if err != nil {
		cancel()
		sub.onSensorError(err)
		return
	}
	sub.fixes = ch
	sub.stopWatch = cancel
}

func (sub *subscription) stop() {
	if sub.stopWatch != nil {
		sub.stopWatch()
		sub.stopWatch = nil
	}
	sub.fixes = nil
}

// onSensorError falls back to the simulated coordinate when one exists,
// otherwise emits the no-position state.
func (sub *subscription) onSensorError(err error) {
	s := sub.s
	s.mu.Lock()
	s.lastErr = err
	sim := s.sim
	s.degraded = sim != nil
	s.mu.Unlock()

	slog.Warn("Position: sensor error", "error", err, "fallback", sim != nil)
	if sim != nil {
		sub.emit(Event{Point: *sim, Origin: OriginSimulated, Degraded: true})
		return
	}
	sub.emit(Event{Err: fmt.Errorf("%w: %v", ErrNoPosition, err)})
}

func (sub *subscription) emit(e Event) {
	e.Time = sub.s.now()
	if e.HasPosition() {
		sub.s.mu.Lock()
		last := e
		sub.s.last = &last
		sub.s.mu.Unlock()
	}
	select {
	case sub.out <- e:
	case <-sub.ctx.Done():
	}
}
