// Package narrator ties the position feed, geofence, gate, playback and
// telemetry together on one event loop.
package narrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/audio"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/gate"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/geo"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/geofence"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/identity"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/logging"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/metrics"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/model"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/playback"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/poi"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/position"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/telemetry"
)

var (
	// ErrUnknownPOI is returned for a manual play of an id not in the POI set.
	ErrUnknownPOI = errors.New("unknown poi")
	// ErrNotRunning is returned by commands issued outside Run.
	ErrNotRunning = errors.New("narrator is not running")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("narrator already ran")
)

const inboxSize = 64

// Deps are the collaborators of an Engine.
type Deps struct {
	Positions  PositionFeed
	POIs       POIProvider
	Gate       Gatekeeper
	Controller *playback.Controller
	Identity   IdentityProvider
	Reporter   Reporter
	Settings   Settings
	Metrics    *metrics.Recorder
}

// GateResult is the last gate answer the engine acted on or discarded.
type GateResult struct {
	AudioID int64     `json:"audio_id"`
	Allowed bool      `json:"allowed"`
	Stale   bool      `json:"stale"`
	At      time.Time `json:"at"`
}

// Status is a point-in-time view of the engine.
type Status struct {
	Running  bool              `json:"running"`
	DeviceID string            `json:"device_id"`
	Position *position.Event   `json:"position,omitempty"`
	Resolved *model.POI        `json:"resolved,omitempty"`
	LastGate *GateResult       `json:"last_gate,omitempty"`
	Playback playback.Snapshot `json:"playback"`
}

// Engine is the narration event loop. Position events arrive on the
// subscription; media events, gate answers and user commands are posted to
// the inbox. All geofence and playback state changes happen on the Run
// goroutine.
type Engine struct {
	positions PositionFeed
	pois      POIProvider
	gate      Gatekeeper
	ctrl      *playback.Controller
	identity  IdentityProvider
	reporter  Reporter
	settings  Settings
	metrics   *metrics.Recorder
	now       func() time.Time

	inbox    chan func()
	done     chan struct{}
	doneOnce sync.Once
	started  atomic.Bool
	running  atomic.Bool

	// Owned by the loop goroutine.
	ctx         context.Context
	deviceID    string
	resolved    *model.POI
	lastGated   int64
	hasGated    bool
	gateSeq     uint64

	mu   sync.RWMutex
	view Status
}

// New wires an Engine and registers it as the controller's listener.
// The audio output must deliver its events through HandleMedia.
func New(d Deps) *Engine {
	e := &Engine{
		positions: d.Positions,
		pois:      d.POIs,
		gate:      d.Gate,
		ctrl:      d.Controller,
		identity:  d.Identity,
		reporter:  d.Reporter,
		settings:  d.Settings,
		metrics:   d.Metrics,
		now:       time.Now,
		inbox:     make(chan func(), inboxSize),
		done:      make(chan struct{}),
	}
	e.ctrl.OnEvent(e.onPlayback)
	return e
}

// Run processes events until ctx is cancelled or the position feed closes.
// On return the sensor watch is stopped, the output is detached and an open
// session is closed as SKIPPED. An Engine runs at most once.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	e.ctx = ctx
	e.deviceID = e.loadDeviceID(ctx)
	e.mu.Lock()
	e.view.DeviceID = e.deviceID
	e.mu.Unlock()

	positions := e.positions.Subscribe(ctx)
	e.running.Store(true)
	slog.Info("Narrator: started", "device_id", e.deviceID, "pois", len(e.pois.POIs()))

	defer func() {
		cancel()
		e.teardown()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-positions:
			if !ok {
				return nil
			}
			e.handlePosition(ev)
		case fn := <-e.inbox:
			fn()
		}
	}
}

func (e *Engine) teardown() {
	e.running.Store(false)
	e.doneOnce.Do(func() { close(e.done) })
	e.ctrl.Teardown()
	if e.reporter != nil {
		e.reporter.Wait()
	}
	slog.Info("Narrator: stopped")
}

func (e *Engine) loadDeviceID(ctx context.Context) string {
	if e.identity != nil {
		id, err := e.identity.DeviceID(ctx)
		if err == nil {
			return id
		}
		slog.Warn("Narrator: device id unavailable, using an ephemeral one", "error", err)
	}
	return identity.Generate(e.now())
}

// post queues fn for the loop. Posts after teardown are dropped.
func (e *Engine) post(fn func()) bool {
	select {
	case <-e.done:
		return false
	default:
	}
	select {
	case e.inbox <- fn:
		return true
	case <-e.done:
		return false
	}
}

// do runs fn on the loop and waits for it.
func (e *Engine) do(ctx context.Context, fn func()) error {
	if !e.running.Load() {
		return ErrNotRunning
	}
	ran := make(chan struct{})
	if !e.post(func() { fn(); close(ran) }) {
		return ErrNotRunning
	}
	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		select {
		case <-ran:
			return nil
		default:
			return ErrNotRunning
		}
	}
}

// HandleMedia forwards an audio output event into the loop.
func (e *Engine) HandleMedia(ev audio.Event) {
	e.post(func() {
		e.ctrl.HandleMedia(ev)
		e.maybeGate()
	})
}

// PlayPOI starts id's clip on user request. The gate is not consulted.
func (e *Engine) PlayPOI(ctx context.Context, id int64) error {
	p, err := e.pois.Get(id)
	if err != nil {
		if errors.Is(err, poi.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrUnknownPOI, id)
		}
		return err
	}
	return e.do(ctx, func() {
		e.ctrl.RequestPlay(p, model.TriggerUser)
	})
}

// Pause stops playback and suppresses automatic play until the next PlayPOI.
func (e *Engine) Pause(ctx context.Context) error {
	return e.do(ctx, e.ctrl.UserPause)
}

// Status returns a snapshot of the engine and controller.
func (e *Engine) Status() Status {
	e.mu.RLock()
	s := e.view
	e.mu.RUnlock()
	s.Running = e.running.Load()
	s.Playback = e.ctrl.Snapshot()
	return s
}

func (e *Engine) handlePosition(ev position.Event) {
	e.mu.Lock()
	evCopy := ev
	e.view.Position = &evCopy
	e.mu.Unlock()

	if !ev.HasPosition() {
		slog.Debug("Narrator: no position", "error", ev.Err)
		return
	}
	logging.Trace("Narrator: position", "lat", ev.Point.Lat, "lon", ev.Point.Lon, "origin", ev.Origin, "degraded", ev.Degraded)

	e.checkLeftRadius(ev.Point)

	r, ok := geofence.Resolve(ev.Point, e.pois.POIs())
	if !ok {
		if e.resolved != nil {
			slog.Info("Narrator: left all geofences", "last", e.resolved.ID)
		}
		e.setResolved(nil)
		e.hasGated = false
		return
	}
	if e.resolved == nil || e.resolved.ID != r.ID {
		slog.Info("Narrator: resolved POI", "poi", r.ID, "name", r.Name, "distance_m", int(geo.Distance(ev.Point, r.Point())))
	}
	e.setResolved(&r)
	e.maybeGate()
}

// checkLeftRadius stops the playing clip when pos is outside its POI's own radius.
func (e *Engine) checkLeftRadius(pos geo.Point) {
	sess, ok := e.ctrl.Current()
	if !ok || geofence.Contains(pos, &sess.POI) {
		return
	}
	e.ctrl.NotifyLeftRadius(sess.POI.ID)
}

func (e *Engine) setResolved(p *model.POI) {
	e.resolved = p
	e.mu.Lock()
	if p == nil {
		e.view.Resolved = nil
	} else {
		cp := *p
		e.view.Resolved = &cp
	}
	e.mu.Unlock()
}

// maybeGate asks the gate about a newly resolved POI while the controller is idle.
func (e *Engine) maybeGate() {
	if e.resolved == nil || e.ctrl.State() != playback.StateIdle {
		return
	}
	if e.hasGated && e.lastGated == e.resolved.ID {
		return
	}
	if e.settings != nil && !e.settings.AutoGuide(e.ctx) {
		return
	}

	target := *e.resolved
	e.lastGated = target.ID
	e.hasGated = true
	e.gateSeq++
	seq := e.gateSeq
	req := gate.NewRequest(e.deviceID, target.AudioID, e.now())

	// In-flight checks are abandoned, not cancelled, on teardown.
	ctx := context.WithoutCancel(e.ctx)
	go func() {
		allowed := e.gate.Allow(ctx, req)
		e.post(func() { e.applyGate(seq, target, allowed) })
	}()
}

func (e *Engine) applyGate(seq uint64, target model.POI, allowed bool) {
	stale := seq != e.gateSeq || e.resolved == nil || e.resolved.ID != target.ID
	e.mu.Lock()
	e.view.LastGate = &GateResult{AudioID: target.AudioID, Allowed: allowed, Stale: stale, At: e.now()}
	e.mu.Unlock()

	if stale {
		slog.Debug("Narrator: stale gate answer discarded", "poi", target.ID)
		return
	}
	if !allowed {
		return
	}
	e.ctrl.RequestPlay(target, model.TriggerAuto)
}

// onPlayback runs on the loop for every controller lifecycle event.
func (e *Engine) onPlayback(ev playback.Event) {
	if e.reporter != nil {
		e.reporter.Report(telemetry.NewEntry(e.deviceID, ev.Session.POI.AudioID, ev.Session.StartedAt, ev.DurationSeconds, ev.Status))
	}
	ctx := e.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	e.metrics.Session(ctx, string(ev.Status), string(ev.Session.Kind))
}
