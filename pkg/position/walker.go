package position

import (
	"context"
	"sync"
	"time"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/geo"
)

// WalkerConfig holds timing for the mock pedestrian.
type WalkerConfig struct {
	Speed    float64 // meters per second
	Interval time.Duration
	Dwell    time.Duration
}

// Walker is a mock Sensor that walks a closed route of waypoints, pausing at each.
type Walker struct {
	cfg WalkerConfig

	mu        sync.Mutex
	route     []geo.Point
	pos       geo.Point
	target    int
	dwellLeft time.Duration
}

// NewWalker creates a walker standing on the first waypoint.
func NewWalker(cfg WalkerConfig, route []geo.Point) *Walker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1.4
	}
	w := &Walker{cfg: cfg, route: append([]geo.Point(nil), route...)}
	if len(w.route) > 0 {
		w.pos = w.route[0]
		w.target = 1 % len(w.route)
		w.dwellLeft = cfg.Dwell
	}
	return w
}

// Position returns where the walker currently stands.
func (w *Walker) Position() geo.Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos
}

// Watch implements Sensor. The walk advances only while watched.
func (w *Walker) Watch(ctx context.Context) (<-chan Fix, error) {
	ch := make(chan Fix, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(w.cfg.Interval)
		defer ticker.Stop()

		last := time.Now()
		select {
		case ch <- Fix{Point: w.Position()}:
		case <-ctx.Done():
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				p := w.advance(now.Sub(last))
				last = now
				select {
				case ch <- Fix{Point: p}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

// advance moves the walker by dt along the route and returns the new position.
func (w *Walker) advance(dt time.Duration) geo.Point {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.route) < 2 {
		return w.pos
	}
	if w.dwellLeft > 0 {
		w.dwellLeft -= dt
		return w.pos
	}

	remaining := w.cfg.Speed * dt.Seconds()
	for hops := 0; remaining > 0 && hops < len(w.route); hops++ {
		target := w.route[w.target]
		d := geo.Distance(w.pos, target)
		if d > remaining {
			w.pos = geo.DestinationPoint(w.pos, remaining, geo.Bearing(w.pos, target))
			break
		}
		w.pos = target
		remaining -= d
		w.target = (w.target + 1) % len(w.route)
		if w.cfg.Dwell > 0 {
			w.dwellLeft = w.cfg.Dwell
			break
		}
	}
	return w.pos
}
