package position

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/geo"
)

// StreamMessage is one frame pushed by a device over the position websocket.
// A non-empty Error reports a failed fix (permission denied, timeout).
type StreamMessage struct {
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
	Accuracy float64  `json:"accuracy,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Fix converts the frame into a sensor reading.
func (m *StreamMessage) Fix() (Fix, error) {
	if m.Error != "" {
		return Fix{Err: errors.New(m.Error)}, nil
	}
	if m.Lat == nil || m.Lon == nil {
		return Fix{}, fmt.Errorf("frame without coordinates")
	}
	p := geo.Point{Lat: *m.Lat, Lon: *m.Lon}
	if !p.Valid() {
		return Fix{}, fmt.Errorf("coordinates out of range: %v,%v", p.Lat, p.Lon)
	}
	return Fix{Point: p}, nil
}

// StreamSensor is a Sensor fed by pushes from a connected device. Fixes pushed
// while nobody watches are dropped.
type StreamSensor struct {
	mu       sync.Mutex
	watchers map[int]chan Fix
	next     int
}

// NewStreamSensor creates an idle StreamSensor.
func NewStreamSensor() *StreamSensor {
	return &StreamSensor{watchers: make(map[int]chan Fix)}
}

// Watch implements Sensor.
func (s *StreamSensor) Watch(ctx context.Context) (<-chan Fix, error) {
	ch := make(chan Fix, 8)
	s.mu.Lock()
	id := s.next
	s.next++
	s.watchers[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// Watching reports whether a watch is active.
func (s *StreamSensor) Watching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers) > 0
}

// Push delivers one reading to every active watch. A full watcher drops the fix.
func (s *StreamSensor) Push(f Fix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- f:
		default:
			slog.Warn("Position: stream watcher full, dropping fix")
		}
	}
}

// ServeConn reads StreamMessage frames from conn until it closes or ctx ends.
// Malformed frames are answered with an error frame and skipped.
func (s *StreamSensor) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("position stream read failed: %w", err)
		}

		var msg StreamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = conn.WriteJSON(map[string]string{"error": "invalid frame"})
			continue
		}
		fix, err := msg.Fix()
		if err != nil {
			_ = conn.WriteJSON(map[string]string{"error": err.Error()})
			continue
		}
		s.Push(fix)
	}
}
