package logging

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

// LineCapture is an io.Writer that remembers only the last line written to it.
type LineCapture struct {
	mu   sync.RWMutex
	last string
}

var (
	// ServerCapture holds the last INFO+ server log line.
	ServerCapture = &LineCapture{}
	// EventCapture holds the last narration lifecycle event.
	EventCapture = &LineCapture{}
)

func (c *LineCapture) Write(p []byte) (int, error) {
	line := strings.TrimSpace(string(p))
	c.mu.Lock()
	c.last = line
	c.mu.Unlock()
	return len(p), nil
}

// Last returns the most recent line.
func (c *LineCapture) Last() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

var traceEnabled atomic.Bool

// SetTrace toggles per-fix position tracing. Init enables it for level TRACE.
func SetTrace(on bool) { traceEnabled.Store(on) }

// Trace logs at DEBUG on the default logger when tracing is on.
func Trace(msg string, args ...any) {
	if traceEnabled.Load() {
		slog.Debug(msg, args...)
	}
}
