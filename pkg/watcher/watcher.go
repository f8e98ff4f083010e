// Package watcher polls files for modification and reports changes.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Service monitors a set of files for modification time changes.
type Service struct {
	paths []string

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewService creates a monitor. The current state of each file is the baseline,
// so only later edits are reported.
func NewService(paths ...string) *Service {
	s := &Service{paths: paths, seen: make(map[string]time.Time)}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			slog.Warn("Watcher: file not found yet", "path", p)
			continue
		}
		s.seen[p] = info.ModTime()
	}
	return s
}

// CheckChanged returns the files created or modified since the previous check.
// Deleted files are forgotten so that recreating them counts as a change.
func (s *Service) CheckChanged() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []string
	for _, p := range s.paths {
		info, err := os.Stat(p)
		if err != nil {
			delete(s.seen, p)
			continue
		}
		if last, ok := s.seen[p]; ok && info.ModTime().Equal(last) {
			continue
		}
		s.seen[p] = info.ModTime()
		changed = append(changed, p)
	}
	return changed
}

// Run polls every interval and calls onChange for each changed file until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration, onChange func(ctx context.Context, path string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range s.CheckChanged() {
				slog.Info("Watcher: file changed", "path", p)
				onChange(ctx, p)
			}
		}
	}
}
