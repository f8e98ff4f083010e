package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/store"
)

// Store is what the local decision needs from persistence.
type Store interface {
	store.AudioStore
	store.NarrationLogStore
}

// Service answers checks from the narration log: playback is allowed unless the
// device's latest log for the clip, played before now, lies within the cooldown.
type Service struct {
	store    Store
	cooldown func(context.Context) time.Duration
	now      func() time.Time
}

// NewService creates a Service. cooldown is read on every check.
func NewService(st Store, cooldown func(context.Context) time.Duration) *Service {
	return &Service{store: st, cooldown: cooldown, now: time.Now}
}

// FixedCooldown adapts a constant to the cooldown callback.
func FixedCooldown(d time.Duration) func(context.Context) time.Duration {
	return func(context.Context) time.Duration { return d }
}

// Check implements Gate.
func (s *Service) Check(ctx context.Context, req Request) (Decision, error) {
	if _, err := s.store.GetAudio(ctx, req.AudioID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Decision{}, fmt.Errorf("%w: %d", ErrUnknownAudio, req.AudioID)
		}
		return Decision{}, err
	}

	now := s.now()
	last, ok, err := s.store.LastPlayedBefore(ctx, req.DeviceID, req.AudioID, now)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read narration log: %w", err)
	}
	if ok && !last.Before(now.Add(-s.cooldown(ctx))) {
		return Decision{ShouldPlay: false, Reason: ReasonRecentlyPlayed}, nil
	}
	return Decision{ShouldPlay: true}, nil
}
