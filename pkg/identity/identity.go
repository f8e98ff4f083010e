// Package identity owns the per-device identifier sent with every gate check and
// narration log. The id is created once, persisted, and reused across runs.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/config"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/store"
)

const (
	prefix    = "web"
	suffixLen = 9
)

// Provider lazily creates and caches the device id.
type Provider struct {
	store  store.StateStore
	pinned string
	now    func() time.Time

	mu sync.Mutex
	id string
}

// NewProvider returns a Provider backed by st. A non-empty pinned id wins over
// anything stored and is never persisted.
func NewProvider(st store.StateStore, pinned string) *Provider {
	return &Provider{
		store:  st,
		pinned: strings.TrimSpace(pinned),
		now:    time.Now,
	}
}

// DeviceID returns the device id, creating and persisting it on first use.
func (p *Provider) DeviceID(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.id != "" {
		return p.id, nil
	}
	if p.pinned != "" {
		p.id = p.pinned
		return p.id, nil
	}
	if p.store != nil {
		if v, ok := p.store.GetState(ctx, config.KeyDeviceID); ok && v != "" {
			p.id = v
			return p.id, nil
		}
	}

	id := Generate(p.now())
	if p.store != nil {
		if err := p.store.SetState(ctx, config.KeyDeviceID, id); err != nil {
			return "", fmt.Errorf("failed to persist device id: %w", err)
		}
	}
	slog.Info("Identity: created device id", "device_id", id)
	p.id = id
	return id, nil
}

// Generate builds a fresh id of the form web-<epoch millis>-<9 chars>.
func Generate(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLen]
	return fmt.Sprintf("%s-%d-%s", prefix, t.UnixMilli(), suffix)
}
