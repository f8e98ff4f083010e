package config

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/store"
)

// Provider defines the interface for accessing unified configuration.
type Provider interface {
	// Position
	PositionMode(ctx context.Context) string
	SimulatedPosition(ctx context.Context) (lat, lon float64, ok bool)
	SetPositionMode(ctx context.Context, mode string) error
	SetSimulatedPosition(ctx context.Context, lat, lon float64) error

	// Narrator
	AutoGuide(ctx context.Context) bool
	SetAutoGuide(ctx context.Context, on bool) error
	NearbyLimit(ctx context.Context) int

	// Gate
	GateFailurePolicy(ctx context.Context) string
	GateCooldown(ctx context.Context) time.Duration

	// Audio
	Volume(ctx context.Context) float64
	SetVolume(ctx context.Context, v float64) error

	// Raw access (for components that need deep access)
	AppConfig() *Config
}

// UnifiedProvider implements Provider by bridging static Config and persistent Store.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider. st may be nil, in which case only the
// static config is served and setters fail.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

// --- Implementations ---

func (p *UnifiedProvider) PositionMode(ctx context.Context) string {
	fallback := p.base.Position.Mode
	if fallback == "" {
		fallback = PositionLive
	}
	mode := p.getString(ctx, KeyPositionMode, fallback)
	if mode != PositionLive && mode != PositionSimulated {
		return fallback
	}
	return mode
}

func (p *UnifiedProvider) SetPositionMode(ctx context.Context, mode string) error {
	if mode != PositionLive && mode != PositionSimulated {
		return fmt.Errorf("invalid position mode %q", mode)
	}
	return p.set(ctx, KeyPositionMode, mode)
}

// SimulatedPosition returns the last operator coordinate, else the configured start point.
func (p *UnifiedProvider) SimulatedPosition(ctx context.Context) (lat, lon float64, ok bool) {
	if p.store != nil {
		sLat, okLat := p.store.GetState(ctx, KeySimulatedLat)
		sLon, okLon := p.store.GetState(ctx, KeySimulatedLon)
		if okLat && okLon {
			la, errLat := strconv.ParseFloat(sLat, 64)
			lo, errLon := strconv.ParseFloat(sLon, 64)
			if errLat == nil && errLon == nil {
				return la, lo, true
			}
		}
	}
	if p.base.Position.StartLat != nil && p.base.Position.StartLon != nil {
		return *p.base.Position.StartLat, *p.base.Position.StartLon, true
	}
	return 0, 0, false
}

func (p *UnifiedProvider) SetSimulatedPosition(ctx context.Context, lat, lon float64) error {
	if err := p.set(ctx, KeySimulatedLat, strconv.FormatFloat(lat, 'f', -1, 64)); err != nil {
		return err
	}
	return p.set(ctx, KeySimulatedLon, strconv.FormatFloat(lon, 'f', -1, 64))
}

func (p *UnifiedProvider) AutoGuide(ctx context.Context) bool {
	return p.getBool(ctx, KeyAutoGuide, p.base.Narrator.AutoGuide)
}

func (p *UnifiedProvider) SetAutoGuide(ctx context.Context, on bool) error {
	return p.set(ctx, KeyAutoGuide, strconv.FormatBool(on))
}

func (p *UnifiedProvider) NearbyLimit(ctx context.Context) int {
	return p.getInt(ctx, KeyNearbyLimit, p.base.Narrator.NearbyLimit)
}

func (p *UnifiedProvider) GateFailurePolicy(ctx context.Context) string {
	v := p.getString(ctx, KeyGatePolicy, p.base.Gate.FailurePolicy)
	if v != FailOpen {
		return FailClosed
	}
	return v
}

func (p *UnifiedProvider) GateCooldown(ctx context.Context) time.Duration {
	return p.getDuration(ctx, KeyGateCooldown, time.Duration(p.base.Gate.Cooldown))
}

func (p *UnifiedProvider) Volume(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeyVolume, p.base.Audio.Volume)
}

func (p *UnifiedProvider) SetVolume(ctx context.Context, v float64) error {
	if v < 0 {
		return fmt.Errorf("invalid volume %v", v)
	}
	return p.set(ctx, KeyVolume, strconv.FormatFloat(v, 'f', -1, 64))
}

// --- Helpers ---

func (p *UnifiedProvider) set(ctx context.Context, key, val string) error {
	if p.store == nil {
		return fmt.Errorf("no state store for %s", key)
	}
	return p.store.SetState(ctx, key, val)
}

func (p *UnifiedProvider) getString(ctx context.Context, key, fallback string) string {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val
		}
	}
	return fallback
}

func (p *UnifiedProvider) getInt(ctx context.Context, key string, fallback int) int {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				return i
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getFloat64(ctx context.Context, key string, fallback float64) float64 {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return f
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getBool(ctx context.Context, key string, fallback bool) bool {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val == "true"
		}
	}
	return fallback
}

func (p *UnifiedProvider) getDuration(ctx context.Context, key string, fallback time.Duration) time.Duration {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if dur, err := ParseDuration(val); err == nil {
				return dur
			}
		}
	}
	return fallback
}
