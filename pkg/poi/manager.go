package poi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/geo"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/model"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/store"
)

// SnapshotKey is the cache key holding the last successfully fetched catalogue.
const SnapshotKey = "pois:snapshot"

// SimulatedRangePad widens the POI bounding box for the simulated position controls (degrees).
const SimulatedRangePad = 0.0005

// Manager owns the POI set for one session. The set is replaced wholesale by Load
// and never mutated in place, so slices returned by POIs are safe to share.
type Manager struct {
	source   Source
	cache    store.CacheStore
	defaults Defaults
	logger   *slog.Logger

	mu     sync.RWMutex
	assets []model.AudioAsset
	pois   []model.POI
	byID   map[int64]int
	origin string
}

// NewManager creates a POI manager. cache may be nil to disable the offline snapshot.
func NewManager(src Source, cache store.CacheStore, d Defaults) *Manager {
	return &Manager{
		source:   src,
		cache:    cache,
		defaults: d,
		logger:   slog.With("component", "poi_manager"),
		byID:     make(map[int64]int),
	}
}

// Load fetches the catalogue, falling back to the offline snapshot when the source fails.
// When both fail the set is left empty and ErrSourceUnavailable is returned; callers may
// keep running since an empty set simply never resolves.
func (m *Manager) Load(ctx context.Context) error {
	assets, err := m.source.Fetch(ctx)
	if err == nil {
		m.set(assets, "source")
		m.saveSnapshot(ctx, assets)
		m.logger.Info("Loaded POIs", "assets", len(assets), "pois", m.Count())
		return nil
	}
	m.logger.Warn("POI source failed, trying snapshot", "error", err)

	if snap, ok := m.loadSnapshot(ctx); ok {
		m.set(snap, "snapshot")
		m.logger.Info("Loaded POIs from snapshot", "assets", len(snap), "pois", m.Count())
		return nil
	}

	m.set(nil, "none")
	return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
}

func (m *Manager) set(assets []model.AudioAsset, origin string) {
	pois := FromAssets(assets, m.defaults)
	byID := make(map[int64]int, len(pois))
	for i := range pois {
		if _, dup := byID[pois[i].ID]; dup {
			m.logger.Warn("Duplicate POI id, keeping first", "id", pois[i].ID)
			continue
		}
		byID[pois[i].ID] = i
	}

	m.mu.Lock()
	m.assets = assets
	m.pois = pois
	m.byID = byID
	m.origin = origin
	m.mu.Unlock()
}

func (m *Manager) saveSnapshot(ctx context.Context, assets []model.AudioAsset) {
	if m.cache == nil {
		return
	}
	data, err := json.Marshal(assets)
	if err != nil {
		m.logger.Error("Failed to encode POI snapshot", "error", err)
		return
	}
	if err := m.cache.SetCache(ctx, SnapshotKey, data); err != nil {
		m.logger.Warn("Failed to store POI snapshot", "error", err)
	}
}

func (m *Manager) loadSnapshot(ctx context.Context) ([]model.AudioAsset, bool) {
	if m.cache == nil {
		return nil, false
	}
	data, ok := m.cache.GetCache(ctx, SnapshotKey)
	if !ok {
		return nil, false
	}
	var assets []model.AudioAsset
	if err := json.Unmarshal(data, &assets); err != nil {
		m.logger.Warn("Corrupt POI snapshot", "error", err)
		return nil, false
	}
	return assets, true
}

// POIs returns the current set in catalogue order. The slice must not be modified.
func (m *Manager) POIs() []model.POI {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pois
}

// Assets returns the raw catalogue behind the current set, including items without coordinates.
func (m *Manager) Assets() []model.AudioAsset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assets
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pois)
}

// Origin tells where the current set came from: "source", "snapshot" or "none".
func (m *Manager) Origin() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.origin
}

// Get returns the POI with the given id.
func (m *Manager) Get(id int64) (model.POI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byID[id]
	if !ok {
		return model.POI{}, ErrNotFound
	}
	return m.pois[i], nil
}

// FirstPoint returns the center of the first POI, used as the initial simulated position.
func (m *Manager) FirstPoint() (geo.Point, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.pois) == 0 {
		return geo.Point{}, false
	}
	return m.pois[0].Point(), true
}

// SimulatedRange returns the padded bounding box of all POIs.
func (m *Manager) SimulatedRange() (geo.Range, bool) {
	m.mu.RLock()
	pts := make([]geo.Point, len(m.pois))
	for i := range m.pois {
		pts[i] = m.pois[i].Point()
	}
	m.mu.RUnlock()
	return geo.Bounds(pts, SimulatedRangePad)
}

// Nearby is a POI annotated with its distance from a position.
type Nearby struct {
	model.POI
	Distance float64 `json:"distance"`
	Inside   bool    `json:"inside"`
}

// Nearby lists POIs ordered by distance from p, nearest first. limit <= 0 returns all.
func (m *Manager) Nearby(p geo.Point, limit int) []Nearby {
	pois := m.POIs()
	out := make([]Nearby, 0, len(pois))
	for i := range pois {
		d := geo.Distance(p, pois[i].Point())
		out = append(out, Nearby{POI: pois[i], Distance: d, Inside: d <= pois[i].Radius})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
