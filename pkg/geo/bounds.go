package geo

import (
	"github.com/paulmach/orb"
)

// Range is an axis-aligned lat/lon box, used to bound the simulated position controls.
type Range struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Bounds returns the bounding box of points padded by pad degrees on every side.
// ok is false when points is empty.
func Bounds(points []Point, pad float64) (r Range, ok bool) {
	if len(points) == 0 {
		return Range{}, false
	}

	mp := make(orb.MultiPoint, 0, len(points))
	for _, p := range points {
		mp = append(mp, orb.Point{p.Lon, p.Lat})
	}
	b := mp.Bound().Pad(pad)

	return Range{
		MinLat: b.Min.Lat(),
		MaxLat: b.Max.Lat(),
		MinLon: b.Min.Lon(),
		MaxLon: b.Max.Lon(),
	}, true
}

// Contains reports whether p lies inside the range (edges inclusive).
func (r Range) Contains(p Point) bool {
	return p.Lat >= r.MinLat && p.Lat <= r.MaxLat && p.Lon >= r.MinLon && p.Lon <= r.MaxLon
}

// Center returns the midpoint of the range.
func (r Range) Center() Point {
	return Point{Lat: (r.MinLat + r.MaxLat) / 2, Lon: (r.MinLon + r.MaxLon) / 2}
}
