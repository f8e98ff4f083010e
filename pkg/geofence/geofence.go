// Package geofence resolves which POI, if any, a position currently activates.
// Every function here is a pure linear scan; it runs on each position fix.
package geofence

import (
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/geo"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/model"
)

// PriorityWeight scales priority above any plausible distance in meters,
// so distance only breaks ties between equal priorities.
const PriorityWeight = 10000.0

// Score ranks a candidate POI at distance d meters. Higher is better.
func Score(p *model.POI, d float64) float64 {
	return float64(p.Priority)*PriorityWeight - d
}

// Contains reports whether pos lies within the POI's radius.
// A POI without coordinates or a NaN position never contains anything.
func Contains(pos geo.Point, p *model.POI) bool {
	if !p.HasCoords() {
		return false
	}
	d := geo.Distance(pos, p.Point())
	return d <= p.Radius
}

// Resolve returns the highest-scoring POI whose radius contains pos.
// Equal scores go to the lower id, whatever the slice order.
func Resolve(pos geo.Point, pois []model.POI) (model.POI, bool) {
	best := -1
	bestScore := 0.0

	for i := range pois {
		p := &pois[i]
		if !p.HasCoords() {
			continue
		}
		d := geo.Distance(pos, p.Point())
		if !(d <= p.Radius) {
			continue
		}
		s := Score(p, d)
		if best < 0 || s > bestScore || (s == bestScore && p.ID < pois[best].ID) {
			best = i
			bestScore = s
		}
	}

	if best < 0 {
		return model.POI{}, false
	}
	return pois[best], true
}

// InRange returns every POI whose radius contains pos, in input order.
// It is for diagnostics and display, never for playback decisions.
func InRange(pos geo.Point, pois []model.POI) []model.POI {
	var out []model.POI
	for i := range pois {
		if Contains(pos, &pois[i]) {
			out = append(out, pois[i])
		}
	}
	return out
}
