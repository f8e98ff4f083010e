package poi

import (
	"math"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/model"
)

const (
	// DefaultRadius is the activation distance in meters when an asset carries none.
	DefaultRadius = 50.0
	// DefaultPriorityBase derives priorities from ids so that lower ids rank higher.
	DefaultPriorityBase = 1000
	// NameLen caps the text fallback used as a POI name.
	NameLen = 50
)

// Defaults holds the values applied to assets that omit radius or priority.
type Defaults struct {
	Radius       float64
	PriorityBase int
}

// StandardDefaults returns the stock radius and priority base.
func StandardDefaults() Defaults {
	return Defaults{Radius: DefaultRadius, PriorityBase: DefaultPriorityBase}
}

// FromAsset converts a catalogue item into a POI.
// ok is false when either coordinate is missing; such assets never take part in geofencing.
func FromAsset(a *model.AudioAsset, d Defaults) (p model.POI, ok bool) {
	if a.Latitude == nil || a.Longitude == nil {
		return model.POI{}, false
	}
	if math.IsNaN(*a.Latitude) || math.IsNaN(*a.Longitude) {
		return model.POI{}, false
	}

	return model.POI{
		ID:       a.ID,
		Name:     a.DisplayName(NameLen),
		Lat:      *a.Latitude,
		Lon:      *a.Longitude,
		Radius:   radiusFor(a, d),
		Priority: priorityFor(a, d),
		AudioID:  a.ID,
	}, true
}

// FromAssets converts a catalogue preserving its order and dropping assets without coordinates.
func FromAssets(assets []model.AudioAsset, d Defaults) []model.POI {
	out := make([]model.POI, 0, len(assets))
	for i := range assets {
		if p, ok := FromAsset(&assets[i], d); ok {
			out = append(out, p)
		}
	}
	return out
}

func radiusFor(a *model.AudioAsset, d Defaults) float64 {
	for _, r := range []*float64{a.TriggerRadiusMeters, a.Accuracy} {
		if r != nil && *r > 0 && !math.IsNaN(*r) {
			return *r
		}
	}
	if d.Radius > 0 {
		return d.Radius
	}
	return DefaultRadius
}

func priorityFor(a *model.AudioAsset, d Defaults) int {
	if a.Priority != nil {
		return *a.Priority
	}
	base := d.PriorityBase
	if base == 0 {
		base = DefaultPriorityBase
	}
	return base - int(a.ID)
}
