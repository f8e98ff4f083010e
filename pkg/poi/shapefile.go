package poi

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/model"
)

// Shapefile attribute names understood by LoadShapefile. Matching is case-insensitive.
const (
	FieldID       = "ID"
	FieldName     = "NAME"
	FieldText     = "TEXT"
	FieldRadius   = "RADIUS"
	FieldPriority = "PRIORITY"
	FieldFile     = "FILE"
)

// LoadShapefile reads point features as catalogue items. Non-point shapes are skipped.
// Points are expected in WGS84 (X = longitude, Y = latitude).
func LoadShapefile(path string) ([]model.AudioAsset, error) {
	shape, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer shape.Close()

	cols := make(map[string]int)
	for i, f := range shape.Fields() {
		cols[strings.ToUpper(strings.TrimSpace(f.String()))] = i
	}

	var out []model.AudioAsset
	skipped := 0
	for shape.Next() {
		n, p := shape.Shape()
		pt, ok := p.(*shp.Point)
		if !ok {
			skipped++
			continue
		}

		attr := func(name string) string {
			i, ok := cols[name]
			if !ok {
				return ""
			}
			return strings.Trim(shape.ReadAttribute(n, i), " \x00")
		}

		lat, lon := pt.Y, pt.X
		a := model.AudioAsset{
			FoodName:  attr(FieldName),
			Text:      attr(FieldText),
			FileName:  attr(FieldFile),
			Latitude:  &lat,
			Longitude: &lon,
		}
		if id, err := strconv.ParseInt(attr(FieldID), 10, 64); err == nil {
			a.ID = id
		}
		if r, err := strconv.ParseFloat(attr(FieldRadius), 64); err == nil && r > 0 {
			a.TriggerRadiusMeters = &r
		}
		if pr, err := strconv.Atoi(attr(FieldPriority)); err == nil {
			a.Priority = &pr
		}
		out = append(out, a)
	}
	if err := shape.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shapes: %w", err)
	}
	if skipped > 0 {
		slog.Warn("Shapefile: skipped non-point shapes", "path", path, "count", skipped)
	}
	return out, nil
}
