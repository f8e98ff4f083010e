package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/geo"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/geofence"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/model"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/poi"
)

// POIManager is the read side of the loaded POI set.
type POIManager interface {
	POIs() []model.POI
	Origin() string
	Nearby(p geo.Point, limit int) []poi.Nearby
}

// NearbyLimiter returns the default length of the nearby list.
type NearbyLimiter interface {
	NearbyLimit(ctx context.Context) int
}

// POIHandler handles POI endpoints.
type POIHandler struct {
	pois     POIManager
	limits   NearbyLimiter
	position func() (geo.Point, bool)
}

// NewPOIHandler creates a POIHandler. position returns the current device
// position and is used when a request carries no coordinates.
func NewPOIHandler(pm POIManager, limits NearbyLimiter, position func() (geo.Point, bool)) *POIHandler {
	return &POIHandler{pois: pm, limits: limits, position: position}
}

// POIListResponse is the loaded POI set.
type POIListResponse struct {
	Origin string      `json:"origin"`
	Count  int         `json:"count"`
	POIs   []model.POI `json:"pois"`
}

// HandleList handles GET /api/pois
func (h *POIHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	pois := h.pois.POIs()
	if pois == nil {
		pois = []model.POI{}
	}
	writeJSON(w, http.StatusOK, POIListResponse{Origin: h.pois.Origin(), Count: len(pois), POIs: pois})
}

// HandleGeoJSON handles GET /api/pois.geojson
func (h *POIHandler) HandleGeoJSON(w http.ResponseWriter, r *http.Request) {
	fc := geojson.NewFeatureCollection()
	for _, p := range h.pois.POIs() {
		f := geojson.NewFeature(orb.Point{p.Lon, p.Lat})
		f.ID = p.ID
		f.Properties["name"] = p.Name
		f.Properties["radius"] = p.Radius
		f.Properties["priority"] = p.Priority
		f.Properties["audio_id"] = p.AudioID
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

// HandleNearby handles GET /api/pois/nearby?lat=&lon=&limit=
func (h *POIHandler) HandleNearby(w http.ResponseWriter, r *http.Request) {
	p, ok := h.queryPoint(r)
	if !ok {
		writeError(w, http.StatusConflict, "no position available")
		return
	}

	limit := 0
	if h.limits != nil {
		limit = h.limits.NearbyLimit(r.Context())
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	list := h.pois.Nearby(p, limit)
	writeJSON(w, http.StatusOK, map[string]any{"position": p, "pois": list})
}

// HandleInRange handles GET /api/pois/in-range?lat=&lon=
func (h *POIHandler) HandleInRange(w http.ResponseWriter, r *http.Request) {
	p, ok := h.queryPoint(r)
	if !ok {
		writeError(w, http.StatusConflict, "no position available")
		return
	}
	in := geofence.InRange(p, h.pois.POIs())
	if in == nil {
		in = []model.POI{}
	}
	resp := map[string]any{"position": p, "pois": in}
	if best, ok := geofence.Resolve(p, h.pois.POIs()); ok {
		resp["resolved"] = best
	}
	writeJSON(w, http.StatusOK, resp)
}

// queryPoint reads lat/lon from the query, falling back to the device position.
func (h *POIHandler) queryPoint(r *http.Request) (geo.Point, bool) {
	q := r.URL.Query()
	if q.Has("lat") && q.Has("lon") {
		lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
		lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
		p := geo.Point{Lat: lat, Lon: lon}
		return p, errLat == nil && errLon == nil && p.Valid()
	}
	if h.position == nil {
		return geo.Point{}, false
	}
	return h.position()
}
