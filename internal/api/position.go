package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/geo"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/position"
)

// PositionSource is the operator side of the position feed.
type PositionSource interface {
	SetMode(m position.Mode)
	SetSimulated(p geo.Point)
	Status() position.Status
}

// PositionSettings persists operator choices across restarts.
type PositionSettings interface {
	SetPositionMode(ctx context.Context, mode string) error
	SetSimulatedPosition(ctx context.Context, lat, lon float64) error
}

// RangeProvider returns the area the simulated position controls should cover.
type RangeProvider interface {
	SimulatedRange() (geo.Range, bool)
}

// StreamServer feeds sensor fixes read from a websocket.
type StreamServer interface {
	ServeConn(ctx context.Context, conn *websocket.Conn) error
}

// PositionHandler handles position endpoints.
type PositionHandler struct {
	source   PositionSource
	settings PositionSettings
	ranges   RangeProvider
	stream   StreamServer
	upgrader websocket.Upgrader
}

// NewPositionHandler creates a PositionHandler. settings and stream may be nil.
func NewPositionHandler(src PositionSource, settings PositionSettings, ranges RangeProvider, stream StreamServer) *PositionHandler {
	return &PositionHandler{
		source:   src,
		settings: settings,
		ranges:   ranges,
		stream:   stream,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// SimulatedRequest sets the operator coordinate.
type SimulatedRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// ModeRequest switches between live and simulated positions.
type ModeRequest struct {
	Mode string `json:"mode"`
}

// HandleStatus handles GET /api/position
func (h *PositionHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.source.Status())
}

// HandleSimulated handles POST /api/position/simulated
func (h *PositionHandler) HandleSimulated(w http.ResponseWriter, r *http.Request) {
	var req SimulatedRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Lat == nil || req.Lon == nil {
		writeError(w, http.StatusBadRequest, "lat and lon are required")
		return
	}
	p := geo.Point{Lat: *req.Lat, Lon: *req.Lon}
	if !p.Valid() {
		writeError(w, http.StatusBadRequest, "coordinate out of range")
		return
	}

	h.source.SetSimulated(p)
	if h.settings != nil {
		if err := h.settings.SetSimulatedPosition(r.Context(), p.Lat, p.Lon); err != nil {
			slog.Warn("API: failed to persist simulated position", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, h.source.Status())
}

// HandleMode handles POST /api/position/mode
func (h *PositionHandler) HandleMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mode, err := position.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.source.SetMode(mode)
	if h.settings != nil {
		if err := h.settings.SetPositionMode(r.Context(), string(mode)); err != nil {
			slog.Warn("API: failed to persist position mode", "error", err)
		}
	}
	slog.Info("API: position mode changed", "mode", mode)
	writeJSON(w, http.StatusOK, h.source.Status())
}

// HandleRange handles GET /api/position/range
func (h *PositionHandler) HandleRange(w http.ResponseWriter, r *http.Request) {
	if h.ranges == nil {
		writeError(w, http.StatusNotFound, "no POIs loaded")
		return
	}
	rg, ok := h.ranges.SimulatedRange()
	if !ok {
		writeError(w, http.StatusNotFound, "no POIs loaded")
		return
	}
	writeJSON(w, http.StatusOK, rg)
}

// HandleStream handles GET /api/position/stream, a websocket of live sensor fixes.
func (h *PositionHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if h.stream == nil {
		writeError(w, http.StatusNotFound, "live stream sensor not configured")
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("API: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	slog.Info("API: position stream connected", "remote", r.RemoteAddr)
	if err := h.stream.ServeConn(r.Context(), conn); err != nil {
		slog.Warn("API: position stream ended", "error", err)
		return
	}
	slog.Info("API: position stream closed", "remote", r.RemoteAddr)
}
