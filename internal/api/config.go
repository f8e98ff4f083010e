package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// RuntimeSettings is the subset of config.Provider the settings endpoint uses.
type RuntimeSettings interface {
	PositionMode(ctx context.Context) string
	AutoGuide(ctx context.Context) bool
	SetAutoGuide(ctx context.Context, on bool) error
	NearbyLimit(ctx context.Context) int
	GateFailurePolicy(ctx context.Context) string
	GateCooldown(ctx context.Context) time.Duration
	Volume(ctx context.Context) float64
}

// ConfigHandler exposes the runtime switches of the narrator.
type ConfigHandler struct {
	settings RuntimeSettings
	gateMode string
}

// NewConfigHandler creates a new ConfigHandler. gateMode is reported as is.
func NewConfigHandler(s RuntimeSettings, gateMode string) *ConfigHandler {
	return &ConfigHandler{settings: s, gateMode: gateMode}
}

// ConfigResponse represents the config API response.
type ConfigResponse struct {
	PositionMode      string  `json:"position_mode"`
	AutoGuide         bool    `json:"auto_guide"`
	NearbyLimit       int     `json:"nearby_limit"`
	GateMode          string  `json:"gate_mode"`
	GateFailurePolicy string  `json:"gate_failure_policy"`
	GateCooldown      string  `json:"gate_cooldown"`
	Volume            float64 `json:"volume"`
}

// ConfigRequest carries the settable fields. Pointers tell false from missing.
type ConfigRequest struct {
	AutoGuide *bool `json:"auto_guide,omitempty"`
}

// HandleGetConfig handles GET /api/config
func (h *ConfigHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.response(r.Context()))
}

// HandleSetConfig handles PUT /api/config
func (h *ConfigHandler) HandleSetConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if req.AutoGuide != nil {
		if err := h.settings.SetAutoGuide(ctx, *req.AutoGuide); err != nil {
			slog.Error("Failed to save auto_guide", "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		slog.Info("API: auto guide switched", "on", *req.AutoGuide)
	}

	writeJSON(w, http.StatusOK, h.response(ctx))
}

func (h *ConfigHandler) response(ctx context.Context) ConfigResponse {
	return ConfigResponse{
		PositionMode:      h.settings.PositionMode(ctx),
		AutoGuide:         h.settings.AutoGuide(ctx),
		NearbyLimit:       h.settings.NearbyLimit(ctx),
		GateMode:          h.gateMode,
		GateFailurePolicy: h.settings.GateFailurePolicy(ctx),
		GateCooldown:      h.settings.GateCooldown(ctx).String(),
		Volume:            h.settings.Volume(ctx),
	}
}
