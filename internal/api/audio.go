package api

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"time"
)

// AudioOutput is the read and volume side of the audio output.
type AudioOutput interface {
	IsPlaying() bool
	Volume() float64
	SetVolume(v float64)
	Position() time.Duration
	Duration() time.Duration
}

// VolumeSettings persists the volume.
type VolumeSettings interface {
	SetVolume(ctx context.Context, v float64) error
}

// AudioHandler handles audio endpoints.
type AudioHandler struct {
	audio    AudioOutput
	settings VolumeSettings
}

// NewAudioHandler creates a new AudioHandler. settings may be nil.
func NewAudioHandler(out AudioOutput, settings VolumeSettings) *AudioHandler {
	return &AudioHandler{audio: out, settings: settings}
}

// AudioVolumeRequest represents a volume change request.
type AudioVolumeRequest struct {
	Volume *float64 `json:"volume"`
}

// AudioStatusResponse represents the audio status.
type AudioStatusResponse struct {
	IsPlaying bool    `json:"is_playing"`
	Volume    float64 `json:"volume"`
	Position  float64 `json:"position"` // seconds
	Duration  float64 `json:"duration"` // seconds
}

// HandleVolume handles POST /api/audio/volume
func (h *AudioHandler) HandleVolume(w http.ResponseWriter, r *http.Request) {
	var req AudioVolumeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Volume == nil || math.IsNaN(*req.Volume) || *req.Volume < 0 {
		writeError(w, http.StatusBadRequest, "volume must be a non-negative number")
		return
	}

	h.audio.SetVolume(*req.Volume)
	if h.settings != nil {
		if err := h.settings.SetVolume(r.Context(), h.audio.Volume()); err != nil {
			slog.Error("Failed to persist volume", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"volume": h.audio.Volume(),
	})
}

// HandleStatus handles GET /api/audio/status
func (h *AudioHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AudioStatusResponse{
		IsPlaying: h.audio.IsPlaying(),
		Volume:    h.audio.Volume(),
		Position:  h.audio.Position().Seconds(),
		Duration:  h.audio.Duration().Seconds(),
	})
}
