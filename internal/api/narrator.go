package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/narrator"
)

// NarratorController defines the narration commands exposed over HTTP.
type NarratorController interface {
	Status() narrator.Status
	PlayPOI(ctx context.Context, id int64) error
	Pause(ctx context.Context) error
}

// NarratorHandler handles narrator control endpoints.
type NarratorHandler struct {
	narrator NarratorController
	upgrader websocket.Upgrader
	// PushInterval is how often the websocket compares and pushes status.
	PushInterval time.Duration

	statusMu   sync.Mutex
	lastStatus *narrator.Status
}

// NewNarratorHandler creates a new NarratorHandler.
func NewNarratorHandler(n NarratorController) *NarratorHandler {
	return &NarratorHandler{
		narrator:     n,
		upgrader:     websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		PushInterval: 500 * time.Millisecond,
	}
}

// PlayRequest is a manual play request. The POI id equals its audio id.
type PlayRequest struct {
	AudioID int64 `json:"audioId"`
}

// HandleStatus handles GET /api/narrator/status
func (h *NarratorHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := h.narrator.Status()

	h.statusMu.Lock()
	if h.lastStatus == nil || h.lastStatus.Playback.State != resp.Playback.State {
		slog.Debug("Narrator state changed", "state", resp.Playback.State)
	}
	stored := resp
	h.lastStatus = &stored
	h.statusMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// HandlePlay handles POST /api/narrator/play
func (h *NarratorHandler) HandlePlay(w http.ResponseWriter, r *http.Request) {
	var req PlayRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	slog.Info("API: manual play", "audio_id", req.AudioID)
	if err := h.narrator.PlayPOI(r.Context(), req.AudioID); err != nil {
		writeError(w, commandStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "loading", "audioId": req.AudioID})
}

// HandlePause handles POST /api/narrator/pause
func (h *NarratorHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	if err := h.narrator.Pause(r.Context()); err != nil {
		writeError(w, commandStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// HandleWebSocket handles GET /api/narrator/ws. It sends the status on connect
// and again whenever it changes, until the client goes away.
func (h *NarratorHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("API: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Reads only detect the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.PushInterval)
	defer ticker.Stop()

	var last *narrator.Status
	for {
		s := h.narrator.Status()
		if last == nil || !reflect.DeepEqual(*last, s) {
			if err := conn.WriteJSON(s); err != nil {
				slog.Debug("API: websocket write failed", "error", err)
				return
			}
			last = &s
		}
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func commandStatus(err error) int {
	switch {
	case errors.Is(err, narrator.ErrUnknownPOI):
		return http.StatusNotFound
	case errors.Is(err, narrator.ErrNotRunning):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
