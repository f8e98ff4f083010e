package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/audio"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/gate"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/model"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/store"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/telemetry"
)

// Pagination defaults of the admin log listing.
const (
	defaultPageSize = 10
	maxPageSize     = 200
)

// BackendStore is the persistence the narration backend serves from.
type BackendStore interface {
	store.AudioStore
	store.NarrationLogStore
}

// ClipLocator finds the file of one audio clip.
type ClipLocator interface {
	Path(ctx context.Context, audioID int64) (path, mimeType string, err error)
}

// BackendHandler serves the narration backend contracts used by the client.
type BackendHandler struct {
	store BackendStore
	gate  gate.Gate
	clips ClipLocator
	now   func() time.Time
}

// NewBackendHandler creates a BackendHandler. clips may be nil, in which case
// the audio endpoint answers 404.
func NewBackendHandler(st BackendStore, g gate.Gate, clips ClipLocator) *BackendHandler {
	return &BackendHandler{store: st, gate: g, clips: clips, now: time.Now}
}

// Envelope wraps every JSON answer of the backend.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error,omitempty"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
}

// PageMeta describes one page of a listing. Page is 1-based.
type PageMeta struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Pages    int `json:"pages"`
	Total    int `json:"total"`
}

// Page is a paginated listing.
type Page struct {
	Meta   PageMeta `json:"meta"`
	Result any      `json:"result"`
}

// Routes returns the backend router, to be mounted under /api/v1.
func (h *BackendHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/app/pois", h.HandlePOIs)
	r.Post("/app/narration/check", h.HandleCheck)
	r.Post("/app/narration/log", h.HandleLog)
	r.Get("/tts/audios/{id}", h.HandleAudio)
	r.Get("/admin/narration-logs", h.HandleLogs)
	return r
}

// HandlePOIs handles GET /app/pois
func (h *BackendHandler) HandlePOIs(w http.ResponseWriter, r *http.Request) {
	assets, err := h.store.ListAudios(r.Context())
	if err != nil {
		slog.Error("Backend: failed to list audios", "error", err)
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	if assets == nil {
		assets = []model.AudioAsset{}
	}
	writeSuccess(w, "POI catalogue", assets)
}

// HandleCheck handles POST /app/narration/check
func (h *BackendHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	var req gate.Request
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DeviceID == "" {
		writeFailure(w, http.StatusBadRequest, "deviceId is required")
		return
	}

	d, err := h.gate.Check(r.Context(), req)
	if err != nil {
		if errors.Is(err, gate.ErrUnknownAudio) {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("Backend: narration check failed", "audio_id", req.AudioID, "error", err)
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Debug("Backend: narration check", "device", req.DeviceID, "audio_id", req.AudioID, "play", d.ShouldPlay)
	writeSuccess(w, "Narration check", d)
}

// HandleLog handles POST /app/narration/log
func (h *BackendHandler) HandleLog(w http.ResponseWriter, r *http.Request) {
	var e telemetry.Entry
	if err := decodeBody(r, &e); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	if e.DeviceID == "" {
		writeFailure(w, http.StatusBadRequest, "deviceId is required")
		return
	}
	if !e.Status.Valid() {
		writeFailure(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", e.Status))
		return
	}
	if e.DurationSeconds != nil && *e.DurationSeconds < 0 {
		writeFailure(w, http.StatusBadRequest, "durationSeconds must not be negative")
		return
	}

	ctx := r.Context()
	if _, err := h.store.GetAudio(ctx, e.AudioID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeFailure(w, http.StatusBadRequest, fmt.Sprintf("%v: %d", gate.ErrUnknownAudio, e.AudioID))
			return
		}
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}

	l := e.Log()
	if e.PlayedAt == 0 {
		l.PlayedAt = h.now()
	}
	l.CreatedAt = h.now().UTC()
	if err := h.store.SaveNarrationLog(ctx, &l); err != nil {
		slog.Error("Backend: failed to save narration log", "error", err)
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, "Narration logged", nil)
}

// HandleAudio handles GET /tts/audios/{id}
func (h *BackendHandler) HandleAudio(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid audio id")
		return
	}
	if h.clips == nil {
		writeFailure(w, http.StatusNotFound, audio.ErrClipNotFound.Error())
		return
	}

	path, mimeType, err := h.clips.Path(r.Context(), id)
	if err != nil {
		if errors.Is(err, audio.ErrClipNotFound) {
			writeFailure(w, http.StatusNotFound, err.Error())
			return
		}
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			writeFailure(w, http.StatusNotFound, fmt.Sprintf("%v: %d", audio.ErrClipNotFound, id))
			return
		}
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", mimeType)
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// HandleLogs handles GET /admin/narration-logs?page=&size=
func (h *BackendHandler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil || page < 1 {
		writeFailure(w, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	size, err := queryInt(r, "size", defaultPageSize)
	if err != nil || size < 1 || size > maxPageSize {
		writeFailure(w, http.StatusBadRequest, fmt.Sprintf("size must be between 1 and %d", maxPageSize))
		return
	}

	logs, total, err := h.store.ListNarrationLogs(r.Context(), (page-1)*size, size)
	if err != nil {
		slog.Error("Backend: failed to list narration logs", "error", err)
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	if logs == nil {
		logs = []model.NarrationLog{}
	}

	writeSuccess(w, "Narration logs", Page{
		Meta: PageMeta{
			Page:     page,
			PageSize: size,
			Pages:    (total + size - 1) / size,
			Total:    total,
		},
		Result: logs,
	})
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return fallback, nil
	}
	return strconv.Atoi(s)
}

func writeSuccess(w http.ResponseWriter, msg string, data any) {
	writeJSON(w, http.StatusOK, Envelope{StatusCode: http.StatusOK, Message: msg, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Envelope{StatusCode: status, Error: http.StatusText(status), Message: msg})
}
