package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/netutil"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/logging"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/version"
)

// Handlers groups the local control API handlers. Nil handlers are not mounted.
type Handlers struct {
	Narrator *NarratorHandler
	Position *PositionHandler
	POIs     *POIHandler
	Audio    *AudioHandler
	Config   *ConfigHandler
	Stats    *StatsHandler
}

// NewServer creates the local control server of the narrator.
func NewServer(addr string, h Handlers, shutdown func()) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLog)

	r.Get("/health", handleHealth)
	r.Get("/api/version", handleVersion)
	r.Get("/api/log/latest", handleLatestLog)
	r.Get("/api/log/event", handleLatestEvent)

	if h.Narrator != nil {
		r.Get("/api/narrator/status", h.Narrator.HandleStatus)
		r.Post("/api/narrator/play", h.Narrator.HandlePlay)
		r.Post("/api/narrator/pause", h.Narrator.HandlePause)
		r.Get("/api/narrator/ws", h.Narrator.HandleWebSocket)
	}
	if h.Position != nil {
		r.Get("/api/position", h.Position.HandleStatus)
		r.Post("/api/position/simulated", h.Position.HandleSimulated)
		r.Post("/api/position/mode", h.Position.HandleMode)
		r.Get("/api/position/range", h.Position.HandleRange)
		r.Get("/api/position/stream", h.Position.HandleStream)
	}
	if h.POIs != nil {
		r.Get("/api/pois", h.POIs.HandleList)
		r.Get("/api/pois.geojson", h.POIs.HandleGeoJSON)
		r.Get("/api/pois/nearby", h.POIs.HandleNearby)
		r.Get("/api/pois/in-range", h.POIs.HandleInRange)
	}
	if h.Audio != nil {
		r.Get("/api/audio/status", h.Audio.HandleStatus)
		r.Post("/api/audio/volume", h.Audio.HandleVolume)
	}
	if h.Config != nil {
		r.Get("/api/config", h.Config.HandleGetConfig)
		r.Put("/api/config", h.Config.HandleSetConfig)
	}
	if h.Stats != nil {
		r.Get("/api/stats", h.Stats.ServeHTTP)
	}

	r.Post("/api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Let the response flush first
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return newHTTPServer(addr, r)
}

// NewBackendServer creates the narration backend server.
func NewBackendServer(addr string, b *BackendHandler) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLog)

	r.Get("/health", handleHealth)
	r.Mount("/api/v1", b.Routes())

	return newHTTPServer(addr, r)
}

func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:        addr,
		Handler:     h,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: websocket and audio streams are long-lived.
		IdleTimeout: 60 * time.Second,
	}
}

// Listen opens addr, capping concurrent connections when maxConns > 0.
func Listen(addr string, maxConns int) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}
	return ln, nil
}

func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if logging.RequestLogger != nil {
			logging.RequestLogger.Info("Request Processed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start))
		}
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
