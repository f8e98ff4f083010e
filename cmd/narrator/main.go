package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/internal/api"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/audio"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/config"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/db"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/db/maintenance"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/gate"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/geo"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/identity"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/logging"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/metrics"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/narrator"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/playback"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/poi"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/position"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/probe"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/request"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/store"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/telemetry"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/tracker"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/version"
)

const defaultConfigPath = "configs/narrator.yaml"

var (
	configPath = flag.String("config", defaultConfigPath, "Path to the config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	config.LoadEnv(".env")
	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

// services holds what the control API and the lifecycle need after wiring.
type services struct {
	engine   *narrator.Engine
	source   *position.Source
	stream   *position.StreamSensor
	pois     *poi.Manager
	audio    *audio.Manager
	provider *config.UnifiedProvider
	tracker  *tracker.Tracker
	metrics  *metrics.Recorder
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Street food narrator started", "version", version.Version, "gate", appCfg.Gate.Mode, "poi_source", appCfg.POI.Source)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := maintenance.Run(ctx, st, dbConn, maintenance.Options{
		CacheMaxAge: time.Duration(appCfg.Service.CacheMaxAge),
	}); err != nil {
		slog.Error("Maintenance tasks failed", "error", err)
	}

	tr := tracker.New()
	client := newRequestClient(appCfg, st, tr)
	svcs := wire(ctx, appCfg, st, client)
	svcs.tracker = tr

	probes := []probe.Probe{probe.POISet(svcs.pois)}
	if needsBackend(appCfg) {
		probes = append(probes, probe.Backend(client, appCfg.Backend.URL(appCfg.Backend.POIPath), appCfg.Gate.Mode == config.GateRemote))
	}
	if err := probe.AnalyzeResults(probe.Run(ctx, probes)); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	engineDone := make(chan error, 1)
	engineCtx, stopEngine := context.WithCancel(ctx)
	defer stopEngine()
	go func() { engineDone <- svcs.engine.Run(engineCtx) }()

	err = runServer(ctx, appCfg, svcs)

	stopEngine()
	select {
	case engErr := <-engineDone:
		if engErr != nil && !errors.Is(engErr, context.Canceled) {
			slog.Error("Narrator stopped with error", "error", engErr)
		}
	case <-time.After(10 * time.Second):
		slog.Warn("Narrator did not stop in time")
	}
	slog.Info("Street food narrator stopped")
	return err
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

func newRequestClient(cfg *config.Config, cache request.Cacher, tr *tracker.Tracker) *request.Client {
	return request.New(cache, tr, request.ClientConfig{
		Name:       "backend",
		Retries:    cfg.Request.Retries,
		Timeout:    time.Duration(cfg.Request.Timeout),
		BaseDelay:  time.Duration(cfg.Request.Backoff.BaseDelay),
		MaxDelay:   time.Duration(cfg.Request.Backoff.MaxDelay),
		RatePerSec: cfg.Request.RatePerSec,
	})
}

func needsBackend(cfg *config.Config) bool {
	return cfg.POI.Source == config.POIRemote || cfg.Gate.Mode == config.GateRemote
}

// wire builds the narration pipeline: POIs, gate, audio, playback, telemetry,
// position feed and the engine that owns them.
func wire(ctx context.Context, cfg *config.Config, st store.Store, client *request.Client) *services {
	rec := metrics.New(cfg.Metrics.Enabled)
	provider := config.NewProvider(cfg, st)

	poiMgr := poi.NewManager(poiSource(cfg, client, st), st, poi.Defaults{
		Radius:       float64(cfg.Geofence.DefaultRadius),
		PriorityBase: cfg.Geofence.PriorityBase,
	})
	if err := poiMgr.Load(ctx); err != nil {
		slog.Error("No POIs available, automatic narration disabled", "error", err)
	}

	policy := gate.NewPolicy(newGate(cfg, client, st, provider), provider.GateFailurePolicy, rec)

	reporter := telemetry.NewReporter(rec, time.Duration(cfg.Request.Timeout), telemetrySinks(cfg, client, st)...)
	reporter.Title = func(audioID int64) string {
		if p, err := poiMgr.Get(audioID); err == nil {
			return p.Name
		}
		return ""
	}

	audioMgr := audio.New(clipFetcher(cfg, client, st), nil, cfg.Audio.SampleRate)
	audioMgr.SetVolume(provider.Volume(ctx))
	ctrl := playback.NewController(audioMgr)

	sensor, stream := initSensor(cfg, poiMgr)
	mode, err := position.ParseMode(provider.PositionMode(ctx))
	if err != nil {
		mode = position.ModeLive
	}
	src := position.NewSource(sensor, mode)
	if p, ok := startPoint(ctx, provider, poiMgr); ok {
		src.SetSimulated(p)
	}

	engine := narrator.New(narrator.Deps{
		Positions:  src,
		POIs:       poiMgr,
		Gate:       policy,
		Controller: ctrl,
		Identity:   identity.NewProvider(st, cfg.Device.ID),
		Reporter:   reporter,
		Settings:   provider,
		Metrics:    rec,
	})
	audioMgr.SetSink(engine.HandleMedia)

	return &services{
		engine:   engine,
		source:   src,
		stream:   stream,
		pois:     poiMgr,
		audio:    audioMgr,
		provider: provider,
		metrics:  rec,
	}
}

func poiSource(cfg *config.Config, client *request.Client, st store.Store) poi.Source {
	switch cfg.POI.Source {
	case config.POILocal:
		return poi.NewStoreSource(st)
	case config.POIShapefile:
		return poi.NewShapefileSource(cfg.POI.Shapefile)
	default:
		return poi.NewHTTPSource(client, cfg.Backend.URL(cfg.Backend.POIPath))
	}
}

func newGate(cfg *config.Config, client *request.Client, st store.Store, provider *config.UnifiedProvider) gate.Gate {
	switch cfg.Gate.Mode {
	case config.GateLocal:
		return gate.NewService(st, provider.GateCooldown)
	case config.GateOff:
		return gate.Always{}
	default:
		return gate.NewClient(client, cfg.Backend.URL(cfg.Backend.CheckPath))
	}
}

// telemetrySinks writes locally when the gate decides locally, so the cooldown
// sees its own history.
func telemetrySinks(cfg *config.Config, client *request.Client, st store.Store) []telemetry.Sink {
	if cfg.Gate.Mode == config.GateLocal {
		return []telemetry.Sink{telemetry.NewStoreSink(st)}
	}
	return []telemetry.Sink{telemetry.NewHTTPSink(client, cfg.Backend.URL(cfg.Backend.LogPath))}
}

func clipFetcher(cfg *config.Config, client *request.Client, st store.Store) audio.Fetcher {
	if cfg.POI.Source == config.POILocal {
		return audio.NewFileFetcher(cfg.Service.AudioDir, st)
	}
	return audio.NewHTTPFetcher(client, cfg.Backend.AudioURL, cfg.Audio.CacheClips)
}

// startPoint is the stored operator coordinate, else the configured start, else the first POI.
func startPoint(ctx context.Context, provider *config.UnifiedProvider, pois *poi.Manager) (geo.Point, bool) {
	if lat, lon, ok := provider.SimulatedPosition(ctx); ok {
		return geo.Point{Lat: lat, Lon: lon}, true
	}
	return pois.FirstPoint()
}

func runServer(ctx context.Context, cfg *config.Config, svcs *services) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	var stream api.StreamServer
	if svcs.stream != nil {
		stream = svcs.stream
	}
	lastPoint := func() (geo.Point, bool) {
		e, ok := svcs.source.Last()
		return e.Point, ok
	}

	srv := api.NewServer(cfg.Server.Address, api.Handlers{
		Narrator: api.NewNarratorHandler(svcs.engine),
		Position: api.NewPositionHandler(svcs.source, svcs.provider, svcs.pois, stream),
		POIs:     api.NewPOIHandler(svcs.pois, svcs.provider, lastPoint),
		Audio:    api.NewAudioHandler(svcs.audio, svcs.provider),
		Config:   api.NewConfigHandler(svcs.provider, cfg.Gate.Mode),
		Stats:    api.NewStatsHandler(svcs.tracker, svcs.metrics, svcs.pois),
	}, shutdownFunc)

	return runServerLifecycle(ctx, srv, cfg.Server.MaxConns, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, maxConns int, quit chan os.Signal) error {
	ln, err := api.Listen(srv.Addr, maxConns)
	if err != nil {
		return err
	}
	slog.Info("Starting server", "addr", ln.Addr().String())

	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
