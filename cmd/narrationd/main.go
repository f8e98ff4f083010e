// Command narrationd serves the narration backend: the POI catalogue, the
// cooldown check, playback logs and the audio clips.
package main

import (
	"context"
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
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/logging"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/store"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/version"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/watcher"
)

var configPath = flag.String("config", "configs/narrationd.yaml", "Path to the config file")

func main() {
	flag.Parse()
	config.LoadEnv(".env")

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Narration backend started", "version", version.Version, "addr", appCfg.Service.Address)

	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbConn.Close()
	st := store.NewSQLiteStore(dbConn)

	if err := maintenance.Run(ctx, st, dbConn, maintenance.Options{
		CataloguePath: appCfg.Service.CataloguePath,
		CacheMaxAge:   time.Duration(appCfg.Service.CacheMaxAge),
		LogMaxAge:     time.Duration(appCfg.Service.LogRetention),
	}); err != nil {
		slog.Error("Maintenance tasks failed", "error", err)
	}

	if interval := time.Duration(appCfg.Service.CatalogueWatch); interval > 0 && appCfg.Service.CataloguePath != "" {
		watchCtx, stopWatch := context.WithCancel(ctx)
		defer stopWatch()
		w := watcher.NewService(appCfg.Service.CataloguePath)
		go w.Run(watchCtx, interval, func(ctx context.Context, path string) {
			if err := maintenance.Run(ctx, st, dbConn, maintenance.Options{CataloguePath: path}); err != nil {
				slog.Error("Catalogue reload failed", "error", err)
			}
		})
	}

	provider := config.NewProvider(appCfg, st)
	svc := gate.NewService(st, provider.GateCooldown)
	h := api.NewBackendHandler(st, svc, audio.NewFileFetcher(appCfg.Service.AudioDir, st))
	srv := api.NewBackendServer(appCfg.Service.Address, h)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	return serve(ctx, srv, appCfg.Server.MaxConns, quit)
}

func serve(ctx context.Context, srv *http.Server, maxConns int, quit chan os.Signal) error {
	ln, err := api.Listen(srv.Addr, maxConns)
	if err != nil {
		return err
	}
	slog.Info("Starting backend", "addr", ln.Addr().String())

	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down backend...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
