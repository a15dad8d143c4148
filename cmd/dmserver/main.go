// Package main is the entry point for the deployment manager server.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sam-dm/deployment-manager/internal/api"
	"github.com/sam-dm/deployment-manager/internal/api/handlers"
	"github.com/sam-dm/deployment-manager/internal/cache"
	"github.com/sam-dm/deployment-manager/internal/config"
	"github.com/sam-dm/deployment-manager/internal/database/postgres"
	"github.com/sam-dm/deployment-manager/internal/service"
	"github.com/sam-dm/deployment-manager/internal/storage"
	"github.com/sam-dm/deployment-manager/internal/storage/artifacts"
	dmmigrations "github.com/sam-dm/deployment-manager/internal/storage/migrations"
	pgstore "github.com/sam-dm/deployment-manager/internal/storage/postgres"
	"github.com/sam-dm/deployment-manager/internal/storage/sqlite"
	"github.com/sam-dm/deployment-manager/pkg/logger"
)

const (
	serviceName    = "deployment-manager-server"
	serviceVersion = "1.0.0"
)

func main() {
	var showVersion = flag.Bool("version", false, "Show version information")
	var configPath = flag.String("config", "", "Path to YAML config file")
	var sqlitePath = flag.String("sqlite", "", "Use an embedded SQLite store at this path instead of PostgreSQL")
	var versionCacheSize = flag.Int("version-cache-size", 256, "Number of active versions to keep in the in-process LRU cache")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", serviceName, serviceVersion)
		os.Exit(0)
	}

	bootstrapLog := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(bootstrapLog)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	slog.SetDefault(log)

	slog.Info("starting deployment manager server",
		"service", serviceName,
		"version", serviceVersion,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := buildStore(ctx, cfg, *sqlitePath, log)
	if err != nil {
		slog.Error("failed to initialize storage backend", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	artifactStore, err := artifacts.New(cfg.Artifact.Dir)
	if err != nil {
		slog.Error("failed to initialize artifact store", "error", err, "dir", cfg.Artifact.Dir)
		os.Exit(1)
	}

	versionCache, err := cache.NewVersionCache(*versionCacheSize)
	if err != nil {
		slog.Error("failed to initialize version cache", "error", err)
		os.Exit(1)
	}

	deployments := service.New(store, artifactStore, versionCache, log)
	h := handlers.NewDeployments(deployments, log)

	routerConfig := api.DefaultRouterConfig(log, h)
	router := api.NewRouter(routerConfig)

	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, promhttp.Handler()).Methods("GET")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited")
}

// buildStore selects and opens the storage backend: an embedded SQLite
// file when -sqlite is given (handy for local/dev use without a
// PostgreSQL server running), PostgreSQL otherwise. For PostgreSQL it also
// runs pending goose migrations; the SQLite store creates its own schema
// when opened.
func buildStore(ctx context.Context, cfg *config.Config, sqlitePath string, log *slog.Logger) (storage.Store, func(), error) {
	if sqlitePath != "" {
		slog.Info("using embedded SQLite store", "path", sqlitePath)
		store, err := sqlite.New(ctx, sqlitePath, log)
		if err != nil {
			return nil, func() {}, fmt.Errorf("opening sqlite store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	}

	slog.Info("connecting to PostgreSQL...")
	pgConfig := cfg.Database.ToPostgresConfig()
	pool := postgres.NewPostgresPool(pgConfig, log)

	if err := pool.Connect(ctx); err != nil {
		return nil, func() {}, fmt.Errorf("connecting to postgres: %w", err)
	}
	slog.Info("connected to PostgreSQL")

	if err := dmmigrations.Up(pool, log); err != nil {
		slog.Warn("continuing with unmigrated schema - manual intervention may be required", "error", err)
	} else {
		slog.Info("database migrations up to date")
	}

	store := pgstore.New(pool)
	closeFn := func() {
		if err := pool.Disconnect(context.Background()); err != nil {
			log.Error("error disconnecting from postgres", "error", err)
		}
	}
	return store, closeFn, nil
}
