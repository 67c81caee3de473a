// Power Control Center - home climate-control supervisor
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NotCoffee418/power-control-center/internal/application/acexec"
	"github.com/NotCoffee418/power-control-center/internal/application/causes"
	"github.com/NotCoffee418/power-control-center/internal/application/collector"
	"github.com/NotCoffee418/power-control-center/internal/application/engine"
	"github.com/NotCoffee418/power-control-center/internal/application/observer"
	"github.com/NotCoffee418/power-control-center/internal/application/planner"
	"github.com/NotCoffee418/power-control-center/internal/application/snapshot"
	"github.com/NotCoffee418/power-control-center/internal/config"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/accontrol"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/api/rest"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/logger"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/meteo"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/smartmeter"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/storage"
	"github.com/NotCoffee418/power-control-center/migrations"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(config.Path(configPath))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logger.SetDefault(appLogger)

	appLogger.Info("starting power control center",
		"listen", fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort),
		"devices", cfg.Devices(),
	)

	db, err := storage.NewDB(&storage.Config{
		Path:  cfg.DatabasePath,
		Debug: cfg.Logging.Level == "debug",
	})
	if err != nil {
		appLogger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer storage.Close(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	migrator, err := storage.NewMigrator(db, migrations.FS)
	if err != nil {
		appLogger.Error("failed to create migrator", "error", err)
		os.Exit(1)
	}
	if err := migrator.Up(ctx); err != nil {
		appLogger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Repositories
	actionRepo := storage.NewActionRepository(db)
	causeRepo := storage.NewCauseReasonRepository(db)
	nodesetRepo := storage.NewNodesetRepository(db)
	settingsRepo := storage.NewSettingsRepository(db)

	// Cause-reasons registry
	causeRegistry := causes.NewRegistry(causeRepo)
	if err := causeRegistry.Load(ctx); err != nil {
		appLogger.Error("failed to load cause reasons", "error", err)
		os.Exit(1)
	}

	// Node registry
	nodeRegistry := engine.NewRegistry(cfg.Devices(), causeRegistry.List(true))
	causeRegistry.Subscribe(func() {
		nodeRegistry.ReloadCauses(causeRegistry.List(true))
	})

	// Device control and the executor
	bridgeClient := accontrol.NewClient(cfg.ACControllerEndpoints)
	executor := acexec.NewExecutor(bridgeClient, appLogger)
	pir := acexec.NewPirLockout(cfg.PirTimeout())

	// Input snapshot provider and collectors
	provider := snapshot.NewProvider(snapshot.DefaultTTLs(), pir, executor.Active)
	collectors := collector.NewRunner(collector.Config{
		Logger:   appLogger,
		Provider: provider,
		Devices:  cfg.Devices(),
		Meter:    smartmeter.NewClient(cfg.SmartMeterAPIEndpoint),
		Weather:  meteo.NewClient("", cfg.Latitude, cfg.Longitude),
		Bridges:  bridgeClient,
		Settings: settingsRepo,
	})

	// Planner driver
	driver := planner.NewDriver(planner.Config{
		Logger:   appLogger,
		Devices:  cfg.Devices(),
		Interval: cfg.TickInterval(),
		Provider: provider,
		Registry: nodeRegistry,
		Causes:   causeRegistry,
		Executor: executor,
		Pir:      pir,
		Nodesets: nodesetRepo,
		Settings: settingsRepo,
		Actions:  actionRepo,
	})

	// Change broadcasts to open editors
	events := observer.NewManager(appLogger)
	hub := observer.NewWebSocketHub(appLogger)
	if err := events.Register(hub); err != nil {
		appLogger.Error("failed to register websocket hub", "error", err)
		os.Exit(1)
	}
	causeRegistry.Subscribe(func() {
		events.Notify(ctx, observer.Event{
			Type:      observer.EventCausesUpdated,
			Timestamp: time.Now(),
		})
	})

	// HTTP surface
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := rest.NewRouter(rest.RouterConfig{
		PirAPIKey: cfg.PirAPIKey,
		Registry:  nodeRegistry,
		Hub:       hub,
		Pir:       rest.NewPirHandlers(driver, cfg.Devices(), appLogger),
		Evaluate:  rest.NewEvaluateHandlers(nodeRegistry, provider, nodesetRepo, settingsRepo, appLogger),
		Nodesets:  rest.NewNodesetHandlers(nodesetRepo, settingsRepo, nodeRegistry, driver, events, appLogger),
		Causes:    rest.NewCauseHandlers(causeRegistry, events, appLogger),
		Actions:   rest.NewActionHandlers(actionRepo, appLogger),
		Settings:  rest.NewSettingHandlers(settingsRepo, driver, cfg.Devices(), appLogger),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// Start the long-running tasks
	collectors.Start(ctx)
	driver.Start(ctx)

	go func() {
		appLogger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("http server failed", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		appLogger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	cancel()
	driver.Stop()
	collectors.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("http shutdown failed", "error", err)
	}

	appLogger.Info("stopped")
}
