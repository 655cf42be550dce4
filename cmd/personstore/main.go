package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/personstore/personstore/internal/api"
	"github.com/personstore/personstore/internal/auth"
	"github.com/personstore/personstore/internal/collection"
	"github.com/personstore/personstore/internal/command"
	"github.com/personstore/personstore/internal/config"
	"github.com/personstore/personstore/internal/health"
	"github.com/personstore/personstore/internal/metrics"
	"github.com/personstore/personstore/internal/router"
	"github.com/personstore/personstore/internal/server"
	"github.com/personstore/personstore/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "configs/personstore.yaml", "path to configuration file")
	flag.Parse()

	slog.Info("personstore starting...")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded", "path", *configPath, "db", cfg.DB.Redacted().URL())

	// Connect to PostgreSQL and bootstrap the schema. The process refuses
	// to start without a working store; the collection is useless empty.
	ctx := context.Background()
	db, err := store.Open(ctx, cfg.DB)
	if err != nil {
		slog.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "err", err)
		os.Exit(1)
	}

	coll, err := collection.Load(ctx, db)
	if err != nil {
		slog.Error("failed to load collection", "err", err)
		os.Exit(1)
	}

	// Initialize components
	m := metrics.New()
	m.ObserveCollectionSize(coll.Len)
	credSvc := auth.NewService(db)
	rtr := router.New(command.NewRegistry(coll), credSvc)
	hc := health.NewChecker(db, m, cfg.HealthCheck)
	hc.Start()

	// Start TCP server
	srv := server.New(rtr, m, *cfg)
	if err := srv.Listen(cfg.Listen.Port); err != nil {
		slog.Error("failed to start server", "err", err)
		os.Exit(1)
	}

	// Start admin API
	apiServer := api.NewServer(credSvc, coll, db, hc, m, *cfg)
	if err := apiServer.Start(cfg.Listen.APIPort); err != nil {
		slog.Error("failed to start API server", "err", err)
		os.Exit(1)
	}

	// Config hot-reload covers the runtime-safe tunables: health-check
	// cadence and the admin API key. Listener port, pool sizes and DB
	// coordinates are fixed for the process lifetime.
	configWatcher, err := config.NewWatcher(*configPath, func(newCfg *config.Config) {
		hc.UpdateConfig(newCfg.HealthCheck)
		apiServer.UpdateAPIKey(newCfg.Listen.APIKey)
		if newCfg.Listen.Port != cfg.Listen.Port || newCfg.Pools != cfg.Pools || newCfg.DB != cfg.DB {
			slog.Warn("listener, pool or db changes in reloaded config require a restart")
		}
	})
	if err != nil {
		slog.Warn("config hot-reload not available", "err", err)
	}

	slog.Info("personstore ready",
		"port", cfg.Listen.Port,
		"api_port", cfg.Listen.APIPort,
		"collection_size", coll.Len())

	// Wait for a shutdown signal or a console exit
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	consoleCh := make(chan struct{})
	go runConsole(coll, consoleCh)

	select {
	case sig := <-sigCh:
		slog.Info("received signal, shutting down...", "signal", sig)
	case <-consoleCh:
		slog.Info("console exit, shutting down...")
	}

	// Graceful shutdown with timeout
	done := make(chan struct{})
	go func() {
		if configWatcher != nil {
			configWatcher.Stop()
		}
		apiServer.Stop()
		srv.Stop()
		hc.Stop()
		db.Close()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("personstore stopped")
	case <-time.After(shutdownTimeout):
		slog.Error("shutdown timed out, forcing exit", "timeout", shutdownTimeout)
		os.Exit(1)
	}
}

// runConsole reads operator commands from stdin. Every mutation already
// goes through the store, so save only reports; exit stops the process.
func runConsole(coll *collection.Collection, exitCh chan<- struct{}) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "":
		case "save":
			fmt.Printf("Collection saved. (%d persons)\n", coll.Len())
		case "exit":
			fmt.Println("Exiting...")
			close(exitCh)
			return
		default:
			fmt.Println("Unknown command")
		}
	}
}
