package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"fleet-observer/src/classifier"
	"fleet-observer/src/config"
	"fleet-observer/src/confirm"
	"fleet-observer/src/interfaces"
	"fleet-observer/src/logger"
	"fleet-observer/src/registry"
	"fleet-observer/src/server"
	"fleet-observer/src/storage"
	"fleet-observer/src/store"
	"fleet-observer/src/ticks"
	"fleet-observer/src/transport"
	"fleet-observer/src/utils"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.LogLevel, cfg.Name)

	// 2. Shared store (cross-binary state)
	var kv interfaces.IStore

	switch cfg.Store.Backend {
	case "redis":
		kv, err = store.NewRedisStore(cfg.MConfig, appLogger)
		if err != nil {
			appLogger.Critical("Failed to connect to store: %v", err)
		}
	default:
		// Default to the in-process store: single-binary deployments
		// need no external backend.
		mem := store.NewMemoryStore()
		mem.StartJanitor(time.Second)
		kv = mem
	}
	defer kv.Close()

	// 3. Durable storage (audit trail, closed trades, agent sessions)
	var db interfaces.IDatabase

	switch cfg.Storage.DBType {
	case "postgres":
		db, err = storage.NewPostgresDB(cfg.MConfig, appLogger)
	default:
		// Default to SQLite
		db, err = storage.NewAsyncSQLiteDB(cfg.MConfig, appLogger)
	}

	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	if err := db.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
	}
	defer db.Close()

	// 4. Confirmation transport
	var queue interfaces.IQueue

	switch cfg.Queue.Backend {
	case "redis":
		queue, err = transport.NewRedisQueue(cfg.MConfig, appLogger)
		if err != nil {
			appLogger.Critical("Failed to connect to queue: %v", err)
		}
	default:
		queue = transport.NewMemoryQueue(cfg.Queue.BufferSize, time.Duration(cfg.Queue.PollTimeoutMs)*time.Millisecond)
	}
	defer queue.Close()

	// 5. Domain components
	session := utils.NewMarketSession()
	sourceClassifier := classifier.NewSourceClassifier(cfg.Sources)

	processor := ticks.NewProcessor(cfg.MConfig, kv, sourceClassifier, session, appLogger)
	processor.RegisterDetector(ticks.NoopDetector{})

	fleetRegistry := registry.NewRegistry(cfg.MConfig, kv, db, appLogger)
	ingestor := confirm.NewIngestor(cfg.MConfig, kv, queue, db, appLogger)

	var srv interfaces.IBroadcaster = server.NewFastAPIServer(cfg.MConfig, appLogger, processor, fleetRegistry, ingestor)

	// 6. Background loops
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wg := &sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		fleetRegistry.Run(ctx, session)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ingestor.Run(ctx)
	}()

	// Periodic retention pass over durable storage.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := db.CleanupOldData(); err != nil {
					appLogger.Warning("Storage cleanup failed: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// 7. Start Server
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	appLogger.Info("Fleet observer up: %d instruments, %d source profiles", len(cfg.Ingest.Instruments), len(cfg.Sources))

	// 8. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	cancel()
	wg.Wait()
	srv.Stop()
}
