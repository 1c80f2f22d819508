package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jwebster45206/inventory-engine/internal/config"
	"github.com/jwebster45206/inventory-engine/internal/handlers"
	"github.com/jwebster45206/inventory-engine/internal/inventory"
	"github.com/jwebster45206/inventory-engine/internal/logger"
	"github.com/jwebster45206/inventory-engine/internal/middleware"
	"github.com/jwebster45206/inventory-engine/internal/services/events"
	"github.com/jwebster45206/inventory-engine/internal/services/queue"
	"github.com/jwebster45206/inventory-engine/internal/storage"
	"github.com/jwebster45206/inventory-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Inventory Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"data_dir", cfg.DataDir,
		"default_grid", []int{cfg.DefaultGridWidth, cfg.DefaultGridHeight})

	store, err := storage.NewRedisStorage(cfg.RedisURL, cfg.DataDir, cfg.SnapshotTTL, log)
	if err != nil {
		log.Error("Failed to configure storage", "error", err)
		os.Exit(1)
	}
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	if err := store.WaitForConnection(storageCtx, 30, 2*time.Second); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	broadcaster := events.NewBroadcaster(store.Client(), log)
	manager := inventory.NewManager(store, broadcaster, log, cfg.DefaultGridWidth, cfg.DefaultGridHeight)

	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(store, log))

	shapesHandler := handlers.NewShapesHandler(log, store)
	mux.Handle("/v1/shapes", shapesHandler)
	mux.Handle("/v1/shapes/", shapesHandler)

	inventoryHandler := handlers.NewInventoryHandler(manager, log)

	// Delivery workers share the manager so queued placements and HTTP
	// placements see the same in-memory inventories.
	var workers []*worker.Worker
	if cfg.WorkerCount > 0 {
		deliveries := queue.NewDeliveryQueue(queue.NewClientFrom(store.Client(), log))
		inventoryHandler.WithQueue(deliveries)
		hostname, _ := os.Hostname()
		for i := 0; i < cfg.WorkerCount; i++ {
			workers = append(workers, worker.New(deliveries, manager, broadcaster, store.Client(), log, fmt.Sprintf("%s-%d", hostname, i)))
		}
	}
	mux.Handle("/v1/inventory", inventoryHandler)
	mux.Handle("/v1/inventory/", inventoryHandler)

	mux.Handle("/v1/events/inventory/", handlers.NewEventsHandler(store.Client(), broadcaster, log))

	handler := middleware.Logger(mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: the SSE endpoint streams indefinitely
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Start(); err != nil {
				log.Error("Worker error", "worker_id", w.ID(), "error", err)
			}
		}()
	}
	log.Info("Delivery workers started", "count", len(workers))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	// Let workers finish the request in hand before the connection closes
	for _, w := range workers {
		w.Stop()
	}
	wg.Wait()

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
