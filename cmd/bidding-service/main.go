package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"pigeon-auction/internal/api/middleware"
	"pigeon-auction/internal/app"
	"pigeon-auction/internal/config"
	"pigeon-auction/pkg/logger"

	"github.com/gorilla/mux"
)

// bidding-service is the realtime-only gateway: websocket rooms and
// place-bid over the shared store. Run it next to auction-service with
// store.driver=mysql and redis.enabled so storage, locks and bid events
// are shared; the json store only serves a single process.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}
	log := logger.NewWithConfig(cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", "error", err)
	}
	if !cfg.Redis.Enabled {
		log.Warn("Redis disabled; bids placed through other instances will not reach this gateway")
	}
	if cfg.Store.Driver == config.DriverJSON {
		log.Warn("JSON store is single-instance; do not run this gateway next to auction-service on the same file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the sweeper belongs to auction-service
	cfg.Sweeper.Enabled = false
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialise", "error", err)
	}
	defer a.Close()

	router := mux.NewRouter()
	router.Use(middleware.CORS(log))

	ws := a.RealtimeHandler(ctx)
	router.Handle("/ws", ws).Methods(http.MethodGet)
	router.Handle("/api/ws", ws).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	a.StartRelay(ctx)

	server := &http.Server{
		Addr:    cfg.Address(),
		Handler: router,
	}

	go func() {
		log.Info("Starting bidding gateway", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info("Shutting down bidding gateway...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Bidding gateway stopped")
}
