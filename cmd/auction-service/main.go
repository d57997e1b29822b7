package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pigeon-auction/internal/api/handlers"
	apimw "pigeon-auction/internal/api/middleware"
	"pigeon-auction/internal/app"
	"pigeon-auction/internal/config"
	"pigeon-auction/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}
	log := logger.NewWithConfig(cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", "error", err)
	}
	log.Info("Starting auction service", "config", cfg.GetConfigString())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialise", "error", err)
	}
	defer a.Close()

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}"}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
		},
		MaxAge: 86400,
	}))

	auctionHandler := handlers.NewAuctionHandler(a.Manager, a.Processor, log)
	authn := apimw.Authenticate(a.Resolver, log)
	auctionHandler.Register(e.Group(""), authn)
	auctionHandler.Register(e.Group("/api"), authn)

	ws := echo.WrapHandler(a.RealtimeHandler(ctx))
	e.GET("/ws", ws)
	e.GET("/api/ws", ws)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-service",
			"instance":  cfg.Instance.ID,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	a.StartRelay(ctx)
	if err := a.StartSweeper(ctx); err != nil {
		log.Fatal("Failed to start sweeper", "error", err)
	}

	go func() {
		log.Info("Listening", "address", cfg.Address())
		if err := e.Start(cfg.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	log.Info("Shutting down auction service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// closes websocket pumps before the listener goes away
	cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Auction service stopped")
}
