package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flight-alert-service/internal/app"
	"flight-alert-service/internal/infrastructure/config"
	"flight-alert-service/internal/infrastructure/router"
	"flight-alert-service/internal/interface/api"
	"flight-alert-service/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	// Create logger
	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()
	log.Info("Starting Flight Alert Service", "version", cfg.AppVersion)

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appCtx, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", "error", err)
	}

	// Start price checks in a goroutine
	scheduler := app.NewScheduler(appCtx.Orchestrator, cfg.CheckInterval, log)
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		log.Info("Starting price check scheduler", "interval", cfg.CheckInterval.String())
		scheduler.Start(ctx)
	}()

	// Set up HTTP server for the read API and metrics
	gin.SetMode(gin.ReleaseMode)
	handler := api.NewFlightHandler(appCtx.Prices, appCtx.Locations, appCtx.AlertLog, appCtx.Ping, log)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.NewAPIRouter(handler, appCtx.Registry, log),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	cancel() // Cancel the context to stop the scheduler

	// A running pass still flushes its alerts before returning
	select {
	case <-schedulerDone:
	case <-time.After(45 * time.Second):
		log.Warn("Price check did not stop in time")
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	appCtx.Close(closeCtx)

	log.Info("Flight Alert Service stopped")
}
