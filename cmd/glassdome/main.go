// Command glassdome runs the Overseer: the always-on control plane that
// gates VM-lifecycle requests, drives the four background loops, and
// hosts active Reaper missions.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/glassdome/overseer/internal/adminapi"
	"github.com/glassdome/overseer/internal/config"
	"github.com/glassdome/overseer/internal/telemetry"
	"github.com/glassdome/overseer/internal/wire"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("configuration validation failed: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ov, cleanup, err := wire.InitializeOverseer(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize overseer", zap.Error(err))
	}
	defer cleanup()

	admin := adminapi.NewServer(ov, logger)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Admin.Host, cfg.Admin.Port),
		Handler: admin.Engine(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	overseerDone := make(chan struct{})
	go func() {
		defer close(overseerDone)
		logger.Info("overseer loops starting")
		ov.Run(ctx)
	}()

	go func() {
		logger.Info("admin api listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("admin api failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin api forced shutdown", zap.Error(err))
	}

	ov.Shutdown()
	<-overseerDone
	logger.Info("overseer exited")
}
