package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fazecat/triggerdesk/Internal/handlers"
	"github.com/fazecat/triggerdesk/Internal/utils/config"
	"github.com/fazecat/triggerdesk/Internal/utils/logger"
	"github.com/fazecat/triggerdesk/cmd/api/internal"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../../.env")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := handlers.BuildServices(ctx, cfg, lg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer svc.Close()

	if cfg.API.AdminKey == "" {
		lg.Warn("API_ADMIN_KEY not set, tokens cannot be issued")
	}
	if cfg.Triggers.AutoStart {
		svc.Monitor.Start(ctx)
	}

	api := &internal.API{
		Store:        svc.Store,
		Broker:       svc.Gateway,
		Scanner:      svc.Scanner,
		Executor:     svc.Executor,
		Monitor:      svc.Monitor,
		JWT:          internal.NewJWTManager(cfg.API.JWTSecret, cfg.API.TokenTTL),
		Log:          lg.With(logger.String("component", "api")),
		AdminKey:     cfg.API.AdminKey,
		UniverseFile: cfg.Scan.UniverseFile,
		ExportDir:    cfg.Export.Dir,
		MinBearScore: cfg.Export.MinBearScore,
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           internal.NewRouter(api, svc.Metrics.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Error("api shutdown", logger.Error(err))
		}
	}()

	lg.Info("starting api server", logger.Int("port", cfg.API.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Error("api server failed", logger.Error(err))
	}
}
