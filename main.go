package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fazecat/triggerdesk/Internal/handlers"
	"github.com/fazecat/triggerdesk/Internal/utils/config"
	"github.com/fazecat/triggerdesk/Internal/utils/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

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

	if cfg.Triggers.AutoStart {
		svc.Monitor.Start(ctx)
	}

	desk := handlers.NewDesk(cfg, svc.Store, svc.Scanner, svc.Executor, svc.Monitor, os.Stdin, os.Stdout)

	for ctx.Err() == nil {
		switch desk.ShowMenu() {
		case "1":
			desk.HandleImportAndScan(ctx)
		case "2":
			desk.HandleShowScan(ctx)
		case "3":
			desk.HandleLevels(ctx)
		case "4":
			desk.HandleOpenTrade(ctx)
		case "5":
			desk.HandleListTrades(ctx)
		case "6":
			desk.HandleListTriggers(ctx)
		case "7":
			desk.HandleStats(ctx)
		case "8":
			desk.HandleExport(ctx)
		case "9":
			desk.HandleManualTick(ctx)
		case "10":
			desk.HandleMonitorToggle(ctx)
		case "11":
			desk.HandleSettings()
		case "12":
			fmt.Println("Goodbye!")
			return
		default:
			fmt.Println("Invalid choice. Try again.")
		}
	}
}
