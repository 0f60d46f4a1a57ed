package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"coin-chase/internal/app"
	"coin-chase/internal/config"
	"coin-chase/internal/telemetry"
)

func main() {
	logger := telemetry.WrapLogger(log.Default())
	if err := config.LoadEnv(); err != nil {
		log.Fatalf("load .env: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := app.Config{
		Logger: logger,
		Server: config.ServerFromEnv(os.LookupEnv, logger),
	}
	if err := app.Run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}
