package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"coin-chase/internal/config"
	servernet "coin-chase/internal/net"
	"coin-chase/internal/store"
	"coin-chase/internal/telemetry"
	"coin-chase/logging"
	loggingSinks "coin-chase/logging/sinks"
)

type Config struct {
	Logger telemetry.Logger
	Server config.ServerConfig
	// Listener, when set, is served instead of listening on Server.Addr.
	Listener net.Listener
}

// Run serves the authoritative world until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	named, err := loggingSinks.FromConfig(cfg.Server.Logging, os.Stdout)
	if err != nil {
		return fmt.Errorf("failed to construct logging sinks: %w", err)
	}
	router := logging.NewRouter(logging.SystemClock, cfg.Server.Logging, named)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()
	publisher := logging.WithFields(router, map[string]any{"side": "server"})

	counters := telemetry.NewCounters()
	st := store.New(store.Config{Publisher: publisher, Metrics: counters})
	hub := servernet.NewHub(servernet.HubConfig{
		Store:             st,
		Logger:            telemetryLogger,
		Publisher:         publisher,
		Metrics:           counters,
		HeartbeatInterval: cfg.Server.HeartbeatInterval,
		ScheduleInterval:  cfg.Server.ScheduleInterval,
	})
	stop := make(chan struct{})
	go hub.Run(stop)
	defer close(stop)

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		Tokens:    servernet.NewTokens(cfg.Server.TokenSecret),
		Logger:    telemetryLogger,
		Publisher: publisher,
		Counters:  counters,
	})

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
	errCh := make(chan error, 1)
	go func() {
		if cfg.Listener != nil {
			telemetryLogger.Printf("server listening on %s", cfg.Listener.Addr())
			errCh <- srv.Serve(cfg.Listener)
			return
		}
		telemetryLogger.Printf("server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
