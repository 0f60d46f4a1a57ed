package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"coin-chase/internal/client/credentials"
	"coin-chase/internal/client/game"
	"coin-chase/internal/client/session"
	"coin-chase/internal/config"
	"coin-chase/internal/engine/headless"
	"coin-chase/internal/protocol"
	"coin-chase/internal/telemetry"
	"coin-chase/internal/term"
	"coin-chase/logging"
	loggingSinks "coin-chase/logging/sinks"
)

const heartbeatInterval = 2 * time.Second

func main() {
	name := flag.String("name", os.Getenv("USER"), "player name")
	flag.Parse()

	if err := config.LoadEnv(); err != nil {
		log.Fatalf("load .env: %v", err)
	}
	if err := run(*name); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(name string) error {
	cfg := config.ClientFromEnv(os.LookupEnv, telemetry.WrapLogger(log.Default()))

	// The terminal belongs to the game, so logs go to a file.
	if err := os.MkdirAll(cfg.CredentialsDir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", cfg.CredentialsDir, err)
	}
	logFile, err := os.OpenFile(filepath.Join(cfg.CredentialsDir, "client.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open client log: %w", err)
	}
	defer logFile.Close()
	logger := telemetry.WrapLogger(log.New(logFile, "", log.LstdFlags))

	named, err := loggingSinks.FromConfig(cfg.Logging, logFile)
	if err != nil {
		return fmt.Errorf("failed to construct logging sinks: %w", err)
	}
	router := logging.NewRouter(logging.SystemClock, cfg.Logging, named)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
	}()
	publisher := logging.WithFields(router, map[string]any{"side": "client", "player": name})

	codec, err := protocol.CodecByName(cfg.Codec)
	if err != nil {
		return err
	}
	counters := telemetry.NewCounters()
	s := session.New(session.Config{
		URL:               cfg.ServerURL,
		Codec:             codec,
		Credentials:       credentials.NewFileStore(cfg.CredentialsDir),
		Logger:            logger,
		Publisher:         publisher,
		HeartbeatInterval: heartbeatInterval,
	})
	world := headless.NewWorld(headless.MainLevel())
	input := headless.NewInput()
	g := game.New(game.Config{
		Session:   s,
		Engine:    world,
		Input:     input,
		SceneID:   cfg.SceneID,
		Logger:    logger,
		Publisher: publisher,
		Metrics:   counters,
	})
	defer g.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer screen.Fini()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := term.NewRunner(term.Config{
		Screen:   screen,
		Game:     g,
		World:    world,
		Input:    input,
		Username: name,
		Logger:   logger,
	})
	err = runner.Run(ctx)
	logger.Printf("session ended, counters %v", counters.Snapshot())
	return err
}
