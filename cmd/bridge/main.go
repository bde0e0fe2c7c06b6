package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/grimsurvivors/potdhub/bridge"
	"github.com/grimsurvivors/potdhub/config"
	"go.uber.org/zap"
)

// The bridge runs on the game host next to the server process. It owns no
// state of its own: the hub is the source of truth and the log/input files
// are the only contact surface with the game.
func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	b, err := bridge.New(cfg.Bridge, logger)
	if err != nil {
		log.Fatalf("bridge: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Bridge starting",
		zap.String("log_file", cfg.Bridge.LogFile),
		zap.String("input_file", cfg.Bridge.InputFile),
		zap.String("api", cfg.Bridge.APIBaseURL))

	b.Run(ctx)
	logger.Info("Bridge stopped")
}
