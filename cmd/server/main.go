package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/saasgate/internal/logging"
	"github.com/dmitrijs2005/saasgate/internal/server"
	"github.com/dmitrijs2005/saasgate/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger, err := logging.New(cfg.LogBackend, cfg.LogLevel, os.Stdout)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if z, ok := logger.(*logging.ZapLogger); ok {
		defer func() { _ = z.Sync() }()
	}

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "startup failed", "error", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "server failed", "error", err)
		os.Exit(1)
	}
}
