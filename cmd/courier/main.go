package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/samvad-kindle-courier/internal/app"
	"github.com/samvad-hq/samvad-kindle-courier/internal/config"
	"github.com/samvad-hq/samvad-kindle-courier/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "courier start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("courier starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	courier, err := app.NewCourier(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize courier", "error", err.Error())
		return err
	}

	if err := courier.Run(ctx); err != nil {
		return fmt.Errorf("courier run: %w", err)
	}

	return nil
}
