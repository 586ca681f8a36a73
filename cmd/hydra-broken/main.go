package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nixpkgs-broken/hydrawatch/internal/app"
	"github.com/nixpkgs-broken/hydrawatch/internal/config"
	"github.com/nixpkgs-broken/hydrawatch/internal/logger"
	"github.com/nixpkgs-broken/hydrawatch/pkg/telemetry"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "hydra-broken: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	shutdown, err := telemetry.InitTracer("hydra-broken", cfg.TracingEnabled)
	if err != nil {
		log.WarnObj("tracing disabled", "error", err.Error())
	}
	defer shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	breaker, err := app.NewBreaker(cfg, log)
	if err != nil {
		return err
	}
	return breaker.Run(ctx, os.Stdout)
}
