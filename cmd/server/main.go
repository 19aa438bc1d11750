package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dharsanguruparan/LineReport/internal/app"
	"github.com/dharsanguruparan/LineReport/internal/config"
	"github.com/dharsanguruparan/LineReport/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("init backends", "error", err)
	}
	defer a.Close()

	srv, err := a.Server(cfg)
	if err != nil {
		log.Fatal("init server", "error", err)
	}
	if err := srv.Serve(ctx); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
