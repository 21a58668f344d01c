package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wbcatalog/config"
	"wbcatalog/internal/catalog/app"
	"wbcatalog/pkg/dbconnect"
	"wbcatalog/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(logger.Options{Mode: cfg.Logger.Mode, Level: cfg.Logger.Level, File: cfg.Logger.File}, "[Main]")
	defer log.Sync()
	log.Log("Started app")

	database, err := dbconnect.New(cfg.Database, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.NewCatalogServer(database, cfg, log).Run(ctx); err != nil {
		log.Error("server stopped: %v", err)
		return err
	}
	return nil
}
