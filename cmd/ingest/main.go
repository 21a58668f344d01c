package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"wbcatalog/config"
	"wbcatalog/internal/catalog/app"
	"wbcatalog/internal/catalog/ingest"
	"wbcatalog/pkg/dbconnect"
	"wbcatalog/pkg/logger"
)

type options struct {
	query      string
	pages      int
	category   string
	policy     string
	detail     int64
	configPath string
}

func main() {
	var opts options
	flag.StringVar(&opts.query, "query", "", "search query (required unless -detail is set)")
	flag.IntVar(&opts.pages, "pages", 1, "number of search pages to ingest")
	flag.StringVar(&opts.category, "category", "", "category passed to the search and stored on products")
	flag.StringVar(&opts.policy, "policy", "", "dedup policy: skip or overwrite (default from config)")
	flag.Int64Var(&opts.detail, "detail", 0, "refresh a single product by WB id instead of searching")
	flag.StringVar(&opts.configPath, "config", "", "path to YAML config")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "ingest: %v\n", err)
		os.Exit(1)
	}
}

// run держит все defer: DB.Close и log.Sync выполняются и на ошибке.
func run(opts options) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(logger.Options{Mode: cfg.Logger.Mode, Level: cfg.Logger.Level, File: cfg.Logger.File}, "[Ingest CLI]")
	defer log.Sync()

	database, err := dbconnect.New(cfg.Database, log)
	if err != nil {
		return err
	}
	components, err := app.Bootstrap(database, cfg, log)
	if err != nil {
		return err
	}
	defer components.DB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.detail != 0 {
		result, err := components.Refresher.Refresh(ctx, opts.detail, opts.query, opts.category)
		if err != nil {
			log.Error("refresh failed: %v", err)
			return err
		}
		return printJSON(result)
	}

	result, err := components.Service.Ingest(ctx, ingest.Request{
		Query:    opts.query,
		Pages:    opts.pages,
		Category: opts.category,
		Policy:   opts.policy,
	})
	if printErr := printJSON(result); printErr != nil {
		return printErr
	}
	if err != nil {
		log.Error("ingestion failed: %v", err)
		return err
	}
	return nil
}

func printJSON(v interface{}) error {
	out, err := jsoniter.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
