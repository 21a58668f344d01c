package app

import (
	"database/sql"
	"fmt"
	"time"

	"wbcatalog/config"
	"wbcatalog/internal/catalog/ingest"
	"wbcatalog/internal/catalog/normalize"
	"wbcatalog/internal/catalog/storage"
	"wbcatalog/internal/wildberries/client"
	catalogmigrations "wbcatalog/migrations/catalog"
	"wbcatalog/pkg/business/service"
	"wbcatalog/pkg/dbconnect"
	"wbcatalog/pkg/logger"
)

// Components - собранный ingest, общий для CLI и HTTP-сервера.
type Components struct {
	DB         *sql.DB
	Repository *storage.ProductRepository
	Runs       *storage.RunLog
	Service    *ingest.Service
	Refresher  *ingest.Refresher
}

// Bootstrap подключается к базе, применяет миграции и связывает компоненты.
func Bootstrap(database dbconnect.Database, cfg *config.AppConfig, log logger.Logger) (*Components, error) {
	db, err := database.Connect()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Database.Driver, err)
	}
	d := database.Dialect()
	if err := catalogmigrations.Apply(db, d, log); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	log.Log("Catalog migrations applied successfully!")

	repo := storage.NewProductRepository(db, d, cfg.Database.WriteTimeout, log)
	fetcher := client.NewFetcher(client.NewSession(cfg.Wildberries), cfg.Wildberries, log)
	normalizer := normalize.NewNormalizer(service.NewTextService(), cfg.Wildberries.ProductURLTemplate)
	pipeline := ingest.NewPipeline(fetcher, normalizer, repo, ingest.OptionsFromConfig(cfg.Ingest, pageTimeout(cfg)), log)

	runs := storage.NewRunLog(db, d)
	svc := ingest.NewService(pipeline, cfg.Ingest.MaxPages, log)
	svc.SetRecorder(runs)

	return &Components{
		DB:         db,
		Repository: repo,
		Runs:       runs,
		Service:    svc,
		Refresher:  ingest.NewRefresher(fetcher, normalizer, repo, pageTimeout(cfg), log),
	}, nil
}

// pageTimeout - все попытки fetch плюс запись пакета.
func pageTimeout(cfg *config.AppConfig) time.Duration {
	wb := cfg.Wildberries
	attempts := time.Duration(wb.MaxRetries + 1)
	return attempts*(wb.RequestTimeout+wb.RetryInterval) + cfg.Database.WriteTimeout
}
