package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"wbcatalog/config"
	"wbcatalog/internal/catalog/app/web"
	"wbcatalog/internal/catalog/app/web/handlers"
	"wbcatalog/pkg/dbconnect"
	"wbcatalog/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

type CatalogServer struct {
	dbconnect.Database
	cfg *config.AppConfig
	log logger.Logger
}

func NewCatalogServer(connector dbconnect.Database, cfg *config.AppConfig, log logger.Logger) *CatalogServer {
	return &CatalogServer{Database: connector, cfg: cfg, log: log.WithPrefix("[CatalogServer]")}
}

// Run обслуживает HTTP и расписание до отмены ctx.
func (s *CatalogServer) Run(ctx context.Context) error {
	components, err := Bootstrap(s.Database, s.cfg, s.log)
	if err != nil {
		return err
	}
	defer components.DB.Close()

	scheduler, err := NewScheduler(components.Service, s.cfg.Schedule, s.log)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	e := web.NewRouter(
		handlers.NewIngestHandler(components.Service, components.Runs),
		handlers.NewProductHandler(components.Repository).WithRefresher(components.Refresher),
		handlers.NewHealthHandler(components.Repository),
		s.log,
	)

	errCh := make(chan error, 1)
	go func() {
		s.log.Log("Listening on %s", s.cfg.Server.Address)
		errCh <- e.Start(s.cfg.Server.Address)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Log("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
