package dbconnect

import (
	"database/sql"
	"fmt"

	"wbcatalog/config"
	"wbcatalog/pkg/dbconnect/dialect"
	"wbcatalog/pkg/dbconnect/postgres"
	"wbcatalog/pkg/dbconnect/sqlite"
	"wbcatalog/pkg/logger"
)

type Database interface {
	Connect() (*sql.DB, error)
	Ping() error
	Dialect() dialect.Dialect
}

// New выбирает подключение по database.driver.
func New(cfg config.DatabaseConfig, log logger.Logger) (Database, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.NewPgConnector(cfg, log), nil
	case config.DriverSQLite:
		return sqlite.NewSQLiteConnector(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
