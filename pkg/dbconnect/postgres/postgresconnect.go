package postgres

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"wbcatalog/config"
	"wbcatalog/pkg/dbconnect/dialect"
	"wbcatalog/pkg/logger"
)

const maxRetries = 10
const dbMaxOpenConns = 20
const retryDelay = 5 * time.Second

type PostgresDatabase struct {
	config.DatabaseConfig
	db  *sql.DB
	mu  sync.Mutex // Для защиты доступа к db
	log logger.Logger
}

func NewPgConnector(dbConfig config.DatabaseConfig, log logger.Logger) *PostgresDatabase {
	return &PostgresDatabase{DatabaseConfig: dbConfig, log: log.WithPrefix("[Postgres]")}
}

func (pg *PostgresDatabase) Connect() (*sql.DB, error) {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	if pg.db != nil {
		return pg.db, nil
	}

	var err error
	conStr := pg.Postgres.GetConnectionString()
	maxOpen := pg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = dbMaxOpenConns
	}

	for i := 0; i < maxRetries; i++ {
		var db *sql.DB
		db, err = sql.Open("postgres", conStr)
		if err != nil {
			pg.log.Warn("Failed to connect to Postgres (attempt %d/%d): %v, host=%s db=%s", i+1, maxRetries, err, pg.Postgres.Host, pg.Postgres.DBName)
			time.Sleep(retryDelay)
			continue
		}

		db.SetMaxOpenConns(maxOpen)

		if err = db.Ping(); err != nil {
			pg.log.Warn("Failed to ping Postgres db (attempt %d/%d): %v, host=%s db=%s", i+1, maxRetries, err, pg.Postgres.Host, pg.Postgres.DBName)
			db.Close()
			time.Sleep(retryDelay)
			continue
		}

		pg.log.Log("Successfully connected to Postgres: host=%s db=%s", pg.Postgres.Host, pg.Postgres.DBName)
		pg.db = db
		return pg.db, nil
	}
	return nil, err
}

func (pg *PostgresDatabase) Ping() error {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	if pg.db == nil {
		return fmt.Errorf("database connection is not established")
	}

	if err := pg.db.Ping(); err != nil {
		pg.db.Close()
		pg.db = nil
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

func (pg *PostgresDatabase) Dialect() dialect.Dialect {
	return dialect.Postgres
}
