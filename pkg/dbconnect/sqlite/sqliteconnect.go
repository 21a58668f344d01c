package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"wbcatalog/config"
	"wbcatalog/pkg/dbconnect/dialect"
	"wbcatalog/pkg/logger"
)

const memoryPath = ":memory:"

type SQLiteDatabase struct {
	config.DatabaseConfig
	db  *sql.DB
	mu  sync.Mutex
	log logger.Logger
}

func NewSQLiteConnector(dbConfig config.DatabaseConfig, log logger.Logger) *SQLiteDatabase {
	return &SQLiteDatabase{DatabaseConfig: dbConfig, log: log.WithPrefix("[SQLite]")}
}

func (s *SQLiteDatabase) Connect() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	db, err := sql.Open("sqlite3", s.SQLite.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", s.SQLite.Path, err)
	}

	// SQLite пишет в один поток, а у каждого соединения с :memory: своя база
	db.SetMaxOpenConns(1)
	if s.SQLite.Path != memoryPath {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite %s: %w", s.SQLite.Path, err)
	}

	s.log.Log("Opened SQLite database: %s", s.SQLite.Path)
	s.db = db
	return s.db, nil
}

func (s *SQLiteDatabase) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return fmt.Errorf("database connection is not established")
	}
	return s.db.Ping()
}

func (s *SQLiteDatabase) Dialect() dialect.Dialect {
	return dialect.SQLite
}
