package config

import (
	"fmt"
	"time"
)

type DbConfig interface {
	GetConnectionString() string
}

// PostgresConfig represents the configuration needed to connect to a PostgreSQL database
type PostgresConfig struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST"`
	Port     string `yaml:"port" env:"POSTGRES_PORT"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	DBName   string `yaml:"dbname" env:"POSTGRES_NAME"`
	SSLMode  string `yaml:"sslmode" env:"POSTGRES_SSLMODE"`
}

func (pc *PostgresConfig) GetConnectionString() string {
	sslMode := pc.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, sslMode)
}

// SQLiteConfig - встроенное хранилище; ":memory:" подходит для тестов.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"SQLITE_PATH"`
}

func (sc *SQLiteConfig) GetConnectionString() string {
	if sc.Path == ":memory:" {
		return sc.Path
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000", sc.Path)
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver       string         `yaml:"driver" env:"DB_DRIVER"`
	Postgres     PostgresConfig `yaml:"postgres"`
	SQLite       SQLiteConfig   `yaml:"sqlite"`
	MaxOpenConns int            `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	WriteTimeout time.Duration  `yaml:"write_timeout" env:"DB_WRITE_TIMEOUT"`
}

func (dc *DatabaseConfig) GetConnectionString() string {
	if dc.Driver == DriverSQLite {
		return dc.SQLite.GetConnectionString()
	}
	return dc.Postgres.GetConnectionString()
}
