package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// RegionConfig - параметры витрины, без которых поиск WB отдаёт нестабильную выдачу.
type RegionConfig struct {
	Currency string `yaml:"currency" env:"WB_CURRENCY"`
	Dest     string `yaml:"dest" env:"WB_DEST"`
	Regions  string `yaml:"regions" env:"WB_REGIONS"`
	Lang     string `yaml:"lang" env:"WB_LANG"`
	Spp      string `yaml:"spp" env:"WB_SPP"`
}

type WildberriesConfig struct {
	SearchURL          string        `yaml:"search_url" env:"WB_SEARCH_URL"`
	DetailURL          string        `yaml:"detail_url" env:"WB_DETAIL_URL"`
	ProductURLTemplate string        `yaml:"product_url_template" env:"WB_PRODUCT_URL_TEMPLATE"`
	Region             RegionConfig  `yaml:"region"`
	UserAgent          string        `yaml:"user_agent" env:"WB_USER_AGENT"`
	AcceptLanguage     string        `yaml:"accept_language" env:"WB_ACCEPT_LANGUAGE"`
	Referer            string        `yaml:"referer" env:"WB_REFERER"`
	RequestTimeout     time.Duration `yaml:"request_timeout" env:"WB_REQUEST_TIMEOUT"`
	MaxRetries         int           `yaml:"max_retries" env:"WB_MAX_RETRIES"`
	RetryInterval      time.Duration `yaml:"retry_interval" env:"WB_RETRY_INTERVAL"`
	RequestsPerMinute  int           `yaml:"requests_per_minute" env:"WB_REQUESTS_PER_MINUTE"`
}

const (
	PolicySkip      = "skip"
	PolicyOverwrite = "overwrite"
	PolicyAbort     = "abort"
)

type IngestConfig struct {
	DedupPolicy   string        `yaml:"dedup_policy" env:"INGEST_DEDUP_POLICY"`
	OnPageError   string        `yaml:"on_page_error" env:"INGEST_ON_PAGE_ERROR"`
	OnRecordError string        `yaml:"on_record_error" env:"INGEST_ON_RECORD_ERROR"`
	MinDelay      time.Duration `yaml:"min_delay" env:"INGEST_MIN_DELAY"`
	MaxDelay      time.Duration `yaml:"max_delay" env:"INGEST_MAX_DELAY"`
	MaxPages      int           `yaml:"max_pages" env:"INGEST_MAX_PAGES"`
}

type LoggerConfig struct {
	Mode  string `yaml:"mode" env:"LOG_MODE"`
	Level string `yaml:"level" env:"LOG_LEVEL"`
	File  string `yaml:"file" env:"LOG_FILE"`
}

type ServerConfig struct {
	Address string `yaml:"address" env:"SERVER_ADDRESS"`
}

// ScheduleJob - периодический запуск ingest по cron-выражению.
type ScheduleJob struct {
	Spec     string `yaml:"spec"`
	Query    string `yaml:"query"`
	Pages    int    `yaml:"pages"`
	Category string `yaml:"category"`
	Policy   string `yaml:"policy"`
}

type AppConfig struct {
	Wildberries WildberriesConfig `yaml:"wildberries"`
	Database    DatabaseConfig    `yaml:"database"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Logger      LoggerConfig      `yaml:"logger"`
	Server      ServerConfig      `yaml:"server"`
	Schedule    []ScheduleJob     `yaml:"schedule"`
}

func Default() *AppConfig {
	return &AppConfig{
		Wildberries: WildberriesConfig{
			SearchURL:          "https://search.wb.ru/exactmatch/ru/common/v4/search",
			DetailURL:          "https://card.wb.ru/cards/detail",
			ProductURLTemplate: "https://www.wildberries.by/catalog/%d/detail.aspx",
			Region: RegionConfig{
				Currency: "byn",
				Dest:     "-59208",
				Regions:  "80,83,4,64,38,40,33,70,82,69,86,30,85,22,66,31,48,1,68",
				Lang:     "ru",
				Spp:      "0",
			},
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			AcceptLanguage:    "ru-RU,ru;q=0.9,en;q=0.8",
			Referer:           "https://www.wildberries.by/",
			RequestTimeout:    10 * time.Second,
			MaxRetries:        2,
			RetryInterval:     2 * time.Second,
			RequestsPerMinute: 60,
		},
		Database: DatabaseConfig{
			Driver: DriverPostgres,
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     "5432",
				User:     "postgres",
				Password: "postgres",
				DBName:   "postgres",
			},
			SQLite:       SQLiteConfig{Path: "products.db"},
			MaxOpenConns: 20,
			WriteTimeout: 30 * time.Second,
		},
		Ingest: IngestConfig{
			DedupPolicy:   PolicySkip,
			OnPageError:   PolicySkip,
			OnRecordError: PolicySkip,
			MinDelay:      500 * time.Millisecond,
			MaxDelay:      1500 * time.Millisecond,
			MaxPages:      50,
		},
		Logger: LoggerConfig{Mode: "development", Level: "info"},
		Server: ServerConfig{Address: ":8080"},
	}
}

// LoadConfig читает yaml поверх значений по умолчанию, затем применяет .env и
// переменные окружения. Пустое имя файла - только окружение.
func LoadConfig(filename string) (*AppConfig, error) {
	config := Default()

	if filename != "" {
		file, err := os.Open(filename)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(config); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filename, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *AppConfig) Validate() error {
	if !IsDedupPolicy(c.Ingest.DedupPolicy) {
		return fmt.Errorf("ingest.dedup_policy must be %q or %q, got %q", PolicySkip, PolicyOverwrite, c.Ingest.DedupPolicy)
	}
	for name, v := range map[string]string{
		"ingest.on_page_error":   c.Ingest.OnPageError,
		"ingest.on_record_error": c.Ingest.OnRecordError,
	} {
		if v != PolicySkip && v != PolicyAbort {
			return fmt.Errorf("%s must be %q or %q, got %q", name, PolicySkip, PolicyAbort, v)
		}
	}
	if c.Ingest.MinDelay < 0 || c.Ingest.MaxDelay < c.Ingest.MinDelay {
		return fmt.Errorf("ingest delays must satisfy 0 <= min_delay <= max_delay")
	}
	if c.Wildberries.RequestTimeout <= 0 {
		return fmt.Errorf("wildberries.request_timeout must be positive")
	}
	if c.Wildberries.MaxRetries < 0 {
		return fmt.Errorf("wildberries.max_retries must not be negative")
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}
	for i, job := range c.Schedule {
		if job.Spec == "" || job.Query == "" {
			return fmt.Errorf("schedule[%d]: spec and query are required", i)
		}
		if job.Policy != "" && !IsDedupPolicy(job.Policy) {
			return fmt.Errorf("schedule[%d]: unknown policy %q", i, job.Policy)
		}
	}
	return nil
}

func IsDedupPolicy(p string) bool {
	return p == PolicySkip || p == PolicyOverwrite
}
