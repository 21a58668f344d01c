package catalog

import (
	"database/sql"
	"fmt"
	"time"

	"wbcatalog/pkg/dbconnect/dialect"
	"wbcatalog/pkg/dbconnect/migration"
	"wbcatalog/pkg/logger"
)

const (
	SchemaMigrationsTable   = "schema_migrations"
	ProductsTableMigration  = "catalog.products"
	ProductsIndexMigration  = "catalog.products_indexes"
	ProductsSearchMigration = "catalog.products_search_query_idx"
	IngestRunsMigration     = "catalog.ingest_runs"
)

type base struct {
	log logger.Logger
}

// Migrations - все миграции каталога в порядке применения.
func Migrations(log logger.Logger) []migration.MigrationInterface {
	b := base{log: log.WithPrefix("[Migrations]")}
	return []migration.MigrationInterface{
		&MigrationsTable{b},
		&CreateProductsTable{b},
		&CreateProductsIndexes{b},
		&CreateSearchQueryIndex{b},
		&CreateIngestRunsTable{b},
	}
}

// Apply прогоняет миграции; уже применённые пропускаются.
func Apply(db *sql.DB, d dialect.Dialect, log logger.Logger) error {
	for _, m := range Migrations(log) {
		if err := m.UpMigration(db, d); err != nil {
			return err
		}
	}
	return nil
}

type MigrationsTable struct{ base }

func (m *MigrationsTable) UpMigration(db *sql.DB, d dialect.Dialect) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id %s,
			time %s NOT NULL,
			name VARCHAR(255) UNIQUE NOT NULL
		);`, SchemaMigrationsTable, d.IDColumn, d.TimestampType)
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

type CreateProductsTable struct{ base }

func (m *CreateProductsTable) UpMigration(db *sql.DB, d dialect.Dialect) error {
	if ok, err := m.checkAndSkipMigration(db, d, ProductsTableMigration); err != nil {
		return err
	} else if ok {
		return nil
	}
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS products (
		id %[1]s,
		external_id BIGINT NOT NULL,
		name VARCHAR(500) NOT NULL,
		price %[2]s NOT NULL,
		original_price %[2]s NOT NULL,
		rating %[2]s,
		review_count INTEGER NOT NULL DEFAULT 0,
		search_query VARCHAR(200) NOT NULL,
		category VARCHAR(255) NOT NULL DEFAULT 'Unknown',
		canonical_url VARCHAR(500) NOT NULL,
		created_at %[3]s NOT NULL,
		updated_at %[3]s NOT NULL,
		CONSTRAINT products_rating_range CHECK (rating IS NULL OR (rating >= 0 AND rating <= 5)),
		CONSTRAINT products_review_count_positive CHECK (review_count >= 0)
	);`, d.IDColumn, d.DecimalType, d.TimestampType)
	return m.executeAndMarkMigration(db, d, ProductsTableMigration, query)
}

type CreateProductsIndexes struct{ base }

func (m *CreateProductsIndexes) UpMigration(db *sql.DB, d dialect.Dialect) error {
	if ok, err := m.checkAndSkipMigration(db, d, ProductsIndexMigration); err != nil {
		return err
	} else if ok {
		return nil
	}
	return m.executeAndMarkMigration(db, d, ProductsIndexMigration,
		`CREATE UNIQUE INDEX IF NOT EXISTS products_external_id_uidx ON products(external_id);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS products_canonical_url_uidx ON products(canonical_url);`,
		`CREATE INDEX IF NOT EXISTS products_price_idx ON products(price);`,
		`CREATE INDEX IF NOT EXISTS products_rating_idx ON products(rating);`,
		`CREATE INDEX IF NOT EXISTS products_review_count_idx ON products(review_count);`,
		`CREATE INDEX IF NOT EXISTS products_created_at_idx ON products(created_at);`,
	)
}

// CreateSearchQueryIndex - для GET /api/products/queries и фильтра по запросу.
type CreateSearchQueryIndex struct{ base }

func (m *CreateSearchQueryIndex) UpMigration(db *sql.DB, d dialect.Dialect) error {
	if ok, err := m.checkAndSkipMigration(db, d, ProductsSearchMigration); err != nil {
		return err
	} else if ok {
		return nil
	}
	return m.executeAndMarkMigration(db, d, ProductsSearchMigration,
		`CREATE INDEX IF NOT EXISTS products_search_query_idx ON products(search_query);`)
}

// CreateIngestRunsTable - журнал запусков ingest со счётчиками.
type CreateIngestRunsTable struct{ base }

func (m *CreateIngestRunsTable) UpMigration(db *sql.DB, d dialect.Dialect) error {
	if ok, err := m.checkAndSkipMigration(db, d, IngestRunsMigration); err != nil {
		return err
	} else if ok {
		return nil
	}
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS ingest_runs (
		id %[1]s,
		query VARCHAR(200) NOT NULL,
		policy VARCHAR(20) NOT NULL,
		pages INTEGER NOT NULL,
		fetched INTEGER NOT NULL DEFAULT 0,
		saved INTEGER NOT NULL DEFAULT 0,
		inserted INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		rejected INTEGER NOT NULL DEFAULT 0,
		conflicts INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		normalization_errors INTEGER NOT NULL DEFAULT 0,
		pages_failed INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at %[2]s NOT NULL,
		finished_at %[2]s NOT NULL
	);`, d.IDColumn, d.TimestampType)
	return m.executeAndMarkMigration(db, d, IngestRunsMigration, query,
		`CREATE INDEX IF NOT EXISTS ingest_runs_started_at_idx ON ingest_runs(started_at);`)
}

func (b base) checkAndSkipMigration(db *sql.DB, d dialect.Dialect, migrationName string) (bool, error) {
	var migrationExists bool
	query := d.Rebind(fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE name = $1)", SchemaMigrationsTable))
	err := db.QueryRow(query, migrationName).Scan(&migrationExists)
	if err != nil {
		return migrationExists, fmt.Errorf("failed to check migration status: %w", err)
	}
	if migrationExists {
		b.log.Log("Migration '%s' already completed. Skipping.", migrationName)
	}
	return migrationExists, nil
}

// executeAndMarkMigration выполняет запросы и отметку в одной транзакции.
func (b base) executeAndMarkMigration(db *sql.DB, d dialect.Dialect, migrationName string, queries ...string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration '%s': %w", migrationName, err)
	}
	defer tx.Rollback()

	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration '%s': %w", migrationName, err)
		}
	}
	mark := d.Rebind(fmt.Sprintf("INSERT INTO %s (name, time) VALUES ($1, $2)", SchemaMigrationsTable))
	if _, err := tx.Exec(mark, migrationName, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to mark migration '%s' as complete: %w", migrationName, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration '%s': %w", migrationName, err)
	}
	b.log.Log("Migration '%s' completed successfully.", migrationName)
	return nil
}
