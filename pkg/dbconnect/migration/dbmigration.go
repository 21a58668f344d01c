package migration

import (
	"database/sql"

	"wbcatalog/pkg/dbconnect/dialect"
)

type MigrationInterface interface {
	UpMigration(db *sql.DB, d dialect.Dialect) error
}
