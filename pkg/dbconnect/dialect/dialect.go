package dialect

import (
	"errors"
	"regexp"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const pgUniqueViolation = "23505"

// Dialect - различия SQL между Postgres и SQLite, которые нужны схеме и
// репозиторию. Запросы пишутся в стиле Postgres ($N) и переписываются Rebind.
type Dialect struct {
	Name          string
	IDColumn      string
	TimestampType string
	DecimalType   string
	LikeOperator  string
	numbered      bool
}

var (
	Postgres = Dialect{
		Name:          "postgres",
		IDColumn:      "BIGSERIAL PRIMARY KEY",
		TimestampType: "TIMESTAMPTZ",
		DecimalType:   "NUMERIC(12, 2)",
		LikeOperator:  "ILIKE",
	}
	SQLite = Dialect{
		Name:          "sqlite",
		IDColumn:      "INTEGER PRIMARY KEY AUTOINCREMENT",
		TimestampType: "DATETIME",
		DecimalType:   "NUMERIC",
		LikeOperator:  "LIKE",
		numbered:      true,
	}
)

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// Rebind переводит $1, $2 ... в ?1, ?2 ... для SQLite.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	return placeholderRe.ReplaceAllString(query, "?$1")
}

// IsUniqueViolation - ошибка нарушения уникального индекса любого из драйверов.
func (d Dialect) IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
