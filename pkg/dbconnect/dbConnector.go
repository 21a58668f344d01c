package dbconnect

import "database/sql"

// DbConnector - то, что нужно миграциям: только открыть соединение.
type DbConnector interface {
	Connect() (*sql.DB, error)
}
