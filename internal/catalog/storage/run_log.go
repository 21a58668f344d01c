package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wbcatalog/pkg/dbconnect/dialect"
)

// RunRecord - строка журнала ingest_runs.
type RunRecord struct {
	ID                  int64     `json:"id"`
	Query               string    `json:"query"`
	Policy              string    `json:"policy"`
	Pages               int       `json:"pages"`
	Fetched             int       `json:"fetched"`
	Saved               int       `json:"saved"`
	Inserted            int       `json:"inserted"`
	Updated             int       `json:"updated"`
	Skipped             int       `json:"skipped"`
	Rejected            int       `json:"rejected"`
	Conflicts           int       `json:"conflicts"`
	Failed              int       `json:"failed"`
	NormalizationErrors int       `json:"normalization_errors"`
	PagesFailed         int       `json:"pages_failed"`
	Error               string    `json:"error,omitempty"`
	StartedAt           time.Time `json:"started_at"`
	FinishedAt          time.Time `json:"finished_at"`
}

type RunLog struct {
	db      *sql.DB
	dialect dialect.Dialect
}

func NewRunLog(db *sql.DB, d dialect.Dialect) *RunLog {
	return &RunLog{db: db, dialect: d}
}

func (l *RunLog) Record(ctx context.Context, run RunRecord) (int64, error) {
	var runErr sql.NullString
	if run.Error != "" {
		runErr = sql.NullString{String: run.Error, Valid: true}
	}

	var id int64
	err := l.db.QueryRowContext(ctx, l.dialect.Rebind(`
		INSERT INTO ingest_runs (query, policy, pages, fetched, saved, inserted, updated, skipped,
			rejected, conflicts, failed, normalization_errors, pages_failed, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`),
		run.Query, run.Policy, run.Pages, run.Fetched, run.Saved, run.Inserted, run.Updated, run.Skipped,
		run.Rejected, run.Conflicts, run.Failed, run.NormalizationErrors, run.PagesFailed, runErr,
		run.StartedAt.UTC(), run.FinishedAt.UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to record ingest run: %w", err)
	}
	return id, nil
}

// Recent - последние запуски, новые первыми.
func (l *RunLog) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}
	rows, err := l.db.QueryContext(ctx, l.dialect.Rebind(`
		SELECT id, query, policy, pages, fetched, saved, inserted, updated, skipped,
			rejected, conflicts, failed, normalization_errors, pages_failed, error, started_at, finished_at
		FROM ingest_runs ORDER BY started_at DESC, id DESC LIMIT $1`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingest runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var r RunRecord
		var runErr sql.NullString
		if err := rows.Scan(&r.ID, &r.Query, &r.Policy, &r.Pages, &r.Fetched, &r.Saved, &r.Inserted, &r.Updated,
			&r.Skipped, &r.Rejected, &r.Conflicts, &r.Failed, &r.NormalizationErrors, &r.PagesFailed, &runErr,
			&r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ingest run: %w", err)
		}
		r.Error = runErr.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
