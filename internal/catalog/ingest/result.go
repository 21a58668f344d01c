package ingest

import (
	"time"

	"wbcatalog/internal/catalog/storage"
)

// Result - сводка одного запуска. Saved = Inserted + Updated.
type Result struct {
	Query               string        `json:"query"`
	Policy              string        `json:"policy"`
	Pages               int           `json:"pages"`
	Fetched             int           `json:"fetched"`
	Saved               int           `json:"saved"`
	Inserted            int           `json:"inserted"`
	Updated             int           `json:"updated"`
	Skipped             int           `json:"skipped"`
	Rejected            int           `json:"rejected"`
	Conflicts           int           `json:"conflicts"`
	Failed              int           `json:"failed"`
	NormalizationErrors int           `json:"normalization_errors"`
	PagesFailed         int           `json:"pages_failed"`
	Warnings            []string      `json:"warnings"`
	Duration            time.Duration `json:"duration"`
}

func (r *Result) addPersisted(p storage.PersistResult) {
	r.Saved += p.Saved()
	r.Inserted += p.Inserted
	r.Updated += p.Updated
	r.Skipped += p.Skipped
	r.Rejected += p.Rejected
	r.Conflicts += p.Conflicts
	r.Failed += p.Failed
}

// Record - строка журнала запусков для этой сводки.
func (r Result) Record(startedAt, finishedAt time.Time, runErr error) storage.RunRecord {
	run := storage.RunRecord{
		Query:               r.Query,
		Policy:              r.Policy,
		Pages:               r.Pages,
		Fetched:             r.Fetched,
		Saved:               r.Saved,
		Inserted:            r.Inserted,
		Updated:             r.Updated,
		Skipped:             r.Skipped,
		Rejected:            r.Rejected,
		Conflicts:           r.Conflicts,
		Failed:              r.Failed,
		NormalizationErrors: r.NormalizationErrors,
		PagesFailed:         r.PagesFailed,
		StartedAt:           startedAt,
		FinishedAt:          finishedAt,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	return run
}
