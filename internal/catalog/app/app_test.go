package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wbcatalog/config"
	"wbcatalog/internal/catalog/app/web"
	"wbcatalog/internal/catalog/app/web/handlers"
	"wbcatalog/internal/catalog/ingest"
	"wbcatalog/pkg/dbconnect"
	"wbcatalog/pkg/logger"
)

type countingIngester struct {
	requests []ingest.Request
	err      error
}

func (c *countingIngester) Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error) {
	c.requests = append(c.requests, req)
	return ingest.Result{Query: req.Query}, c.err
}

type panickingIngester struct{}

func (panickingIngester) Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error) {
	panic("boom")
}

// recordingLogger собирает сообщения уровня Error.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Log(format string, v ...interface{}) {}
func (l *recordingLogger) Warn(format string, v ...interface{}) {}
func (l *recordingLogger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, v...))
}
func (l *recordingLogger) SetPrefix(prefix string) {}
func (l *recordingLogger) WithPrefix(extra string) logger.Logger { return l }

func TestSchedulerLogsJobPanics(t *testing.T) {
	log := &recordingLogger{}
	s, err := NewScheduler(panickingIngester{}, []config.ScheduleJob{{Spec: "@hourly", Query: "q"}}, log)
	require.NoError(t, err)

	entries := s.cron.Entries()
	require.Len(t, entries, 1)
	assert.NotPanics(t, entries[0].WrappedJob.Run)

	log.mu.Lock()
	defer log.mu.Unlock()
	require.Len(t, log.errors, 1)
	assert.True(t, strings.Contains(log.errors[0], "panic"), log.errors[0])
	assert.True(t, strings.Contains(log.errors[0], "boom"), log.errors[0])
}

func TestSchedulerRegistersJobs(t *testing.T) {
	ingester := &countingIngester{}
	jobs := []config.ScheduleJob{
		{Spec: "@every 1h", Query: "ноутбук", Pages: 2},
		{Spec: "0 30 3 * * *", Query: "мышь", Policy: config.PolicyOverwrite},
	}

	s, err := NewScheduler(ingester, jobs, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	s.job(jobs[1])()
	require.Len(t, ingester.requests, 1)
	assert.Equal(t, ingest.Request{Query: "мышь", Policy: config.PolicyOverwrite}, ingester.requests[0])
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler(&countingIngester{}, []config.ScheduleJob{{Spec: "every day", Query: "q"}}, logger.NewNop())
	assert.Error(t, err)
}

func TestSchedulerToleratesBusyService(t *testing.T) {
	ingester := &countingIngester{err: ingest.ErrBusy}
	job := config.ScheduleJob{Spec: "@hourly", Query: "q"}
	s, err := NewScheduler(ingester, []config.ScheduleJob{job}, logger.NewNop())
	require.NoError(t, err)

	assert.NotPanics(t, s.job(job))
}

func newSQLiteConfig() *config.AppConfig {
	cfg := config.Default()
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.SQLite.Path = ":memory:"
	return cfg
}

func TestBootstrapWiresRouter(t *testing.T) {
	cfg := newSQLiteConfig()
	log := logger.NewNop()
	database, err := dbconnect.New(cfg.Database, log)
	require.NoError(t, err)

	components, err := Bootstrap(database, cfg, log)
	require.NoError(t, err)
	defer components.DB.Close()

	e := web.NewRouter(
		handlers.NewIngestHandler(components.Service, components.Runs),
		handlers.NewProductHandler(components.Repository).WithRefresher(components.Refresher),
		handlers.NewHealthHandler(components.Repository),
		log,
	)

	for path, status := range map[string]int{
		"/healthz":              http.StatusOK,
		"/api/products":         http.StatusOK,
		"/api/products/stats":   http.StatusOK,
		"/api/products/queries": http.StatusOK,
		"/api/products/export":  http.StatusOK,
		"/api/ingest/runs":      http.StatusOK,
		"/api/products/123":     http.StatusNotFound,
		"/metrics":              http.StatusOK,
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, status, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", nil)
	req.Header.Set("Content-Type", "application/json")
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPageTimeoutCoversRetries(t *testing.T) {
	cfg := config.Default()
	want := 3*(cfg.Wildberries.RequestTimeout+cfg.Wildberries.RetryInterval) + cfg.Database.WriteTimeout
	assert.Equal(t, want, pageTimeout(cfg))
}
