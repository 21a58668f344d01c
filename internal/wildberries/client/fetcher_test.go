package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wbcatalog/config"
	"wbcatalog/internal/wildberries/models"
	"wbcatalog/pkg/logger"
)

func newTestFetcher(t *testing.T, handler http.HandlerFunc) (*Fetcher, *httptest.Server) {
	t.Helper()
	return newTestFetcherWith(t, handler, nil)
}

func newTestFetcherWith(t *testing.T, handler http.HandlerFunc, tune func(*config.WildberriesConfig)) (*Fetcher, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Default().Wildberries
	cfg.SearchURL = server.URL + "/search"
	cfg.DetailURL = server.URL + "/detail"
	cfg.RequestsPerMinute = 0
	cfg.RetryInterval = time.Millisecond
	cfg.RequestTimeout = time.Second
	if tune != nil {
		tune(&cfg)
	}

	session := NewSession(cfg)
	session.SetHTTPClient(server.Client())
	return NewFetcher(session, cfg, logger.NewNop()), server
}

func TestFetchPageSendsPinnedParams(t *testing.T) {
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "1", q.Get("appType"))
		assert.Equal(t, "byn", q.Get("curr"))
		assert.Equal(t, "-59208", q.Get("dest"))
		assert.Equal(t, "catalog", q.Get("resultset"))
		assert.Equal(t, "popular", q.Get("sort"))
		assert.Equal(t, "false", q.Get("suppressSpellcheck"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "ноутбук", q.Get("query"))
		assert.Equal(t, "9492", q.Get("cat"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("Accept-Language"))

		w.Write([]byte(`{"data":{"products":[{"id":1,"name":"a"},42,{"id":2,"name":"b"}]}}`))
	})

	records, err := fetcher.FetchPage(context.Background(), models.SearchParams{Query: "ноутбук", Page: 2, Category: "9492"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, float64(2), records[1]["id"])
}

func TestFetchPageValidatesParams(t *testing.T) {
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := fetcher.FetchPage(context.Background(), models.SearchParams{Query: " ", Page: 1})
	assert.True(t, errors.Is(err, ErrInvalidParams))

	_, err = fetcher.FetchPage(context.Background(), models.SearchParams{Query: "q", Page: 0})
	assert.True(t, errors.Is(err, ErrInvalidParams))
}

func TestFetchPageSchemaErrorReportsKeys(t *testing.T) {
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"state":0,"metadata":{"name":"x"}}`))
	})

	_, err := fetcher.FetchPage(context.Background(), models.SearchParams{Query: "q", Page: 1})
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"metadata", "state"}, schemaErr.Keys)
	assert.Equal(t, "schema", Kind(err))
}

func TestFetchPageUpstreamErrorIsSchemaError(t *testing.T) {
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"bad request","code":400}`))
	})

	_, err := fetcher.FetchPage(context.Background(), models.SearchParams{Query: "q", Page: 1})
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "bad request", schemaErr.UpstreamError)
	assert.Equal(t, float64(400), schemaErr.UpstreamCode)
}

func TestFetchPageDecodeErrorIsNotRetried(t *testing.T) {
	var calls int32
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`<html>captcha</html>`))
	})

	_, err := fetcher.FetchPage(context.Background(), models.SearchParams{Query: "q", Page: 1})
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Contains(t, decodeErr.Snippet, "captcha")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchPageRetriesTransportErrors(t *testing.T) {
	var calls int32
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"data":{"products":[{"id":1}]}}`))
	})

	records, err := fetcher.FetchPage(context.Background(), models.SearchParams{Query: "q", Page: 1})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchPageGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := fetcher.FetchPage(context.Background(), models.SearchParams{Query: "q", Page: 1})
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, http.StatusServiceUnavailable, transportErr.StatusCode)
	// одна попытка + MaxRetries повторов
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchPageClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := fetcher.FetchPage(context.Background(), models.SearchParams{Query: "q", Page: 1})
	assert.Equal(t, "transport", Kind(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchPageRequestTimeoutIsTransportError(t *testing.T) {
	var calls int32
	fetcher, _ := newTestFetcherWith(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.Write([]byte(`{"data":{"products":[]}}`))
	}, func(cfg *config.WildberriesConfig) {
		cfg.RequestTimeout = 50 * time.Millisecond
		cfg.MaxRetries = 1
	})

	start := time.Now()
	_, err := fetcher.FetchPage(context.Background(), models.SearchParams{Query: "q", Page: 1})
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr), "got %v", err)
	assert.Zero(t, transportErr.StatusCode)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchDetail(t *testing.T) {
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/detail", r.URL.Path)
		if r.URL.Query().Get("nm") == "404" {
			w.Write([]byte(`{"data":{"products":[]}}`))
			return
		}
		w.Write([]byte(`{"data":{"products":[{"id":123,"name":"Ноутбук"}]}}`))
	})

	record, ok, err := fetcher.FetchDetail(context.Background(), 123)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ноутбук", record["name"])

	_, ok, err = fetcher.FetchDetail(context.Background(), 404)
	require.NoError(t, err)
	assert.False(t, ok)
}
