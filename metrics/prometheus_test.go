package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusClass(t *testing.T) {
	for code, want := range map[int]string{
		200: "2xx",
		204: "2xx",
		302: "3xx",
		404: "4xx",
		503: "5xx",
		0:   "unknown",
		700: "unknown",
	} {
		assert.Equal(t, want, StatusClass(code), code)
	}
}

func TestTrackRequest(t *testing.T) {
	counter := httpRequestsTotal.WithLabelValues("GET", "/api/products", "2xx")
	before := testutil.ToFloat64(counter)

	done := TrackRequest("GET", "/api/products")
	assert.Equal(t, float64(1), testutil.ToFloat64(httpInFlight))
	done(http.StatusOK)

	assert.Equal(t, float64(0), testutil.ToFloat64(httpInFlight))
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestMetricsHandlerExposesNamespace(t *testing.T) {
	TrackRequest("GET", "/healthz")(http.StatusOK)
	RecordPersisted("inserted", 2)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `wbcatalog_http_requests_total{method="GET",route="/healthz",status="2xx"}`)
	assert.Contains(t, string(body), `wbcatalog_ingest_records_persisted_total{outcome="inserted"}`)
	assert.Contains(t, string(body), "go_goroutines")
}
