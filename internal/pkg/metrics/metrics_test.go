package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCounters(t *testing.T) {
	r := NewRegistry()

	r.IncUploadsCompleted()
	r.IncUploadsCompleted()
	r.ObserveScan("clean")
	r.ObserveScan("infected")
	r.ObserveScan("clean")
	r.IncShareDownloads()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.uploadsCompleted))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.scans.WithLabelValues("clean")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.scans.WithLabelValues("infected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.shareDownloads))
}

func TestRegistryHandler(t *testing.T) {
	r := NewRegistry()
	r.ObserveRequest(http.MethodGet, "/healthz", http.StatusOK, 20*time.Millisecond)

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_request_duration_seconds_count{method="GET",route="/healthz",status_code="200"} 1`)
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.IncUploadsCompleted()
		r.ObserveScan("clean")
		r.ObserveRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	})
}
