package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/claimdesk/internal/core"
)

func newMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestImportFinished(t *testing.T) {
	m := newMetrics(t)

	m.ImportFinished(&core.ImportReport{
		Mode:           core.ModeOverwrite,
		Started:        time.Unix(1700000000, 0),
		Duration:       2 * time.Second,
		Created:        3,
		Updated:        1,
		Linked:         2,
		SkippedClaims:  1,
		MissingParents: 1,
		Committed:      true,
	}, nil)
	m.ImportFinished(&core.ImportReport{Mode: core.ModeAppend, Created: 5}, assert.AnError)
	m.ImportFinished(nil, core.ErrImportBusy)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.importsTotal.WithLabelValues("overwrite", "committed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.importsTotal.WithLabelValues("append", "aborted")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.importRecordsTotal.WithLabelValues("created")), "aborted imports add no records")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.importRecordsTotal.WithLabelValues("missing_parent")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.importsRejected))
	assert.Equal(t, float64(1700000002), testutil.ToFloat64(m.lastImportSuccess))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := newMetrics(t)
	m.RecordHTTPRequest(http.MethodGet, "/claims", http.StatusOK, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `claimdesk_http_requests_total{method="GET",route="/claims",status_code="200"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}

func TestNewRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}
