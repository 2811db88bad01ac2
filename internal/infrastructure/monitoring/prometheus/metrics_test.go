package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	m := New()

	m.ReloadsTotal.WithLabelValues("OFAC", "ok").Inc()
	m.RecordsLoaded.WithLabelValues("OFAC").Set(1234)
	m.SkippedEntries.WithLabelValues("UN").Add(3)
	m.MatchesTotal.WithLabelValues("phonetic").Inc()
	m.ScreensTotal.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReloadsTotal.WithLabelValues("OFAC", "ok")))
	assert.Equal(t, 1234.0, testutil.ToFloat64(m.RecordsLoaded.WithLabelValues("OFAC")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SkippedEntries.WithLabelValues("UN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MatchesTotal.WithLabelValues("phonetic")))
}

func TestIsolatedRegistries(t *testing.T) {
	a := New()
	b := New()
	a.ScreensTotal.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.ScreensTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ScreensTotal))
}

func TestHandlerServesExposition(t *testing.T) {
	m := New()
	m.ReloadsTotal.WithLabelValues("EU", "ok").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "amlscreen_reloads_total")
}
