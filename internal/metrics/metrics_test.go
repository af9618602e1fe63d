package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveDefinition("live", ResultOK)
	m.ObserveDefinition("live", ResultOK)
	m.ObserveDefinition("final", ResultError)
	m.ObserveList(ResultNotFound)
	m.ObserveFill("bars")

	require.Equal(t, 2.0, testutil.ToFloat64(m.definitions.WithLabelValues("live", ResultOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.definitions.WithLabelValues("final", ResultError)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.bucketLists.WithLabelValues(ResultNotFound)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.fillEmits.WithLabelValues("bars")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveDefinition("live", ResultOK)
		m.ObserveList(ResultOK)
		m.ObserveFill("bars")
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveList(ResultOK)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `bucket_list_total{result="ok"} 1`)
}
