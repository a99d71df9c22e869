package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("invoice:overdue_sweep").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("invoice:overdue_sweep").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("invoice:overdue_sweep", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("invoice:overdue_sweep", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("invoice:overdue_sweep")))
}

func TestAddItemsIgnoresEmptyRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.AddItems("invoice:overdue_sweep", 0)
	m.AddItems("invoice:overdue_sweep", 3)
	require.Equal(t, 3.0, testutil.ToFloat64(m.items.WithLabelValues("invoice:overdue_sweep")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Track("noop").End(nil))
	m.AddItems("noop", 5)
}
