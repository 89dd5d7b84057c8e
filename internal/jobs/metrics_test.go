package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, m.Track("scan").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("scan").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("scan", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("scan", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("scan")))

	m.SetLowStock(3)
	m.AddOverdue(2)
	m.AddOverdue(0)
	require.Equal(t, 3.0, testutil.ToFloat64(m.lowStock))
	require.Equal(t, 2.0, testutil.ToFloat64(m.overdue))

	var nilMetrics *Metrics
	require.NoError(t, nilMetrics.Track("scan").End(nil))
	nilMetrics.SetLowStock(1)
}
