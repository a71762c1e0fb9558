package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// counterValue sums the samples of name whose labels include want.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if v, ok := want[lp.GetName()]; ok && v == lp.GetValue() {
					matched++
				}
			}
			if matched == len(want) {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("activity:record").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("activity:record").End(boom), boom)

	require.Equal(t, 1.0, counterValue(t, reg, "pricebook_jobs_total", map[string]string{"job": "activity:record", "status": "success"}))
	require.Equal(t, 1.0, counterValue(t, reg, "pricebook_jobs_total", map[string]string{"job": "activity:record", "status": "failure"}))
	require.Equal(t, 1.0, counterValue(t, reg, "pricebook_jobs_failures_total", map[string]string{"job": "activity:record"}))
}

func TestAddEntriesIgnoresEmpty(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.AddEntries("pruned", 0)
	m.AddEntries("pruned", 3)
	require.Equal(t, 3.0, counterValue(t, reg, "pricebook_activity_entries_total", map[string]string{"op": "pruned"}))

	var nilMetrics *Metrics
	nilMetrics.AddEntries("pruned", 1)
	require.NoError(t, nilMetrics.Track("x").End(nil))
}
