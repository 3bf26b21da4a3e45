package metrics_test

import (
	"strings"
	"testing"

	"github.com/USA-RedDragon/crashula/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	m.IncrementReportsSubmitted(true)
	m.IncrementReportsSubmitted(false)
	m.IncrementReportsSubmitted(false)
	m.IncrementLogins(false)

	expected := `
# HELP crashula_crash_reports_submitted_total The total number of crash report submissions
# TYPE crashula_crash_reports_submitted_total counter
crashula_crash_reports_submitted_total{outcome="created"} 1
crashula_crash_reports_submitted_total{outcome="incremented"} 2
# HELP crashula_logins_total The total number of login attempts
# TYPE crashula_logins_total counter
crashula_logins_total{result="failure"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"crashula_crash_reports_submitted_total", "crashula_logins_total"))
}

func TestNilMetrics(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.IncrementReportsSubmitted(true)
		m.IncrementReportsEdited()
		m.IncrementLogins(false)
		m.IncrementLogsUploaded()
	})
}
