package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crashula"

// Metrics counts application events. A nil *Metrics records nothing.
type Metrics struct {
	reportsSubmitted *prometheus.CounterVec
	reportsEdited    prometheus.Counter
	logins           *prometheus.CounterVec
	logsUploaded     prometheus.Counter
}

// NewMetrics registers the collectors with reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		reportsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crash_reports_submitted_total",
			Help:      "The total number of crash report submissions",
		}, []string{"outcome"}),
		reportsEdited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crash_reports_edited_total",
			Help:      "The total number of crash report edits",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "The total number of login attempts",
		}, []string{"result"}),
		logsUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crash_logs_uploaded_total",
			Help:      "The total number of crash log attachments uploaded",
		}),
	}
	metrics.register(reg)
	return metrics
}

func (m *Metrics) register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.reportsSubmitted,
		m.reportsEdited,
		m.logins,
		m.logsUploaded,
	)
}

func (m *Metrics) IncrementReportsSubmitted(created bool) {
	if m == nil {
		return
	}
	outcome := "incremented"
	if created {
		outcome = "created"
	}
	m.reportsSubmitted.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementReportsEdited() {
	if m == nil {
		return
	}
	m.reportsEdited.Inc()
}

func (m *Metrics) IncrementLogins(success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementLogsUploaded() {
	if m == nil {
		return
	}
	m.logsUploaded.Inc()
}
