// Package metrics exposes Prometheus collectors for analysis runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aml"

// Run outcomes used as the status label.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusRejected = "rejected"
)

// Metrics holds the collectors for one registry.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	RingsDetected    *prometheus.CounterVec
	AccountsFlagged  prometheus.Counter
	DetectorDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      "Analysis runs by outcome.",
		}, []string{"status"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of a complete analysis run.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		RingsDetected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rings_detected_total",
			Help:      "Fraud rings detected by pattern type.",
		}, []string{"pattern"}),
		AccountsFlagged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accounts_flagged_total",
			Help:      "Accounts reported with a suspicion score.",
		}),
		DetectorDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detector_duration_seconds",
			Help:      "Wall time of each detector.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"detector"}),
	}
}

// ObserveDetector records one detector's wall time. Safe on a nil receiver.
func (m *Metrics) ObserveDetector(name string, d time.Duration) {
	if m == nil {
		return
	}
	m.DetectorDuration.WithLabelValues(name).Observe(d.Seconds())
}

// ObserveRun records a finished run. rings maps pattern type to count.
func (m *Metrics) ObserveRun(status string, d time.Duration, rings map[string]int, flagged int) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	if status != StatusSuccess {
		return
	}
	m.RunDuration.Observe(d.Seconds())
	for pattern, n := range rings {
		m.RingsDetected.WithLabelValues(pattern).Add(float64(n))
	}
	m.AccountsFlagged.Add(float64(flagged))
}
