package maintenance

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type jobMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newJobMetrics(reg prometheus.Registerer) *jobMetrics {
	if reg == nil {
		return nil
	}
	f := promauto.With(reg)
	return &jobMetrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walletstore",
			Subsystem: "maintenance",
			Name:      "runs_total",
			Help:      "Maintenance job runs by result.",
		}, []string{"job", "result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "walletstore",
			Subsystem: "maintenance",
			Name:      "duration_seconds",
			Help:      "Maintenance job duration.",
			Buckets:   []float64{.001, .01, .1, .5, 1, 5, 30},
		}, []string{"job"}),
	}
}

func (m *jobMetrics) observe(job string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.runs.WithLabelValues(job, result).Inc()
	m.duration.WithLabelValues(job).Observe(d.Seconds())
}
