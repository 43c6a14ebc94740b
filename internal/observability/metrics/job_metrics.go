package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics captures scheduler job health signals.
type JobMetrics struct {
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobErrors   *prometheus.CounterVec
	jobSkipped  *prometheus.CounterVec
}

var (
	jobMetricsOnce sync.Once
	jobMetrics     *JobMetrics
)

// Jobs returns the singleton job metrics, registering on first use.
func Jobs(reg prometheus.Registerer) *JobMetrics {
	jobMetricsOnce.Do(func() {
		jobMetrics = &JobMetrics{
			jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "atelier",
				Subsystem: "scheduler",
				Name:      "job_runs_total",
				Help:      "Count of scheduler job executions.",
			}, []string{"job"}),
			jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "atelier",
				Subsystem: "scheduler",
				Name:      "job_duration_seconds",
				Help:      "Scheduler job execution latency.",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60},
			}, []string{"job"}),
			jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "atelier",
				Subsystem: "scheduler",
				Name:      "job_errors_total",
				Help:      "Count of scheduler job failures.",
			}, []string{"job"}),
			jobSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "atelier",
				Subsystem: "scheduler",
				Name:      "job_skipped_total",
				Help:      "Count of scheduler runs skipped because the lock was held elsewhere.",
			}, []string{"job"}),
		}
		if reg != nil {
			reg.MustRegister(jobMetrics.jobRuns, jobMetrics.jobDuration, jobMetrics.jobErrors, jobMetrics.jobSkipped)
		}
	})
	return jobMetrics
}

func (m *JobMetrics) IncJobRun(job string) {
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *JobMetrics) ObserveJobDuration(job string, d time.Duration) {
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *JobMetrics) IncJobError(job string) {
	m.jobErrors.WithLabelValues(job).Inc()
}

func (m *JobMetrics) IncJobSkipped(job string) {
	m.jobSkipped.WithLabelValues(job).Inc()
}
