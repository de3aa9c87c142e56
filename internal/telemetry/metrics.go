package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jobs_enqueued_total", Help: "Jobs created, by kind"},
		[]string{"kind"})
	JobsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jobs_completed_total", Help: "Jobs completed successfully, by kind"},
		[]string{"kind"})
	JobsRetried = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jobs_retried_total", Help: "Jobs rescheduled for retry, by kind"},
		[]string{"kind"})
	JobsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jobs_failed_total", Help: "Jobs completed with a terminal failure, by kind"},
		[]string{"kind"})
	JobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "jobs_inflight", Help: "Jobs currently claimed by this process"})
	StaleJobsReleased = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "jobs_stale_released_total", Help: "Orphaned job claims released by the reaper"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsEnqueued,
			JobsCompleted,
			JobsRetried,
			JobsFailed,
			JobsInFlight,
			StaleJobsReleased,
		)
	})
	return promhttp.Handler()
}
