package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs: the delayed
// simulated-payment settlements and the weekly reconciliation pass.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	settlements *prometheus.CounterVec
	penalties   prometheus.Counter
	backfills   prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job collectors against the provided registerer.
// A nil registerer falls back to the default Prometheus registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker instruments a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records duration and success/failure for the run, passing err through.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddSettlement counts one settled payment for the given channel.
func (m *Metrics) AddSettlement(method string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(method).Inc()
}

// AddPenalties counts penalties recorded by a reconciliation run.
func (m *Metrics) AddPenalties(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.penalties.Add(float64(count))
}

// AddBackfills counts placeholder saving rows inserted by a reconciliation run.
func (m *Metrics) AddBackfills(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.backfills.Add(float64(count))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jamii_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jamii_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jamii_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jamii_payment_settlements_total",
		Help: "Payments settled through the confirmation paths, by channel.",
	}, []string{"method"})
	penalties := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jamii_penalties_recorded_total",
		Help: "Penalties recorded by the weekly reconciliation pass.",
	})
	backfills := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jamii_savings_backfilled_total",
		Help: "Placeholder saving rows inserted by the weekly reconciliation pass.",
	})
	registerer.MustRegister(runs, failures, duration, settlements, penalties, backfills)
	return &Metrics{
		runs:        runs,
		failures:    failures,
		duration:    duration,
		settlements: settlements,
		penalties:   penalties,
		backfills:   backfills,
	}
}
