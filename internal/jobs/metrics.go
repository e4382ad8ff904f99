// Package jobmetrics instruments the asynq handlers run by cmd/worker.
package jobmetrics

import (
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Failure reasons. A dropped task will not be retried by asynq.
const (
	ReasonRetry   = "retry"
	ReasonDropped = "dropped"
)

// Metrics holds the worker collectors.
type Metrics struct {
	runs          *prometheus.CounterVec
	failures      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	notifications *prometheus.CounterVec
	cached        *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors on registerer. A nil registerer uses the
// process-wide default, registered once.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker times one task execution.
type Tracker struct {
	metrics *Metrics
	task    string
	start   time.Time
}

// Track starts timing a run of task.
func (m *Metrics) Track(task string) *Tracker {
	return &Tracker{metrics: m, task: task, start: time.Now()}
}

// End records the run and hands err back so handlers can `return t.End(err)`.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.task == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.task, FailureReason(err)).Inc()
	}
	t.metrics.runs.WithLabelValues(t.task, status).Inc()
	t.metrics.duration.WithLabelValues(t.task).Observe(time.Since(t.start).Seconds())
	return err
}

// FailureReason tells retried failures from ones asynq archives right away.
func FailureReason(err error) string {
	if errors.Is(err, asynq.SkipRetry) {
		return ReasonDropped
	}
	return ReasonRetry
}

// Notified counts a notification accepted by the ERP backend.
func (m *Metrics) Notified(document string) {
	if m == nil {
		return
	}
	if document == "" {
		document = "unknown"
	}
	m.notifications.WithLabelValues(document).Inc()
}

// Warmed records how many master-data rows the last refresh cached.
func (m *Metrics) Warmed(accounts, parties, items int) {
	if m == nil {
		return
	}
	m.cached.WithLabelValues("accounts").Set(float64(accounts))
	m.cached.WithLabelValues("parties").Set(float64(parties))
	m.cached.WithLabelValues("items").Set(float64(items))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerdesk_jobs_total",
			Help: "Task executions by task type and status.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerdesk_jobs_failures_total",
			Help: "Failed task executions by task type and whether asynq retries them.",
		}, []string{"job", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledgerdesk_job_duration_seconds",
			Help:    "Task execution time.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"job"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerdesk_notifications_delivered_total",
			Help: "Posted-document notifications delivered to the ERP backend.",
		}, []string{"document"}),
		cached: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledgerdesk_masterdata_cached_rows",
			Help: "Rows cached by the last master-data warm-up.",
		}, []string{"kind"}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration, m.notifications, m.cached)
	return m
}
