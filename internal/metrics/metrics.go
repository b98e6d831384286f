// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hillmyna"

// Login outcomes
const (
	OutcomePassed   = "passed"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics groups the service collectors.
type Metrics struct {
	loginAttempts     *prometheus.CounterVec
	azureRequests     *prometheus.CounterVec
	azureDuration     *prometheus.HistogramVec
	challengesIssued  prometheus.Counter
	enrollJobsTotal   *prometheus.CounterVec
	enrollQueueLength prometheus.Gauge
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is what tests and the CLI use.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		loginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_attempts_total",
				Help:      "Total number of login attempts by outcome",
			},
			[]string{"outcome"}, // passed, rejected, error
		),
		azureRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "azure_requests_total",
				Help:      "Total number of Azure REST calls",
			},
			[]string{"op", "status"},
		),
		azureDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "azure_request_duration_seconds",
				Help:      "Duration of Azure REST calls in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"op"},
		),
		challengesIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "challenges_issued_total",
				Help:      "Total number of login challenges issued",
			},
		),
		enrollJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enroll_jobs_total",
				Help:      "Total number of finished enrollment jobs",
			},
			[]string{"status"},
		),
		enrollQueueLength: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "enroll_queue_length",
				Help:      "Number of enrollment jobs waiting for a worker",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.collectors()...)
	}
	return m
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.loginAttempts,
		m.azureRequests,
		m.azureDuration,
		m.challengesIssued,
		m.enrollJobsTotal,
		m.enrollQueueLength,
	}
}

// LoginAttempt counts a login by outcome.
func (m *Metrics) LoginAttempt(outcome string) {
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

// ChallengeIssued counts an issued challenge.
func (m *Metrics) ChallengeIssued() {
	m.challengesIssued.Inc()
}

// AzureRequest records one Azure call. Its signature matches azure.Observer.
func (m *Metrics) AzureRequest(op string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.azureRequests.WithLabelValues(op, label).Inc()
	m.azureDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// EnrollJobFinished counts a finished enrollment job by final status.
func (m *Metrics) EnrollJobFinished(status string) {
	m.enrollJobsTotal.WithLabelValues(status).Inc()
}

// SetEnrollQueueLength reports the enrollment backlog.
func (m *Metrics) SetEnrollQueueLength(n int) {
	m.enrollQueueLength.Set(float64(n))
}
