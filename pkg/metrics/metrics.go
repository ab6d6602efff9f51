// Package metrics holds the Prometheus collectors shared by the store, the
// reminder scheduler and the background jobs. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "radar"

// Metrics groups the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Mutations           *prometheus.CounterVec
	PersistenceFailures *prometheus.CounterVec
	RemindersScheduled  prometheus.Counter
	RemindersCancelled  prometheus.Counter
	ReminderFailures    *prometheus.CounterVec
	ActiveSubscriptions prometheus.Gauge
	PushSent            *prometheus.CounterVec
	DigestRuns          *prometheus.CounterVec
}

// New creates the collectors and registers them with Go runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_mutations_total",
			Help:      "Subscription store mutations by operation.",
		}, []string{"op"}),
		PersistenceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_persistence_failures_total",
			Help:      "Failed blob writes by operation.",
		}, []string{"op"}),
		RemindersScheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_scheduled_total",
			Help:      "Reminder triggers submitted to the notification facility.",
		}),
		RemindersCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_cancelled_total",
			Help:      "Reminder triggers cancelled at the notification facility.",
		}),
		ReminderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_failures_total",
			Help:      "Reminder submissions or cancellations that failed after retries.",
		}, []string{"op"}),
		ActiveSubscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_subscriptions",
			Help:      "Subscriptions currently in the active status.",
		}),
		PushSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_notifications_total",
			Help:      "Push notifications sent by result.",
		}, []string{"result"}),
		DigestRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digest_runs_total",
			Help:      "Background digest job runs by job and result.",
		}, []string{"job", "result"}),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncMutation(op string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(op).Inc()
}

func (m *Metrics) IncPersistenceFailure(op string) {
	if m == nil {
		return
	}
	m.PersistenceFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) AddRemindersScheduled(n int) {
	if m == nil {
		return
	}
	m.RemindersScheduled.Add(float64(n))
}

func (m *Metrics) IncRemindersCancelled() {
	if m == nil {
		return
	}
	m.RemindersCancelled.Inc()
}

func (m *Metrics) IncReminderFailure(op string) {
	if m == nil {
		return
	}
	m.ReminderFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) SetActiveSubscriptions(n int) {
	if m == nil {
		return
	}
	m.ActiveSubscriptions.Set(float64(n))
}

func (m *Metrics) IncPushSent(result string) {
	if m == nil {
		return
	}
	m.PushSent.WithLabelValues(result).Inc()
}

func (m *Metrics) IncDigestRun(job, result string) {
	if m == nil {
		return
	}
	m.DigestRuns.WithLabelValues(job, result).Inc()
}
