// Package metrics exposes Prometheus metrics for Nandy actions and
// notifications.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/fentz26/nandy/internal/notify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nandy"

// Metrics owns a private registry so tests and multiple daemons in one
// process do not collide on the global one.
type Metrics struct {
	registry      *prometheus.Registry
	actions       *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	notifications *prometheus.CounterVec
}

// New creates and registers the Nandy collectors plus the Go and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Entity actions by kind, action and outcome.",
		}, []string{"kind", "action", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Time spent applying an action, transaction included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "action"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Published change notifications by kind and action.",
		}, []string{"kind", "action"}),
	}
	m.registry.MustRegister(
		m.actions,
		m.duration,
		m.notifications,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveAction records one action attempt.
func (m *Metrics) ObserveAction(kind, action, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(kind, action, outcome).Inc()
	m.duration.WithLabelValues(kind, action).Observe(d.Seconds())
}

// Notifier wraps next so every published message is counted.
func (m *Metrics) Notifier(next notify.Notifier) notify.Notifier {
	if m == nil {
		return next
	}
	return &countingNotifier{next: next, counter: m.notifications}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

type countingNotifier struct {
	next    notify.Notifier
	counter *prometheus.CounterVec
}

func (c *countingNotifier) Publish(ctx context.Context, msg notify.Message) {
	c.counter.WithLabelValues(string(msg.Kind), msg.Action).Inc()
	c.next.Publish(ctx, msg)
}
