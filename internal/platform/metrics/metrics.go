// Package metrics registers the transport-level Prometheus metrics:
// update ingestion and command handling. Enforcement metrics live next
// to the enforcement engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the transport counters.
type Metrics struct {
	UpdatesTotal    *prometheus.CounterVec
	CommandsTotal   *prometheus.CounterVec
	WebhookRejected prometheus.Counter
}

// New creates and registers the transport metrics on the default
// registry.
func New() *Metrics {
	return &Metrics{
		UpdatesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "defender_updates_total",
			Help: "Updates received, by kind (message, chat_member, other).",
		}, []string{"kind"}),
		CommandsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "defender_commands_total",
			Help: "Commands dispatched, by command name and result.",
		}, []string{"command", "result"}),
		WebhookRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "defender_webhook_rejected_total",
			Help: "Webhook requests rejected for a bad secret token.",
		}),
	}
}

// ObserveUpdate counts one received update.
func (m *Metrics) ObserveUpdate(kind string) {
	if m == nil {
		return
	}
	m.UpdatesTotal.WithLabelValues(kind).Inc()
}

// ObserveCommand counts one dispatched command.
func (m *Metrics) ObserveCommand(command, result string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(command, result).Inc()
}
