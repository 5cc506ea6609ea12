// Package metrics exposes membership activity as Prometheus metrics.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	membership "github.com/goliatone/go-membership"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector counts activity events. It implements membership.ActivitySink
// so it can be chained with other sinks through membership.MultiSink.
type Collector struct {
	events        *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	logins        *prometheus.CounterVec
	provisioning  *prometheus.CounterVec
}

var _ membership.ActivitySink = (*Collector)(nil)

// NewCollector registers the membership metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "membership_activity_events_total",
			Help: "Activity events recorded, by event type",
		}, []string{"event"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "membership_status_transitions_total",
			Help: "Membership status changes, by source and target status",
		}, []string{"from", "to"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "membership_notifications_total",
			Help: "Notification dispatch outcomes, by kind and status",
		}, []string{"kind", "status"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "membership_logins_total",
			Help: "Login attempts, by result",
		}, []string{"result"}),
		provisioning: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "membership_account_provisioning_total",
			Help: "Account provisioning attempts, by result",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.events,
		c.transitions,
		c.notifications,
		c.logins,
		c.provisioning,
	)

	return c
}

// Record implements membership.ActivitySink.
func (c *Collector) Record(_ context.Context, event membership.ActivityEvent) error {
	c.events.WithLabelValues(string(event.EventType)).Inc()

	switch event.EventType {
	case membership.ActivityStatusChanged:
		c.transitions.WithLabelValues(string(event.FromStatus), string(event.ToStatus)).Inc()
	case membership.ActivityNotificationSent, membership.ActivityNotificationFailed:
		c.notifications.WithLabelValues(label(event.Metadata, "kind"), label(event.Metadata, "status")).Inc()
	case membership.ActivityLoginSuccess:
		c.logins.WithLabelValues("success").Inc()
	case membership.ActivityLoginFailure:
		c.logins.WithLabelValues("failure").Inc()
	case membership.ActivityAccountProvisioned:
		c.provisioning.WithLabelValues("created").Inc()
	case membership.ActivityProvisioningSkipped:
		c.provisioning.WithLabelValues("skipped").Inc()
	}
	return nil
}

func label(meta map[string]any, key string) string {
	if v, ok := meta[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return "unknown"
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute serves Handler on /metrics.
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
