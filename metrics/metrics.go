// Package metrics defines the Prometheus metrics for the federation
// subsystem. Metrics register themselves with the default registry on
// first import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "glyptodon"

// InboxActivities counts inbound activities by activity type.
var InboxActivities = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inbox_activities_total",
		Help:      "Total number of activities received on the inbox, by type.",
	},
	[]string{"type"},
)

// DeliveryAttempts counts outbound activity deliveries.
// Label result: "ok", "resolve_error", "sign_error" or "post_error".
var DeliveryAttempts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "delivery_attempts_total",
		Help:      "Total number of outbound delivery attempts, by result.",
	},
	[]string{"result"},
)

// Followers tracks the current number of followers.
var Followers = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "followers",
		Help:      "Current number of accounts following this instance.",
	},
)

// Following tracks the number of accounts this instance follows.
var Following = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "following",
		Help:      "Current number of accounts this instance follows.",
	},
)

// KeysAvailable is 1 while the signing key pair is loadable.
var KeysAvailable = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "keys_available",
		Help:      "Whether the actor signing keys are available (1) or not (0).",
	},
)

// SetKeysAvailable records signing key availability.
func SetKeysAvailable(ok bool) {
	if ok {
		KeysAvailable.Set(1)
	} else {
		KeysAvailable.Set(0)
	}
}
