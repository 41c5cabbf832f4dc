package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campcart_checkout_attempts_total",
			Help: "Checkout attempts by final outcome",
		},
		[]string{"outcome"},
	)

	CheckoutStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campcart_checkout_step_seconds",
			Help:    "Duration of checkout steps",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	AvailabilityChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campcart_availability_checks_total",
			Help: "Availability lookups by result",
		},
		[]string{"result"},
	)

	CartMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campcart_cart_mutations_total",
			Help: "Accepted cart mutations by operation",
		},
		[]string{"operation"},
	)

	TotalMismatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campcart_checkout_total_mismatch_total",
			Help: "Reservations whose server total differs from the cart total",
		},
	)

	EventPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campcart_event_publish_failures_total",
			Help: "Checkout events that could not be published",
		},
	)
)
