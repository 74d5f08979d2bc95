package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "payment"

// PaymentMetrics holds the payment lifecycle collectors. A nil
// *PaymentMetrics is valid and records nothing.
type PaymentMetrics struct {
	InitiationsTotal       *prometheus.CounterVec
	CallbacksTotal         *prometheus.CounterVec
	GatewayRequestDuration *prometheus.HistogramVec
	EventPublishFailures   *prometheus.CounterVec
}

// NewPaymentMetrics registers the collectors with reg.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	factory := promauto.With(reg)

	return &PaymentMetrics{
		InitiationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "initiations_total",
				Help:      "Push payment initiations by outcome",
			},
			[]string{"outcome"},
		),
		CallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "callbacks_total",
				Help:      "Gateway callbacks by reconciliation outcome",
			},
			[]string{"outcome"},
		),
		GatewayRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_request_duration_seconds",
				Help:      "Latency of gateway calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
			},
			[]string{"operation", "result"},
		),
		EventPublishFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_publish_failures_total",
				Help:      "Payment events that could not be published",
			},
			[]string{"type"},
		),
	}
}

func (m *PaymentMetrics) Initiation(outcome string) {
	if m == nil {
		return
	}
	m.InitiationsTotal.WithLabelValues(outcome).Inc()
}

func (m *PaymentMetrics) Callback(outcome string) {
	if m == nil {
		return
	}
	m.CallbacksTotal.WithLabelValues(outcome).Inc()
}

// ObserveGateway records the duration of one gateway call since start.
func (m *PaymentMetrics) ObserveGateway(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.GatewayRequestDuration.WithLabelValues(operation, result).Observe(time.Since(start).Seconds())
}

func (m *PaymentMetrics) PublishFailed(eventType string) {
	if m == nil {
		return
	}
	m.EventPublishFailures.WithLabelValues(eventType).Inc()
}
