package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	eventsRelayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "relay",
			Name:      "events_total",
			Help:      "Classified events received from the node event feed.",
		}, []string{"kind"},
	)
	parseErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "relay",
			Name:      "parse_errors_total",
			Help:      "Frames discarded because they could not be decoded.",
		}, []string{"source"},
	)
	subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dashboard",
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Currently registered downstream subscribers.",
		},
	)
	sendFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "hub",
			Name:      "send_failures_total",
			Help:      "Subscribers dropped because a send failed.",
		},
	)
	upstreamConnected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "dashboard",
			Subsystem: "reconnect",
			Name:      "connected",
			Help:      "1 while the named connection is established.",
		}, []string{"name"},
	)
	reconnectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "reconnect",
			Name:      "attempts_total",
			Help:      "Scheduled reconnect attempts after a disconnect.",
		}, []string{"name"},
	)
	paymentLogWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "paymentlog",
			Name:      "writes_total",
			Help:      "Payment log writes by outcome.",
		}, []string{"outcome"},
	)
	upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "phoenixd",
			Name:      "requests_total",
			Help:      "REST calls to the node daemon by operation and status class.",
		}, []string{"op", "status"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{eventsRelayed, parseErrors, subscribers, sendFailures, upstreamConnected, reconnectAttempts, paymentLogWrites, upstreamRequests}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register succeeds.

func IncEvent(kind string) {
	if regOK.Load() {
		eventsRelayed.WithLabelValues(kind).Inc()
	}
}

func IncParseError(source string) {
	if regOK.Load() {
		parseErrors.WithLabelValues(source).Inc()
	}
}

func SetSubscribers(n int) {
	if regOK.Load() {
		subscribers.Set(float64(n))
	}
}

func IncSendFailure() {
	if regOK.Load() {
		sendFailures.Inc()
	}
}

func SetConnected(name string, connected bool) {
	if regOK.Load() {
		var value float64
		if connected {
			value = 1
		}
		upstreamConnected.WithLabelValues(name).Set(value)
	}
}

func IncReconnect(name string) {
	if regOK.Load() {
		reconnectAttempts.WithLabelValues(name).Inc()
	}
}

func IncPaymentLogWrite(outcome string) {
	if regOK.Load() {
		paymentLogWrites.WithLabelValues(outcome).Inc()
	}
}

func IncUpstreamRequest(op, status string) {
	if regOK.Load() {
		upstreamRequests.WithLabelValues(op, status).Inc()
	}
}
