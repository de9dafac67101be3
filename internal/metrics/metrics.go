// Package metrics holds the Prometheus collectors for the registration flows.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Use case labels.
const (
	UseCaseRegister  = "register"
	UseCaseCheckOTP  = "check_otp"
	UseCaseResendOTP = "resend_otp"
)

// Metrics holds all registration collectors. A nil *Metrics is a no-op.
type Metrics struct {
	Outcomes         *prometheus.CounterVec
	DeliveryFailures *prometheus.CounterVec
	StoreLatency     *prometheus.HistogramVec
	HTTPDuration     *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pnc",
			Subsystem: "registration",
			Name:      "outcomes_total",
			Help:      "Registration use case outcomes by use case and result kind.",
		}, []string{"use_case", "result"}),
		DeliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pnc",
			Subsystem: "registration",
			Name:      "sms_delivery_failures_total",
			Help:      "SMS deliveries that failed after the store mutation succeeded.",
		}, []string{"use_case"}),
		StoreLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pnc",
			Subsystem: "registration",
			Name:      "store_call_duration_seconds",
			Help:      "Latency of registration store function calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"use_case"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pnc",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern, method and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
	}
	if reg != nil {
		reg.MustRegister(m.Outcomes, m.DeliveryFailures, m.StoreLatency, m.HTTPDuration)
	}
	return m
}

// Outcome counts one finished use case; result is "success" or an error kind.
func (m *Metrics) Outcome(useCase, result string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(useCase, result).Inc()
}

// DeliveryFailed counts one failed SMS after a committed store mutation.
func (m *Metrics) DeliveryFailed(useCase string) {
	if m == nil {
		return
	}
	m.DeliveryFailures.WithLabelValues(useCase).Inc()
}

// ObserveStore records a store call duration in seconds.
func (m *Metrics) ObserveStore(useCase string, seconds float64) {
	if m == nil {
		return
	}
	m.StoreLatency.WithLabelValues(useCase).Observe(seconds)
}

// ObserveHTTP records one served request. route is the chi route pattern, not the raw path.
func (m *Metrics) ObserveHTTP(route, method string, code int, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(route, method, strconv.Itoa(code)).Observe(seconds)
}
