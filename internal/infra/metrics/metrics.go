package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CheckoutMetrics is safe to use through a nil pointer; every method is a
// no-op then, so tests can leave it out.
type CheckoutMetrics struct {
	Workflows            *prometheus.CounterVec
	WorkflowLatencyMS    *prometheus.HistogramVec
	NotificationFailures *prometheus.CounterVec
	Requests             *prometheus.CounterVec
	RequestLatencyMS     *prometheus.HistogramVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	workflows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_workflows_total",
		Help: "Checkout workflows by terminal state and failure kind.",
	}, []string{"state", "kind"})
	workflowLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_workflow_duration_ms",
		Help:    "Checkout workflow duration in milliseconds.",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 5000, 30000, 120000, 600000},
	}, []string{"method"})
	notifyFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_notification_failures_total",
		Help: "Notifications that could not be published.",
	}, []string{"kind"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_ms",
		Help:    "HTTP request latency in milliseconds.",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	reg.MustRegister(workflows, workflowLatency, notifyFailures, requests, latency)
	return &CheckoutMetrics{
		Workflows:            workflows,
		WorkflowLatencyMS:    workflowLatency,
		NotificationFailures: notifyFailures,
		Requests:             requests,
		RequestLatencyMS:     latency,
	}
}

func (m *CheckoutMetrics) ObserveWorkflow(state, kind, method string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Workflows.WithLabelValues(state, kind).Inc()
	m.WorkflowLatencyMS.WithLabelValues(method).Observe(float64(elapsed.Milliseconds()))
}

func (m *CheckoutMetrics) NotificationFailed(kind string) {
	if m == nil {
		return
	}
	m.NotificationFailures.WithLabelValues(kind).Inc()
}

func (m *CheckoutMetrics) ObserveRequest(handler string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
	m.RequestLatencyMS.WithLabelValues(handler).Observe(float64(elapsed.Milliseconds()))
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
