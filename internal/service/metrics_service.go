package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	authOutcomes    *prometheus.CounterVec
	ticketsSold     prometheus.Counter
	ticketsReturned prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	authOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_operations_total",
		Help: "Authentication operations by kind and outcome",
	}, []string{"operation", "outcome"})

	ticketsSold := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tickets_sold_total",
		Help: "Total tickets purchased",
	})

	ticketsReturned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tickets_returned_total",
		Help: "Total tickets returned",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, authOutcomes, ticketsSold, ticketsReturned, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		authOutcomes:    authOutcomes,
		ticketsSold:     ticketsSold,
		ticketsReturned: ticketsReturned,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordAuthOutcome counts an authentication operation result, e.g.
// ("login", "success") or ("refresh", "expired").
func (m *MetricsService) RecordAuthOutcome(operation, outcome string) {
	if m == nil {
		return
	}
	m.authOutcomes.WithLabelValues(operation, outcome).Inc()
}

// RecordTicketSold counts a successful purchase.
func (m *MetricsService) RecordTicketSold() {
	if m == nil {
		return
	}
	m.ticketsSold.Inc()
}

// RecordTicketReturned counts a returned ticket.
func (m *MetricsService) RecordTicketReturned() {
	if m == nil {
		return
	}
	m.ticketsReturned.Inc()
}
