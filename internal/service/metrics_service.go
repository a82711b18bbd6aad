package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the onboarding
// pipeline.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cmsCallDuration *prometheus.HistogramVec
	cmsCallErrors   *prometheus.CounterVec
	batchesTotal    *prometheus.CounterVec
	rowsTotal       *prometheus.CounterVec
	webhookTotal    *prometheus.CounterVec
}

// NewMetricsService registers the service collectors on a fresh registry.
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

	cmsCallDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cms_call_duration_seconds",
		Help:    "Duration of CMS (Strapi) calls in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	cmsCallErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cms_call_errors_total",
		Help: "Total failed CMS calls",
	}, []string{"operation"})

	batchesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "onboarding_batches_total",
		Help: "Batch runs by final status",
	}, []string{"status"})

	rowsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "onboarding_rows_total",
		Help: "Processed applicant rows by outcome",
	}, []string{"outcome"})

	webhookTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "onboarding_webhook_deliveries_total",
		Help: "Webhook delivery outcomes",
	}, []string{"outcome"})

	registry.MustRegister(requestDuration, requestTotal, cmsCallDuration, cmsCallErrors, batchesTotal, rowsTotal, webhookTotal)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cmsCallDuration: cmsCallDuration,
		cmsCallErrors:   cmsCallErrors,
		batchesTotal:    batchesTotal,
		rowsTotal:       rowsTotal,
		webhookTotal:    webhookTotal,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler { return m.handler }

// ObserveHTTPRequest records one handled HTTP request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, fmt.Sprintf("%d", status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveCMSCall records one CMS call, implementing strapi.CallObserver.
func (m *MetricsService) ObserveCMSCall(operation string, err error, duration time.Duration) {
	m.cmsCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.cmsCallErrors.WithLabelValues(operation).Inc()
	}
}

// ObserveBatch records a finished batch run.
func (m *MetricsService) ObserveBatch(status string) {
	m.batchesTotal.WithLabelValues(status).Inc()
}

// ObserveRow records one settled applicant row.
func (m *MetricsService) ObserveRow(outcome string) {
	m.rowsTotal.WithLabelValues(outcome).Inc()
}

// ObserveWebhook records a webhook delivery outcome.
func (m *MetricsService) ObserveWebhook(delivered bool) {
	outcome := "delivered"
	if !delivered {
		outcome = "failed"
	}
	m.webhookTotal.WithLabelValues(outcome).Inc()
}
