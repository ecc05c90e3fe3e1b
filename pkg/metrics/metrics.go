package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCounter counts all HTTP requests with labels
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	// RequestDurationHistogram records request duration in seconds
	RequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)

	// StatusCodeCategoryCounter tracks responses by status class
	StatusCodeCategoryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_status_category_total",
			Help: "Total number of responses by status category (2xx, 4xx, 5xx)",
		},
		[]string{"service", "category", "method", "path"},
	)

	// LoginCounter counts login attempts
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "platform_login_total",
			Help: "Total number of login attempts",
		},
	)

	// AuthErrorCounter counts authentication errors by type
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platform_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"},
	)

	// ApprovalActionCounter counts approval engine actions
	ApprovalActionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platform_approval_actions_total",
			Help: "Total number of approval actions",
		},
		[]string{"action"},
	)

	// DatasetExecutionCounter counts dataset executions by outcome
	DatasetExecutionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platform_dataset_executions_total",
			Help: "Total number of dataset query executions",
		},
		[]string{"query_type", "outcome"},
	)

	// PluginReconcileCounter counts registry reconciliation runs
	PluginReconcileCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "platform_plugin_reconcile_total",
			Help: "Total number of plugin registry reconciliation runs",
		},
	)

	// TenantContextMissingCounter counts requests rejected for missing tenant context
	TenantContextMissingCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "platform_tenant_context_missing_total",
			Help: "Total number of requests rejected for missing tenant context",
		},
	)
)

// HTTPMetrics holds configuration and state for HTTP metrics collection
type HTTPMetrics struct {
	ServiceName string
	initialized bool
}

// NewHTTPMetrics creates a new HTTP metrics collector for the service
func NewHTTPMetrics(serviceName string) *HTTPMetrics {
	m := &HTTPMetrics{ServiceName: serviceName}
	m.register()
	return m
}

// register registers the prometheus metrics if they haven't been registered already
func (m *HTTPMetrics) register() {
	if !m.initialized {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDurationHistogram)
		prometheus.MustRegister(StatusCodeCategoryCounter)
		prometheus.MustRegister(LoginCounter)
		prometheus.MustRegister(AuthErrorCounter)
		prometheus.MustRegister(ApprovalActionCounter)
		prometheus.MustRegister(DatasetExecutionCounter)
		prometheus.MustRegister(PluginReconcileCounter)
		prometheus.MustRegister(TenantContextMissingCounter)
		m.initialized = true
	}
}

// incrementStatusCounter increments the status-class counter for the response
func (m *HTTPMetrics) incrementStatusCounter(status int, method, path string) {
	category := ""
	switch {
	case status >= 200 && status < 300:
		category = "2xx"
	case status >= 400 && status < 500:
		category = "4xx"
	case status >= 500 && status < 600:
		category = "5xx"
	}
	if category != "" {
		StatusCodeCategoryCounter.WithLabelValues(m.ServiceName, category, method, path).Inc()
	}
}

// Middleware creates an Echo middleware function that records HTTP request metrics
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			method := c.Request().Method
			path := c.Path()
			statusStr := strconv.Itoa(status)

			RequestCounter.WithLabelValues(m.ServiceName, method, path, statusStr).Inc()
			m.incrementStatusCounter(status, method, path)

			duration := time.Since(start).Seconds()
			RequestDurationHistogram.WithLabelValues(m.ServiceName, method, path, statusStr).Observe(duration)

			return err
		}
	}
}

// RecordAuthError increments the auth error counter for the given type
func RecordAuthError(errorType string) {
	AuthErrorCounter.WithLabelValues(errorType).Inc()
}

// GetPrometheusHandler returns an HTTP handler for exposing Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}
