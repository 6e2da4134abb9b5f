package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketsplit_login_total",
			Help: "Total number of login attempts",
		},
	)

	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketsplit_register_total",
			Help: "Total number of user registrations",
		},
	)

	UserOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketsplit_user_operations_total",
			Help: "Total number of user and social-graph operations",
		},
		[]string{"operation"}, // "profile", "update", "delete", "add_friend", "remove_friend", "list_friends", "reset", "change_password"
	)

	ProjectOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketsplit_project_operations_total",
			Help: "Total number of project operations",
		},
		[]string{"operation"}, // "create", "add_members", "remove_member", "delete", "details", "list"
	)

	TicketOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketsplit_ticket_operations_total",
			Help: "Total number of ticket operations",
		},
		[]string{"operation"}, // "create", "delete", "list"
	)

	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketsplit_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketsplit_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // "missing_token", "invalid_token", "invalid_credentials", etc.
	)

	MailCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketsplit_mail_total",
			Help: "Total number of outbound email attempts by result",
		},
		[]string{"result"}, // "sent", "failed"
	)
)

// Histogram metrics
var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketsplit_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketsplit_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "query", "insert", "update", "delete"
	)
)

// Gauge metrics
var (
	ActiveTokensGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ticketsplit_active_tokens",
			Help: "Number of tokens issued and not yet expired",
		},
	)

	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ticketsplit_info",
			Help: "Information about the ticketsplit service",
		},
		[]string{"version"},
	)
)

func init() {
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(RegisterCounter)
	prometheus.MustRegister(UserOperationCounter)
	prometheus.MustRegister(ProjectOperationCounter)
	prometheus.MustRegister(TicketOperationCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(MailCounter)

	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)

	prometheus.MustRegister(ActiveTokensGauge)
	prometheus.MustRegister(InfoGauge)

	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordUserOperation records a user or social-graph operation
func RecordUserOperation(operation string) {
	UserOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordProjectOperation records a project operation
func RecordProjectOperation(operation string) {
	ProjectOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordTicketOperation records a ticket operation
func RecordTicketOperation(operation string) {
	TicketOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordMailResult records the outcome of an outbound email attempt
func RecordMailResult(result string) {
	MailCounter.With(prometheus.Labels{"result": result}).Inc()
}

// IncreaseActiveTokens increments the active tokens gauge
func IncreaseActiveTokens() {
	ActiveTokensGauge.Inc()
}
