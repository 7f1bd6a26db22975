package facade

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	agentsTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agentcore_agents_total",
		Help: "Total number of registered agents by status.",
	}, []string{"status"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentcore_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agentcore_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	escrowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentcore_escrows_total",
		Help: "Total escrows by terminal outcome.",
	}, []string{"outcome"})

	distributionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentcore_revenue_distributions_total",
		Help: "Total revenue distributions by outcome.",
	}, []string{"outcome"})

	ledgerEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentcore_audit_entries_total",
		Help: "Total audit ledger entries appended.",
	})

	notificationDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentcore_notification_deliveries_total",
		Help: "Total outbound notification deliveries by success status.",
	}, []string{"status"})
)

// PrometheusMiddleware records per-request metrics for every route.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		requestsTotal.WithLabelValues(method, path, status).Inc()
		requestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler serves the Prometheus exposition endpoint.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// SetAgentsGauge sets the agent count gauge for a given registry status.
func SetAgentsGauge(status string, count float64) {
	agentsTotal.WithLabelValues(status).Set(count)
}

// RecordEscrowOutcome records a terminal escrow settlement.
func RecordEscrowOutcome(outcome string) {
	escrowsTotal.WithLabelValues(outcome).Inc()
}

// RecordDistribution records a completed revenue distribution.
func RecordDistribution(outcome string) {
	distributionsTotal.WithLabelValues(outcome).Inc()
}

// RecordAuditAppend records an audit ledger entry append.
func RecordAuditAppend() {
	ledgerEntriesTotal.Inc()
}

// RecordNotificationDelivery records a single notification delivery attempt.
// Passed to notify.Service.WithMetricsRecorder.
func RecordNotificationDelivery(success bool) {
	if success {
		notificationDeliveriesTotal.WithLabelValues("success").Inc()
	} else {
		notificationDeliveriesTotal.WithLabelValues("failure").Inc()
	}
}
