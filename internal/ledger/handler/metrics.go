package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	slRegistrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sensorledger_registrations_total",
		Help: "Total sensor registrations created.",
	})

	slProofsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sensorledger_proofs_total",
		Help: "Total individual proof submissions by outcome.",
	}, []string{"result"})

	slBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sensorledger_batches_total",
		Help: "Total batch commitments by outcome.",
	}, []string{"result"})

	slMerkleVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sensorledger_merkle_verifications_total",
		Help: "Total Merkle inclusion verifications by result.",
	}, []string{"result"})

	slRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sensorledger_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	slRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sensorledger_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// PrometheusMiddleware returns a gin middleware recording per-request metrics.
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

		slRequestsTotal.WithLabelValues(method, path, status).Inc()
		slRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a gin handler serving Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordRegistration records a successful sensor registration.
func RecordRegistration() {
	slRegistrationsTotal.Inc()
}

// RecordProofSubmission records a proof submission outcome.
func RecordProofSubmission(accepted bool) {
	slProofsTotal.WithLabelValues(outcome(accepted)).Inc()
}

// RecordBatchSubmission records a batch commitment outcome.
func RecordBatchSubmission(accepted bool) {
	slBatchesTotal.WithLabelValues(outcome(accepted)).Inc()
}

// RecordMerkleVerification records an inclusion verification result.
func RecordMerkleVerification(valid bool) {
	if valid {
		slMerkleVerificationsTotal.WithLabelValues("valid").Inc()
	} else {
		slMerkleVerificationsTotal.WithLabelValues("invalid").Inc()
	}
}

func outcome(accepted bool) string {
	if accepted {
		return "accepted"
	}
	return "rejected"
}
