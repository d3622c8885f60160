// Package metrics provides Prometheus metrics for the vaultbox server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultbox_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vaultbox_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Zone metrics
	zoneOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultbox_zone_operations_total",
			Help: "Total zone operations by kind and outcome",
		},
		[]string{"op", "status"},
	)

	zoneBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vaultbox_zone_bytes",
			Help: "Bytes stored per zone at the last storage report",
		},
		[]string{"zone"},
	)

	pendingRecoveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultbox_pending_transfers_recovered_total",
			Help: "Interrupted transfers settled at recovery by outcome",
		},
		[]string{"outcome"},
	)

	// Transfer metrics
	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vaultbox_upload_bytes_total",
			Help: "Total bytes accepted by upload and content endpoints",
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultbox_uploads_total",
			Help: "Total number of uploaded files",
		},
		[]string{"status"},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultbox_downloads_total",
			Help: "Total number of downloads",
		},
		[]string{"kind"},
	)

	// Vault metrics
	vaultAuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultbox_vault_auth_attempts_total",
			Help: "Total vault authentication attempts",
		},
		[]string{"result"},
	)

	rateLimitHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vaultbox_vault_rate_limit_hits_total",
			Help: "Total vault login rate limit rejections (429s)",
		},
	)

	quotaExceededTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultbox_quota_exceeded_total",
			Help: "Total writes rejected by a storage limit",
		},
		[]string{"type"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordZoneOperation records a zone mutation or listing.
func RecordZoneOperation(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	zoneOperationsTotal.WithLabelValues(op, status).Inc()
}

// SetZoneBytes sets the byte gauge for a zone.
func SetZoneBytes(zone string, bytes int64) {
	zoneBytes.WithLabelValues(zone).Set(float64(bytes))
}

// RecordRecovered records the outcome counts of a recovery pass.
func RecordRecovered(completed, rolledBack, dropped int) {
	pendingRecoveredTotal.WithLabelValues("completed").Add(float64(completed))
	pendingRecoveredTotal.WithLabelValues("rolled_back").Add(float64(rolledBack))
	pendingRecoveredTotal.WithLabelValues("dropped").Add(float64(dropped))
}

// RecordUpload records one uploaded file.
func RecordUpload(bytes int64, success bool) {
	status := "success"
	if !success {
		status = "error"
	} else {
		uploadBytesTotal.Add(float64(bytes))
	}
	uploadsTotal.WithLabelValues(status).Inc()
}

// RecordDownload records a download of a file, zip archive or thumbnail.
func RecordDownload(kind string) {
	downloadsTotal.WithLabelValues(kind).Inc()
}

// RecordAuthAttempt records a vault authentication attempt.
func RecordAuthAttempt(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	vaultAuthAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordRateLimitHit records a rate limit rejection.
func RecordRateLimitHit() {
	rateLimitHitsTotal.Inc()
}

// RecordQuotaExceeded records a quota exceeded rejection.
func RecordQuotaExceeded(quotaType string) {
	quotaExceededTotal.WithLabelValues(quotaType).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics, labelled
// by the matched mux pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		RecordHTTPRequest(r.Method, route, rw.statusCode, time.Since(start))
	})
}
