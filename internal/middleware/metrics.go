package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"media-catalog/internal/metrics"
)

// metricsResponseWriter wraps http.ResponseWriter to capture the status
// code and, for streaming endpoints, the time to first byte. Long-lived
// SSE connections would otherwise dominate the duration histogram.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode      int
	headerWritten   bool
	startTime       time.Time
	firstByteTime   time.Time
	isStreamingPath bool
}

func newMetricsResponseWriter(w http.ResponseWriter, startTime time.Time, isStreaming bool) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter:  w,
		statusCode:      http.StatusOK,
		startTime:       startTime,
		isStreamingPath: isStreaming,
	}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	if !rw.headerWritten {
		rw.statusCode = code
		rw.headerWritten = true
		if rw.isStreamingPath && rw.firstByteTime.IsZero() {
			rw.firstByteTime = time.Now()
		}
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	if !rw.headerWritten {
		rw.headerWritten = true
		if rw.isStreamingPath && rw.firstByteTime.IsZero() {
			rw.firstByteTime = time.Now()
		}
	}
	return rw.ResponseWriter.Write(b)
}

// Flush passes through so SSE handlers can stream through the chain.
func (rw *metricsResponseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// GetDuration returns the value to record: time to first byte for
// streaming endpoints, total handler duration otherwise.
func (rw *metricsResponseWriter) GetDuration() time.Duration {
	if rw.isStreamingPath && !rw.firstByteTime.IsZero() {
		return rw.firstByteTime.Sub(rw.startTime)
	}
	return time.Since(rw.startTime)
}

// isStreamingPath reports whether the endpoint holds the connection
// open indefinitely.
func isStreamingPath(path string) bool {
	return path == "/api/events" || strings.HasPrefix(path, "/api/events/")
}

// MetricsConfig holds configuration for the metrics middleware
type MetricsConfig struct {
	// SkipPaths are paths that should not be recorded
	SkipPaths []string
}

// DefaultMetricsConfig returns the default metrics configuration
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths: []string{"/metrics", "/health", "/healthz", "/livez", "/readyz"},
	}
}

// Metrics returns a middleware that records Prometheus metrics
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip metrics for certain paths
			for _, path := range config.SkipPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			// Track in-flight requests
			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			start := time.Now()

			// Wrap response writer to capture status code and timing
			wrapped := newMetricsResponseWriter(w, start, isStreamingPath(r.URL.Path))

			// Process request
			next.ServeHTTP(wrapped, r)

			// Record metrics
			duration := wrapped.GetDuration().Seconds()
			path := normalizePath(r.URL.Path)
			status := strconv.Itoa(wrapped.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
		})
	}
}

// normalizePath normalizes the path for metrics to avoid high cardinality
func normalizePath(path string) string {
	// Replace dynamic segments with placeholders
	parts := strings.Split(path, "/")
	for i, part := range parts {
		// Skip empty parts
		if part == "" {
			continue
		}

		// Content checksums are the dominant dynamic segment
		if isChecksum(part) {
			parts[i] = "{checksum}"
			continue
		}

		// Keep the first few path segments for context, collapse the rest
		if i > 3 {
			parts[i] = "{path}"
			// Join remaining parts and break
			return strings.Join(parts[:i+1], "/")
		}
	}

	return strings.Join(parts, "/")
}

// isChecksum reports whether a path segment looks like a hex SHA-256
// digest.
func isChecksum(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
