package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lsk7209/0-nkey-sub001/internal/observability"
)

// HTTP metric names.
const (
	metricRequestsTotal    = "http_requests_total"
	metricRequestDuration  = "http_request_duration_ms"
	metricRequestSize      = "http_request_size_bytes"
	metricResponseSize     = "http_response_size_bytes"
	metricHTTPErrorsTotal  = "http_errors_total"
	unknownEndpointPattern = "/unknown"
)

// responseWriter captures status code and response size.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Flush lets promhttp stream through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// EndpointPattern keeps label cardinality bounded: chi's route pattern
// when available, otherwise a coarse bucket.
func EndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	path := r.URL.Path
	switch {
	case path == "/" || path == "/version" || path == "/metrics" || path == "/metrics/throttle":
		return path
	case path == "/health" || strings.HasPrefix(path, "/health/"):
		return "/health/*"
	case strings.HasPrefix(path, "/debug/"):
		return "/debug/*"
	default:
		return unknownEndpointPattern
	}
}

// RequestMetrics emits request counters, latency and sizes, then logs the
// request with its correlation id.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		recordRequest(r, wrapped, time.Since(start))
	})
}

func recordRequest(r *http.Request, rw *responseWriter, duration time.Duration) {
	sys := observability.TelemetrySystem
	endpoint := EndpointPattern(r)
	status := strconv.Itoa(rw.statusCode)

	var requestSize int64
	if r.ContentLength > 0 {
		requestSize = r.ContentLength
	} else if size, err := strconv.ParseInt(r.Header.Get("Content-Length"), 10, 64); err == nil {
		requestSize = size
	}

	labels := map[string]string{"method": r.Method, "endpoint": endpoint, "status": status}
	sizeLabels := map[string]string{"method": r.Method, "endpoint": endpoint}

	_ = sys.Counter(metricRequestsTotal, 1, labels)
	_ = sys.Histogram(metricRequestDuration, duration, labels)
	_ = sys.Gauge(metricRequestSize, float64(requestSize), sizeLabels)
	_ = sys.Gauge(metricResponseSize, float64(rw.bytesWritten), sizeLabels)

	if rw.statusCode >= 400 {
		errorType := "client_error"
		if rw.statusCode >= 500 {
			errorType = "server_error"
		}
		_ = sys.Counter(metricHTTPErrorsTotal, 1, map[string]string{
			"method":     r.Method,
			"endpoint":   endpoint,
			"status":     status,
			"error_type": errorType,
		})
	}

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("HTTP request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("endpoint", endpoint),
			zap.Int("status", rw.statusCode),
			zap.Duration("duration", duration),
			zap.Int64("request_size", requestSize),
			zap.Int64("response_size", rw.bytesWritten),
			zap.String("requestID", GetRequestID(r.Context())),
		)
	}
}
