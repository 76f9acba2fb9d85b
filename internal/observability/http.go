package observability

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// Middleware tags every request with a request id (propagated from the
// incoming header when present), records the HTTP metrics and, when logger is
// non-nil, writes one access log line.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			ctx := ContextWithRequestID(r.Context(), requestID)
			w.Header().Set(requestIDHeader, requestID)

			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			req := r.WithContext(ctx)
			next.ServeHTTP(recorder, req)

			elapsed := time.Since(start)
			status := strconv.Itoa(recorder.status)
			// ServeMux records the matched pattern on the request it was given.
			route := req.Pattern
			if route == "" {
				route = "unmatched"
			}
			httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			httpRequestDurationSeconds.WithLabelValues(r.Method, route, status).Observe(elapsed.Seconds())

			if logger == nil {
				return
			}
			logger.InfoContext(ctx, "http_request",
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", recorder.status),
				slog.Duration("duration", elapsed),
				slog.Int("bytes", recorder.bytes),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(body []byte) (int, error) {
	n, err := r.ResponseWriter.Write(body)
	r.bytes += n
	return n, err
}
