package middleware

import (
	"net/http"
	"time"

	"github.com/vfg2006/ozon-performance-sync/pkg/apiErrors"
	"github.com/vfg2006/ozon-performance-sync/pkg/log"
)

// loggingResponseWriter captures the status code for the access log.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *loggingResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware tags every request with a correlation ID and writes
// an access-log line when the handler returns.
func LoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, correlationID := log.WithCorrelationID(r.Context())
			w.Header().Set("X-Correlation-ID", correlationID)

			lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			start := time.Now()
			next.ServeHTTP(lw, r.WithContext(ctx))

			log.ForContext(ctx).WithFields(log.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": lw.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Info("request completed")
		})
	}
}

// LogPanicMiddleware turns handler panics into 500 responses instead of
// killing the process.
func LogPanicMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.ForContext(r.Context()).WithFields(log.Fields{
						"panic": rec,
						"path":  r.URL.Path,
					}).Error("panic recovered while handling request")

					apiErrors.WriteError(w, apiErrors.ErrInternalServer, "internal server error", nil)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
