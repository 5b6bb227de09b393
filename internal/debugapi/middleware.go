package debugapi

import (
	"net/http"
	"time"

	"codeberg.org/mutker/heartbeatd/internal/logger"
)

func logMiddleware(log logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(lrw, r)

			log.Debug().
				Str("method", r.Method).
				Str("uri", r.RequestURI).
				Int("status", lrw.statusCode).
				Int("size", lrw.size).
				Dur("duration", time.Since(start)).
				Msg("Debug API request")
		})
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}
