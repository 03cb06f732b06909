package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/banshee-data/perception-eval/internal/monitoring"
)

var (
	statusOK       = color.New(color.FgGreen, color.Bold)
	statusRedirect = color.New(color.FgYellow)
	statusError    = color.New(color.FgRed, color.Bold)
)

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	code := strconv.Itoa(statusCode)
	switch {
	case statusCode >= 200 && statusCode < 300:
		return statusOK.Sprint(code)
	case statusCode >= 300 && statusCode < 400:
		return statusRedirect.Sprint(code)
	case statusCode >= 400:
		return statusError.Sprint(code)
	default:
		return code
	}
}

// LoggingMiddleware logs method, path, status and duration of every request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)

		level := logrus.InfoLevel
		if lrw.statusCode >= 500 {
			level = logrus.ErrorLevel
		}
		monitoring.Logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      lrw.statusCode,
			"duration_ms": float64(time.Since(start).Nanoseconds()) / 1e6,
		}).Logf(level, "[%s] %s %s", statusCodeColor(lrw.statusCode), r.Method, r.RequestURI)
	})
}
