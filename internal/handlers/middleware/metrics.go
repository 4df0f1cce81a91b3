package middleware

import (
	"net/http"
	"time"
)

type httpObserver interface {
	ObserveHTTP(method string, route string, code int, took time.Duration)
}

// MetricsMiddleware reports request by the route pattern it matched, so ids in paths do not explode labels
func MetricsMiddleware(o httpObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lw := &logWriter{
				ResponseWriter: w,
				data:           logData{responseStatus: http.StatusOK},
			}

			next.ServeHTTP(lw, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			o.ObserveHTTP(r.Method, route, lw.data.responseStatus, time.Since(start))
		})
	}
}
