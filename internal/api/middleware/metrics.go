package middleware

import (
	"net/http"
	"sync/atomic"
)

// Metrics returns middleware that tallies requests and error responses into
// the caller-owned counters, so the metrics endpoint can read them without
// reaching into this package.
func Metrics(requests, errors *atomic.Int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			// 4xx and 5xx both count as errors.
			if rw.statusCode >= 400 {
				errors.Add(1)
			}
		})
	}
}
