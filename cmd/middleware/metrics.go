package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kcearns/landing-server/cmd/logger"
	"github.com/kcearns/landing-server/cmd/metrics"
)

// Labeler maps a request path to a bounded route label
type Labeler interface {
	Label(path string) string
}

// Metrics records request counts and durations per route.
// Unknown paths share a single label so scanners cannot grow the series count.
// Recording failures are logged at debug level and never affect the response.
func Metrics(client metrics.Client, routes Labeler, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			route := routes.Label(r.URL.Path)
			method := methodLabel(r.Method)
			duration := time.Since(start)

			if err := client.Incr("http.requests_total", []string{
				"route:" + route,
				"method:" + method,
				"status_code:" + strconv.Itoa(rec.Status()),
			}, 1); err != nil {
				log.Debug("failed to record request count", "error", err)
			}
			if err := client.Timing("http.request_duration_seconds", duration, []string{
				"route:" + route,
				"method:" + method,
			}, 1); err != nil {
				log.Debug("failed to record request duration", "error", err)
			}
		})
	}
}

func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return method
	default:
		return "OTHER"
	}
}
