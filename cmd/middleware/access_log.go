package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/kcearns/landing-server/cmd/logger"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// AccessLog logs one line per request. An inbound X-Request-ID is reused when
// it is short enough; otherwise a UUID is generated. The ID is echoed back in
// the response header. The response body is never touched.
func AccessLog(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" || len(requestID) > maxRequestIDLength {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			log.LogRequest(r.Method, r.URL.Path, r.UserAgent(), time.Since(start), rec.Status(), requestID)
		})
	}
}
