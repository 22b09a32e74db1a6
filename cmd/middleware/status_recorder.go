package middleware

import "net/http"

// statusRecorder passes writes through while remembering the status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w}
}

// WriteHeader implements http.ResponseWriter
func (sr *statusRecorder) WriteHeader(code int) {
	if sr.statusCode == 0 {
		sr.statusCode = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write implements http.ResponseWriter
func (sr *statusRecorder) Write(data []byte) (int, error) {
	if sr.statusCode == 0 {
		sr.statusCode = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(data)
	sr.bytes += n
	return n, err
}

// Status returns the recorded status, defaulting to 200 when nothing was written
func (sr *statusRecorder) Status() int {
	if sr.statusCode == 0 {
		return http.StatusOK
	}
	return sr.statusCode
}

// Unwrap lets http.ResponseController reach the underlying writer
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}
