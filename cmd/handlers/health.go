package handlers

import (
	"encoding/json"
	"net/http"
)

// StatusOK is the only status the health endpoint reports
const StatusOK = "ok"

// HealthStatus is the body returned by the health endpoint
type HealthStatus struct {
	Status string `json:"status"`
}

// HealthHandler responds with {"status":"ok"} for Kubernetes liveness/readiness probes.
// It always returns 200 OK: the process answering is the whole signal, and
// nothing downstream is checked. It has no side effects, so probes may poll at any rate.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	// Marshalling a single string field cannot fail.
	body, _ := json.Marshal(HealthStatus{Status: StatusOK})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
