// Package health exposes the liveness endpoint used by deployment probes.
package health

import "net/http"

// Handler responds to GET /health with a static ok payload.
func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
