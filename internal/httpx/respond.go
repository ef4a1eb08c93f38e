package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/splax/taskgate/internal/proxy"
)

// writeJSON writes a JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends the canonical failure shape: {"success":false,"message":...}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, proxy.Error{Success: false, Message: msg})
}

// writeRelay passes an already-normalized proxy result through unchanged.
func writeRelay(w http.ResponseWriter, result proxy.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.Status)
	_, _ = w.Write(result.Body)
}
