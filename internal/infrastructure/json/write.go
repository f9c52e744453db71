package json

import (
	"encoding/json"
	"net/http"
)

// Write encodes data as the JSON response body with the given status.
func Write(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}
