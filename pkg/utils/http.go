package utils

import (
	"encoding/json"
	"io"
	"net/http"
)

// JSONError writes a JSON error response with the given status code and
// message. It ensures the Content-Type is set to application/json.
func JSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// JSONWrite writes the provided value as JSON with the given status code.
func JSONWrite(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	return json.NewEncoder(w).Encode(v)
}

// DecodeJSON decodes a request body into v, capping the body at 1 MiB.
// Inbound bodies here are tiny fixed-shape JSON objects.
func DecodeJSON(r io.Reader, v interface{}) error {
	return json.NewDecoder(io.LimitReader(r, 1<<20)).Decode(v)
}
