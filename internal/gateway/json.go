package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the JSON error body, matching the upstream API's
// {"message": ...} convention so UI error handling stays uniform.
type ErrorResponse struct {
	Message string `json:"message"`
}

// decodeJSON decodes a request body, capped to keep hostile payloads
// from ballooning memory.
func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(v)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	// Headers and status go out before encoding; an encode failure can
	// only truncate the body at this point.
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}

// writeJSONError writes a JSON error response with the given status
// code. Like http.Error but JSON.
func writeJSONError(ctx context.Context, w http.ResponseWriter, message string, status int) {
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(ctx, w, ErrorResponse{Message: message}, status)
}
