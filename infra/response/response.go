package response

import (
	"encoding/json"
	"net/http"
)

// requestIDHeader is set on every response by the request logging
// middleware before handlers run.
const requestIDHeader = "X-Request-ID"

// Response is the envelope for every JSON reply. The HTTP status code is
// not repeated in the body; the request id is, so a gateway callback can
// be matched against the logs from the webhook payload alone.
type Response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// Success writes a successful response with data
func Success(w http.ResponseWriter, statusCode int, message string, data any) {
	resp := Response{
		Success:   true,
		Message:   message,
		RequestID: w.Header().Get(requestIDHeader),
		Data:      data,
	}
	WriteJSON(w, statusCode, resp)
}

// Error writes an error response
func Error(w http.ResponseWriter, statusCode int, message string, err error) {
	resp := Response{
		Success:   false,
		Message:   message,
		RequestID: w.Header().Get(requestIDHeader),
	}

	if err != nil {
		resp.Error = err.Error()
	}

	WriteJSON(w, statusCode, resp)
}

// WriteJSON writes any value as a JSON response
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
