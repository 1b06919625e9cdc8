package response

import (
	"encoding/json"
	"net/http"
)

const MsgInternal = "Internal server error"

// ErrorEnvelope is the body of every known failure.
type ErrorEnvelope struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

// UnhandledEnvelope is the body of an unanticipated fault.
type UnhandledEnvelope struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// JSON writes v with the given status. v is encoded before the header goes
// out, so a value that cannot be encoded yields the unhandled envelope.
func JSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		body, _ = json.Marshal(UnhandledEnvelope{Error: MsgInternal, Details: err.Error()})
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// Raw writes an already encoded JSON body with the given status.
func Raw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes {"error": message, "status_code": status}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorEnvelope{Error: message, StatusCode: status})
}

// Unhandled writes {"error": "Internal server error", "details": details}
// with HTTP 500.
func Unhandled(w http.ResponseWriter, details string) {
	JSON(w, http.StatusInternalServerError, UnhandledEnvelope{Error: MsgInternal, Details: details})
}
