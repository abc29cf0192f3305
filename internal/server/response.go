package server

import (
	"net/http"

	"github.com/goccy/go-json"
)

// APIError is the body of every error response
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// respondError writes the error envelope. The cause, when given, is
// reported under details.
func respondError(w http.ResponseWriter, status int, code, message string, cause error) {
	apiErr := APIError{Code: code, Message: message}
	if cause != nil {
		apiErr.Details = map[string]interface{}{"cause": cause.Error()}
	}
	respondJSON(w, status, errorEnvelope{Error: apiErr})
}
