package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx answer from the backend. Message carries the
// backend's {"error": "..."} text when present and the status text
// otherwise.
type APIError struct {
	Path       string
	StatusCode int
	Message    string
	Body       []byte
}

func newAPIError(path string, status int, body []byte) *APIError {
	msg := http.StatusText(status)
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && strings.TrimSpace(payload.Error) != "" {
		msg = payload.Error
	}
	return &APIError{Path: path, StatusCode: status, Message: msg, Body: body}
}

func (e *APIError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend %s returned %d: %s", e.Path, e.StatusCode, e.Message)
}

// IsRetryable reports whether the backend may answer differently later.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}
