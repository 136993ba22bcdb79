// Package resp provides a uniform JSON response envelope for HTTP handlers.
package resp

import (
	"encoding/json"
	"net/http"

	"github.com/filedepot/filedepot/ecode"
)

// Exception represents the response structure.
type Exception struct {
	Status  int    `json:"status,omitempty"`  // HTTP status
	Code    int    `json:"code,omitempty"`    // Business code
	Message string `json:"message,omitempty"` // Message
	Errors  any    `json:"errors,omitempty"`  // Validation errors
	Data    any    `json:"data,omitempty"`    // Response data
}

// Success handles success responses.
func Success(w http.ResponseWriter, data ...any) {
	WithStatusCode(w, http.StatusOK, data...)
}

// WithStatusCode handles success responses with custom status code.
func WithStatusCode(w http.ResponseWriter, statusCode int, data ...any) {
	var message string
	var responseData any

	if len(data) > 0 {
		responseData = data[0]
		if strData, ok := responseData.(string); ok {
			message = strData
			responseData = nil
		}
	}

	if responseData != nil {
		writeJSON(w, statusCode, responseData)
		return
	}

	if message == "" {
		message = "ok"
	}
	writeJSON(w, statusCode, map[string]any{"message": message})
}

// Fail handles failure responses.
func Fail(w http.ResponseWriter, r *Exception) {
	if r == nil {
		r = &Exception{
			Status:  http.StatusInternalServerError,
			Code:    ecode.ServerErr,
			Message: ecode.Text(ecode.ServerErr),
		}
	}

	status := r.Status
	if status == 0 {
		status = ecode.ToHTTPStatus(r.Code)
	}
	code := r.Code
	if code == 0 {
		code = ecode.RequestErr
	}
	message := r.Message
	if message == "" {
		message = ecode.Text(code)
	}

	writeJSON(w, status, &Exception{
		Code:    code,
		Message: message,
		Errors:  r.Errors,
	})
}

// writeJSON writes the response body with the given status code.
func writeJSON(w http.ResponseWriter, code int, res any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		http.Error(w, "Failed to encode JSON response", http.StatusInternalServerError)
	}
}
