// Package ecode defines standardized business error codes for API responses
// and maps them to HTTP statuses.
//
// Error codes follow a standardized numbering scheme:
//   - 0: Success (OK)
//   - -400 to -499: Request / business errors
//   - -500+: Server errors
package ecode

import "net/http"

const (
	// OK indicates success.
	OK = 0

	// RequestErr indicates an invalid request.
	RequestErr = -400
	// ParamErr indicates invalid parameters.
	ParamErr = -401
	// NotFound indicates the resource does not exist.
	NotFound = -404
	// Conflict indicates a resource conflict, including optimistic
	// concurrency losses on job transitions.
	Conflict = -409
	// NotReady indicates the job has not finished processing.
	NotReady = -425
	// JobFailed indicates the job reached a terminal failure.
	JobFailed = -422

	// ServerErr indicates an internal server error.
	ServerErr = -500
	// StorageErr indicates an artifact storage failure.
	StorageErr = -502
	// ServiceUnavailable indicates a backing service is unavailable.
	ServiceUnavailable = -503
)

var messages = map[int]string{
	OK:                 "success",
	RequestErr:         "invalid request",
	ParamErr:           "invalid parameters",
	NotFound:           "resource not found",
	Conflict:           "resource conflict",
	NotReady:           "job not ready",
	JobFailed:          "job failed",
	ServerErr:          "internal server error",
	StorageErr:         "storage failure",
	ServiceUnavailable: "service unavailable",
}

var httpStatuses = map[int]int{
	OK:                 http.StatusOK,
	RequestErr:         http.StatusBadRequest,
	ParamErr:           http.StatusBadRequest,
	NotFound:           http.StatusNotFound,
	Conflict:           http.StatusConflict,
	NotReady:           http.StatusConflict,
	JobFailed:          http.StatusUnprocessableEntity,
	ServerErr:          http.StatusInternalServerError,
	StorageErr:         http.StatusServiceUnavailable,
	ServiceUnavailable: http.StatusServiceUnavailable,
}

// Text returns the human-readable message for a code.
func Text(code int) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[ServerErr]
}

// ToHTTPStatus maps a business code to an HTTP status.
func ToHTTPStatus(code int) int {
	if status, ok := httpStatuses[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
