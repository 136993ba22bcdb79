package resp

import (
	"net/http"

	"github.com/filedepot/filedepot/ecode"
)

// BadRequest builds a 400 exception.
func BadRequest(message string, errs ...any) *Exception {
	return newException(http.StatusBadRequest, ecode.RequestErr, message, errs...)
}

// NotFound builds a 404 exception.
func NotFound(message string, errs ...any) *Exception {
	return newException(http.StatusNotFound, ecode.NotFound, message, errs...)
}

// Conflict builds a 409 exception.
func Conflict(message string, errs ...any) *Exception {
	return newException(http.StatusConflict, ecode.Conflict, message, errs...)
}

// NotReady builds a 409 exception for jobs still in flight.
func NotReady(message string, errs ...any) *Exception {
	return newException(http.StatusConflict, ecode.NotReady, message, errs...)
}

// JobFailed builds a 422 exception carrying the stored failure detail.
func JobFailed(message string, errs ...any) *Exception {
	return newException(http.StatusUnprocessableEntity, ecode.JobFailed, message, errs...)
}

// InternalServer builds a 500 exception.
func InternalServer(message string, errs ...any) *Exception {
	return newException(http.StatusInternalServerError, ecode.ServerErr, message, errs...)
}

// ServiceUnavailable builds a 503 exception.
func ServiceUnavailable(message string, errs ...any) *Exception {
	return newException(http.StatusServiceUnavailable, ecode.ServiceUnavailable, message, errs...)
}

func newException(status, code int, message string, errs ...any) *Exception {
	e := &Exception{
		Status:  status,
		Code:    code,
		Message: message,
	}
	if len(errs) > 0 {
		e.Errors = errs[0]
	}
	return e
}
