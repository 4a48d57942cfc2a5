package response

import (
	"errors"

	"backoffice/internal/apperror"
)

// Response represents a standard API response format
type Response struct {
	Status     string         `json:"status"`      // "success" or "error"
	StatusCode int            `json:"status_code"` // HTTP status code
	Data       interface{}    `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	Code       string         `json:"code,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// ErrorFrom maps a service error to its HTTP status and response body.
// Untyped errors are reported as internal without leaking their text.
func ErrorFrom(err error) (int, Response) {
	status := apperror.HTTPStatus(err)
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		res := Error(status, "internal error")
		res.Code = apperror.CodeInternal
		return status, res
	}
	res := Error(status, appErr.Error())
	res.Code = appErr.Code
	res.Details = appErr.Details
	return status, res
}
