// Package errors defines the sentinel errors of the grocery pipeline and
// an AppError that carries the HTTP status and a client-safe message.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrConfig           = errors.New("configuration error")
	ErrSign             = errors.New("request signing failed")
	ErrRecipeNotFound   = errors.New("recipe not found")
	ErrCartNotFound     = errors.New("record not found")
	ErrDuplicate        = errors.New("record already exists")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidSelection = errors.New("invalid selection")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

// AppError pairs a sentinel with the status and message a client sees.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return e.Err.Error() + ": " + e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

// HTTPStatusCode maps err to a response status. An AppError anywhere in
// the chain wins; bare sentinels fall back to their usual status.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	switch {
	case errors.Is(err, ErrRecipeNotFound), errors.Is(err, ErrCartNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidSelection):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to return to a client: the AppError
// message for 4xx errors and the status text for everything else.
func PublicMessage(err error) string {
	status := HTTPStatusCode(err)
	var appErr *AppError
	if status < 500 && errors.As(err, &appErr) {
		return appErr.Message
	}
	return http.StatusText(status)
}
