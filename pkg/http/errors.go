package http

import (
	"errors"
	"fmt"
	"net/http"

	"EconCast/internal/domain/models"
	domrepo "EconCast/internal/domain/repository"
)

// AppError is the client-facing error body.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
	Status  int            `json:"-"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func newAppError(code string, status int, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: cause}
}

// BadRequestError creates a 400 error.
func BadRequestError(message string) *AppError {
	return newAppError("ERR_BAD_REQUEST", http.StatusBadRequest, message, nil)
}

var kindStatus = map[models.ErrorKind]struct {
	code   string
	status int
}{
	models.KindParameter:   {"ERR_PARAMETER", http.StatusBadRequest},
	models.KindData:        {"ERR_DATA", http.StatusNotFound},
	models.KindComputation: {"ERR_COMPUTATION", http.StatusUnprocessableEntity},
}

// FromError maps a service error onto an AppError. Forecast error kinds
// become 400, 404 and 422; an unavailable dataset becomes 503; anything else
// is a 500 with the cause hidden from the client.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var fe *models.ForecastError
	if errors.As(err, &fe) {
		m, ok := kindStatus[fe.Kind]
		if !ok {
			m = kindStatus[models.KindComputation]
		}
		e := newAppError(m.code, m.status, fe.Message, err)
		e.Params = map[string]any{"kind": string(fe.Kind)}
		return e
	}

	if errors.Is(err, domrepo.ErrDatasetUnavailable) {
		return newAppError("ERR_UNAVAILABLE", http.StatusServiceUnavailable, "dataset unavailable", err)
	}
	return newAppError("ERR_INTERNAL", http.StatusInternalServerError, "Something went wrong", err)
}
