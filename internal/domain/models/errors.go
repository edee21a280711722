package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies forecasting failures so callers can decide whether to
// retry with different parameters or surface the message as is.
type ErrorKind string

const (
	KindParameter   ErrorKind = "parameter"
	KindData        ErrorKind = "data"
	KindComputation ErrorKind = "computation"
)

// ForecastError is the structured error returned by the engine.
type ForecastError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *ForecastError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Unwrap returns underlying error.
func (e *ForecastError) Unwrap() error {
	return e.Err
}

// NewParameterError creates a parameter error (bad horizon, unknown method).
func NewParameterError(format string, a ...interface{}) *ForecastError {
	return &ForecastError{Kind: KindParameter, Message: fmt.Sprintf(format, a...)}
}

// NewDataError creates a data error (missing indicator, too few values).
func NewDataError(format string, a ...interface{}) *ForecastError {
	return &ForecastError{Kind: KindData, Message: fmt.Sprintf(format, a...)}
}

// NewComputationError creates a computation error (violated method precondition).
func NewComputationError(format string, a ...interface{}) *ForecastError {
	return &ForecastError{Kind: KindComputation, Message: fmt.Sprintf(format, a...)}
}

// KindOf returns the kind of the first ForecastError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var fe *ForecastError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err carries a ForecastError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
