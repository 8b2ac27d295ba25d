package errors

import (
	stderrors "errors"
	"fmt"
)

// As and Is re-export the standard helpers so callers of this package do not
// need a second errors import.
func As(err error, target interface{}) bool { return stderrors.As(err, target) }

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// Code classifies a status-engine error. Configuration errors are fatal for
// the one instance they concern; transport errors on auxiliary fetches (mesh,
// autoscaling) are contained at the orchestrator boundary and surfaced as
// data on the snapshot instead.
type Code string

const (
	ErrUnknownInstanceType Code = "UNKNOWN_INSTANCE_TYPE"
	ErrConfigLoad          Code = "CONFIG_LOAD"
	ErrMeshNotConfigured   Code = "MESH_NOT_CONFIGURED"
	ErrNoMeshLocations     Code = "NO_MESH_LOCATIONS"
	ErrMeshTransport       Code = "MESH_TRANSPORT"
	ErrSchedulerTransport  Code = "SCHEDULER_TRANSPORT"
	ErrAutoscalingFetch    Code = "AUTOSCALING_FETCH"
	ErrSetStateUnsupported Code = "SET_STATE_UNSUPPORTED"
	ErrSetStateFailed      Code = "SET_STATE_FAILED"
)

// StatusError is a typed engine error with code, component, and optional
// wrapped cause.
type StatusError struct {
	Code      Code
	Component string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause for errors.Is/As compatibility.
func (e *StatusError) Unwrap() error {
	return e.Err
}

// New creates a StatusError without a wrapped cause.
func New(code Code, component, format string, args ...interface{}) *StatusError {
	return &StatusError{
		Code:      code,
		Component: component,
		Message:   fmt.Sprintf(format, args...),
	}
}

// Wrap creates a StatusError around an underlying cause.
func Wrap(code Code, component string, err error, format string, args ...interface{}) *StatusError {
	return &StatusError{
		Code:      code,
		Component: component,
		Message:   fmt.Sprintf(format, args...),
		Err:       err,
	}
}

// CodeOf extracts the error code, or "" for untyped errors.
func CodeOf(err error) Code {
	var se *StatusError
	if As(err, &se) {
		return se.Code
	}
	return ""
}

// IsConfiguration reports whether the error is a configuration error: the
// instance can never produce a status until its config changes.
func IsConfiguration(err error) bool {
	switch CodeOf(err) {
	case ErrUnknownInstanceType, ErrConfigLoad, ErrMeshNotConfigured, ErrNoMeshLocations:
		return true
	}
	return false
}
