// Package domain defines core types, interfaces, and errors for the
// deterministic data layer.
package domain

import "fmt"

// SpecNotFoundError indicates a query id that is not present in the registry.
type SpecNotFoundError struct {
	Message string
}

func (e *SpecNotFoundError) Error() string { return e.Message }

// DuplicateSpecError indicates two loaded spec documents share an id.
// Fatal at load time.
type DuplicateSpecError struct {
	Message string
}

func (e *DuplicateSpecError) Error() string { return e.Message }

// ConnectorError indicates a source-side failure: network, timeout, or a
// malformed payload. Fatal for the call; never retried internally.
type ConnectorError struct {
	Source  string
	Message string
	Err     error
}

func (e *ConnectorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connector %s: %s: %v", e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("connector %s: %s", e.Source, e.Message)
}

func (e *ConnectorError) Unwrap() error { return e.Err }

// TransformError indicates an unknown transform name or invalid parameters.
// Aborts the whole pipeline; no partial results.
type TransformError struct {
	Step    string
	Message string
}

func (e *TransformError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("transform %s: %s", e.Step, e.Message)
	}
	return e.Message
}

// ValidationError indicates an invalid spec document or invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrSpecNotFound creates a SpecNotFoundError with a formatted message.
func ErrSpecNotFound(format string, args ...interface{}) *SpecNotFoundError {
	return &SpecNotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrDuplicateSpec creates a DuplicateSpecError with a formatted message.
func ErrDuplicateSpec(format string, args ...interface{}) *DuplicateSpecError {
	return &DuplicateSpecError{Message: fmt.Sprintf(format, args...)}
}

// ErrConnector creates a ConnectorError for the given source kind.
func ErrConnector(source string, err error, format string, args ...interface{}) *ConnectorError {
	return &ConnectorError{Source: source, Message: fmt.Sprintf(format, args...), Err: err}
}

// ErrTransform creates a TransformError for the given step name.
func ErrTransform(step string, format string, args ...interface{}) *TransformError {
	return &TransformError{Step: step, Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
