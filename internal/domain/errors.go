package domain

import (
	"fmt"
	"net/http"
)

// InvalidClaimDataError reports a structurally malformed claim. It is the
// caller's fault and is never retried.
type InvalidClaimDataError struct {
	Field  string
	Reason string
}

func (e *InvalidClaimDataError) Error() string {
	return fmt.Sprintf("invalid claim data: %s: %s", e.Field, e.Reason)
}

func (e *InvalidClaimDataError) Code() string    { return "INVALID_CLAIM_DATA" }
func (e *InvalidClaimDataError) HTTPStatus() int { return http.StatusBadRequest }

// ModelNotReadyError is returned when scoring is attempted before any trained
// model artifact has been published.
type ModelNotReadyError struct {
	Reason string
}

func (e *ModelNotReadyError) Error() string {
	if e.Reason == "" {
		return "model not ready"
	}
	return "model not ready: " + e.Reason
}

func (e *ModelNotReadyError) Code() string    { return "MODEL_NOT_READY" }
func (e *ModelNotReadyError) HTTPStatus() int { return http.StatusServiceUnavailable }

// InsufficientDataError aborts training when the labelled dataset is too
// small or lacks one of the classes. The previous artifact stays live.
type InsufficientDataError struct {
	Samples   int
	Positives int
	Negatives int
	Min       int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient training data: %d samples (%d fraud, %d genuine), need at least %d with both classes",
		e.Samples, e.Positives, e.Negatives, e.Min)
}

func (e *InsufficientDataError) Code() string    { return "INSUFFICIENT_DATA" }
func (e *InsufficientDataError) HTTPStatus() int { return http.StatusUnprocessableEntity }

// InvalidConfigurationError rejects a configuration update, e.g. risk
// thresholds out of order. Values are never silently clamped.
type InvalidConfigurationError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *InvalidConfigurationError) Code() string    { return "INVALID_CONFIGURATION" }
func (e *InvalidConfigurationError) HTTPStatus() int { return http.StatusUnprocessableEntity }

// CodedError is implemented by every error in the taxonomy above so the HTTP
// layer can map them without a type switch.
type CodedError interface {
	error
	Code() string
	HTTPStatus() int
}
