// Package errors provides standardized error handling for the automation pipeline.
package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeStrategyNotFound            ErrorCode = "STRATEGY_NOT_FOUND"
	ErrCodeApplicationValidationFailed ErrorCode = "APPLICATION_VALIDATION_FAILED"

	ErrCodeDraftGenerationFailed   ErrorCode = "DRAFT_GENERATION_FAILED"
	ErrCodePackagingFailed         ErrorCode = "PACKAGING_FAILED"
	ErrCodeRecordPersistenceFailed ErrorCode = "RECORD_PERSISTENCE_FAILED"

	ErrCodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeJobNotFound    ErrorCode = "JOB_NOT_FOUND"
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	ErrCodeRunTimeout    ErrorCode = "RUN_TIMEOUT"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// Error categories.
const (
	CategoryConfiguration = "CONFIGURATION"
	CategoryValidation    = "VALIDATION"
	CategoryTransientIO   = "TRANSIENT_IO"
	CategoryNotFound      = "NOT_FOUND"
	CategoryClient        = "CLIENT"
	CategoryInternal      = "INTERNAL"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata sets a metadata key and returns the error for chaining.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func detailsOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 2. Error Constructors
// ==========================

// NewStrategyNotFoundError creates a non-retryable configuration error.
func NewStrategyNotFoundError(registrationType string, cause error) *StandardError {
	e := newError(ErrCodeStrategyNotFound,
		fmt.Sprintf("Strategy not found for type: %s", registrationType),
		"", false, cause)
	return e.WithMetadata("registrationType", registrationType)
}

// NewApplicationValidationError creates a non-retryable validation error.
// issues lists the individual field or document problems.
func NewApplicationValidationError(details string, issues []string) *StandardError {
	e := newError(ErrCodeApplicationValidationFailed, "Application validation failed", details, false, nil)
	if len(issues) > 0 {
		e.WithMetadata("issues", issues)
		if details == "" {
			e.Details = strings.Join(issues, "; ")
		}
	}
	return e
}

// NewDraftGenerationError wraps a renderer failure. Retryable when the cause is.
func NewDraftGenerationError(kind string, err error, retryable bool) *StandardError {
	e := newError(ErrCodeDraftGenerationFailed, "Draft generation failed", detailsOf(err), retryable, err)
	if kind != "" {
		e.WithMetadata("draftKind", kind)
	}
	return e
}

// NewPackagingError wraps a package build failure.
func NewPackagingError(err error) *StandardError {
	return newError(ErrCodePackagingFailed, "Failed to build filing package", detailsOf(err), true, err)
}

// NewRecordPersistenceError creates a retryable store error.
func NewRecordPersistenceError(op string, err error) *StandardError {
	e := newError(ErrCodeRecordPersistenceFailed, "Record persistence failed", detailsOf(err), true, err)
	return e.WithMetadata("operation", op)
}

// NewRecordNotFoundError creates a non-retryable not-found error.
func NewRecordNotFoundError(submissionID string) *StandardError {
	return newError(ErrCodeRecordNotFound, "Application record not found", submissionID, false, nil)
}

// NewJobNotFoundError creates a non-retryable not-found error.
func NewJobNotFoundError(id string) *StandardError {
	return newError(ErrCodeJobNotFound, "Job not found", id, false, nil)
}

// NewInvalidRequestError creates a client error.
func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid request", details, false, nil)
}

// NewRunTimeoutError is raised when a run exceeds its deadline.
func NewRunTimeoutError(err error) *StandardError {
	return newError(ErrCodeRunTimeout, "Automation run timed out", detailsOf(err), false, err)
}

// NewInternalError wraps anything unclassified.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternalError, "Unexpected error", detailsOf(err), false, err)
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandardError extracts a StandardError from the chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stdErrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return NewRunTimeoutError(err)
	}
	return NewInternalError(err)
}

// IsRetryable reports whether err is a retryable StandardError.
func IsRetryable(err error) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Retryable
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeStrategyNotFound:
		return CategoryConfiguration
	case ErrCodeApplicationValidationFailed:
		return CategoryValidation
	case ErrCodeDraftGenerationFailed, ErrCodePackagingFailed, ErrCodeRecordPersistenceFailed:
		return CategoryTransientIO
	case ErrCodeRecordNotFound, ErrCodeJobNotFound:
		return CategoryNotFound
	case ErrCodeInvalidRequest:
		return CategoryClient
	default:
		return CategoryInternal
	}
}
