package common

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType classifies failures by what the caller can do about them,
// not by remote HTTP status.
type ErrorType string

const (
	// ErrorTypeInvalidInput for malformed or missing request data; no remote calls made
	ErrorTypeInvalidInput ErrorType = "invalid_input"
	// ErrorTypeSetup for preconditions that keep a run from starting at all
	ErrorTypeSetup ErrorType = "setup"
	// ErrorTypeParentNotFound when the designated parent issue/project does not exist
	ErrorTypeParentNotFound ErrorType = "parent_not_found"
	// ErrorTypeMissingData when a referenced entity exists but lacks required data
	ErrorTypeMissingData ErrorType = "missing_data"
	// ErrorTypeSync for failures during the create/rewrite flow
	ErrorTypeSync ErrorType = "sync"
	// ErrorTypeUndo for failures during reversal
	ErrorTypeUndo ErrorType = "undo"
	// ErrorTypeNetwork for transient network/rate-limit conditions
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeAuth for authentication/authorization failures
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeValidation for configuration validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeStorage for history-store persistence errors
	ErrorTypeStorage ErrorType = "storage"
)

// SyncError is a structured error with classification and context.
type SyncError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
}

// Error implements the error interface
func (e *SyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *SyncError) WithContext(key string, value interface{}) *SyncError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause sets the underlying cause
func (e *SyncError) WithCause(cause error) *SyncError {
	e.Cause = cause
	return e
}

// NewError creates a new SyncError
func NewError(errorType ErrorType, code, message string) *SyncError {
	return &SyncError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewInvalidInputError creates an invalid-input error
func NewInvalidInputError(code, message string) *SyncError {
	return NewError(ErrorTypeInvalidInput, code, message)
}

// NewSetupError creates a setup error
func NewSetupError(code, message string) *SyncError {
	return NewError(ErrorTypeSetup, code, message)
}

// NewParentNotFoundError creates a parent-not-found error
func NewParentNotFoundError(code, message string) *SyncError {
	return NewError(ErrorTypeParentNotFound, code, message)
}

// NewMissingDataError creates a missing-required-data error
func NewMissingDataError(code, message string) *SyncError {
	return NewError(ErrorTypeMissingData, code, message)
}

// NewSyncFailure creates a sync-flow error
func NewSyncFailure(code, message string) *SyncError {
	return NewError(ErrorTypeSync, code, message)
}

// NewUndoFailure creates an undo-flow error
func NewUndoFailure(code, message string) *SyncError {
	return NewError(ErrorTypeUndo, code, message)
}

// NewStorageError creates a history-store error
func NewStorageError(code, message string) *SyncError {
	return NewError(ErrorTypeStorage, code, message)
}

// WrapError wraps an existing error with SyncError classification
func WrapError(err error, errorType ErrorType, code, message string) *SyncError {
	return &SyncError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     err,
	}
}

// IsType reports whether err is (or wraps) a SyncError of the given type.
func IsType(err error, errorType ErrorType) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Type == errorType
	}
	return false
}
