package dragonscale

import (
	"context"
	"errors"
	"fmt"
)

// Error codes for specific failure types
const (
	ErrCodeInvalidPrompt  = "INVALID_PROMPT"
	ErrCodeRetrieval      = "RETRIEVAL_ERROR"
	ErrCodeToolDefinition = "TOOL_DEFINITION_ERROR"
	ErrCodeConfiguration  = "CONFIGURATION_ERROR"
	ErrCodeCancelled      = "EXECUTION_CANCELLED"
	ErrCodeTimeout        = "EXECUTION_TIMEOUT"
)

// Stages reported on errors and events.
const (
	StageContext = "context"
	StageTools   = "tools"
	StageInit    = "initialization"
)

// DragonScaleError is the error type returned by every resolver.
type DragonScaleError struct {
	Code    string // A machine-readable error code (e.g., ErrCodeRetrieval)
	Message string // A human-readable message
	Stage   string // The stage where the error occurred (e.g., "context", "tools")
	Cause   error  // The underlying error, if any
}

// Error implements the error interface.
func (e *DragonScaleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Stage, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Stage, e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error, allowing for error chaining.
func (e *DragonScaleError) Unwrap() error {
	return e.Cause
}

// NewError creates a new DragonScaleError.
func NewError(code, stage, message string, cause error) *DragonScaleError {
	return &DragonScaleError{
		Code:    code,
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// IsCode reports whether err, or any error it wraps, is a DragonScaleError with the given code.
func IsCode(err error, code string) bool {
	var dsErr *DragonScaleError
	for err != nil {
		if !errors.As(err, &dsErr) {
			return false
		}
		if dsErr.Code == code {
			return true
		}
		err = dsErr.Cause
	}
	return false
}

func NewInvalidPromptError(stage string) *DragonScaleError {
	return NewError(ErrCodeInvalidPrompt, stage, "invalid prompt: no retrievable text", nil)
}

func NewRetrievalError(stage string, source int, cause error) *DragonScaleError {
	return NewError(ErrCodeRetrieval, stage, fmt.Sprintf("query against source %d failed", source), cause)
}

func NewToolDefinitionError(stage, toolName string, cause error) *DragonScaleError {
	return NewError(ErrCodeToolDefinition, stage, fmt.Sprintf("definition failed for tool '%s'", toolName), cause)
}

func NewConfigurationError(message string, cause error) *DragonScaleError {
	return NewError(ErrCodeConfiguration, StageInit, message, cause)
}

func NewCancelledError(stage string, cause error) *DragonScaleError {
	return NewError(ErrCodeCancelled, stage, "resolution cancelled", cause)
}

func NewTimeoutError(stage string, cause error) *DragonScaleError {
	return NewError(ErrCodeTimeout, stage, "resolution timed out", cause)
}

// contextError converts a done context into a cancelled or timeout error.
func contextError(stage string, err error) *DragonScaleError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(stage, err)
	}
	return NewCancelledError(stage, err)
}
