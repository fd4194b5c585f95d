package domain

import (
	"errors"
	"fmt"
)

// ErrorCode is the machine-readable failure kind carried by every AppError.
type ErrorCode string

const (
	CodeConfiguration  ErrorCode = "configuration_error"
	CodeDataProcessing ErrorCode = "data_processing_error"
	CodeEmbedding      ErrorCode = "embedding_error"
	CodeVectorStore    ErrorCode = "vector_store_error"
	CodeLLM            ErrorCode = "llm_error"
	CodeRetrieval      ErrorCode = "retrieval_error"
	CodeValidation     ErrorCode = "validation_error"
)

// AppError is the uniform error shape for the engine: a code, a human
// message, an optional details map, and the wrapped cause. The calling
// boundary serializes any failure through ToMap.
type AppError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// ToMap renders the error for an API response body.
func (e *AppError) ToMap() map[string]any {
	m := map[string]any{
		"error":   string(e.Code),
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		m["details"] = e.Details
	}
	return m
}

// WithDetail attaches one detail entry and returns the error for chaining.
func (e *AppError) WithDetail(key string, val any) *AppError {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = val
	return e
}

// E creates an AppError of the given kind wrapping cause (which may be nil).
func E(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Err: cause}
}

// CodeOf extracts the error code from err, or empty string if err carries
// no AppError.
func CodeOf(err error) ErrorCode {
	var app *AppError
	if errors.As(err, &app) {
		return app.Code
	}
	return ""
}
