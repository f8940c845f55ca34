package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeDimensionMismatch   = "DIMENSION_MISMATCH"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidSource        = NewDomainError(ErrCodeValidation, "invalid source")
	ErrInvalidCategory      = NewDomainError(ErrCodeValidation, "invalid category")
	ErrInvalidDocumentType  = NewDomainError(ErrCodeValidation, "invalid document type")
	ErrInvalidPersona       = NewDomainError(ErrCodeValidation, "invalid persona")
	ErrEmptyQuery           = NewDomainError(ErrCodeValidation, "query is required")
	ErrContentTooShort      = NewDomainError(ErrCodeValidation, "content is too short to ingest")
	ErrContentTooLong       = NewDomainError(ErrCodeValidation, "content exceeds maximum length")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrKnowledgeItemNotFound = NewDomainError(ErrCodeNotFound, "knowledge item not found")
	ErrIngestJobNotFound     = NewDomainError(ErrCodeNotFound, "ingest job not found")
)

// Upstream errors
var (
	ErrEmbeddingUnavailable  = NewDomainError(ErrCodeUpstreamUnavailable, "embedding model unavailable")
	ErrCompletionUnavailable = NewDomainError(ErrCodeUpstreamUnavailable, "completion model unavailable")
)

// Defensive errors. A dimension mismatch means the configured embedding model
// disagrees with the store schema and must never be papered over.
var (
	ErrDimensionMismatch = NewDomainError(ErrCodeDimensionMismatch, "embedding dimensionality does not match the store")
)
