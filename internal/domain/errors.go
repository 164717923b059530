package domain

import (
	"errors"
	"fmt"
)

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

// Is reports whether target is a DomainError with the same code and message,
// so sentinels still match after Wrap.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
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
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeInProgress    = "INGESTION_IN_PROGRESS"
	ErrCodeUnsupported   = "UNSUPPORTED_FORMAT"
	ErrCodeEmptyDocument = "EMPTY_DOCUMENT"
	ErrCodeEmbedding     = "EMBEDDING_UNAVAILABLE"
	ErrCodeStore         = "STORE_UNAVAILABLE"
	ErrCodeGeneration    = "GENERATION_FAILED"
	ErrCodeCredential    = "CREDENTIAL_MISSING"
)

// Validation errors
var (
	ErrInvalidJobStatus     = NewDomainError(ErrCodeValidation, "invalid ingestion job status")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyQuery           = NewDomainError(ErrCodeValidation, "query is required")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrFileNotFound     = NewDomainError(ErrCodeNotFound, "document content not found")
)

// Pipeline errors
var (
	ErrUnsupportedFormat    = NewDomainError(ErrCodeUnsupported, "Unsupported file format")
	ErrEmptyDocument        = NewDomainError(ErrCodeEmptyDocument, "Empty document (could not extract text)")
	ErrEmbeddingUnavailable = NewDomainError(ErrCodeEmbedding, "embedding unavailable")
	ErrStoreUnavailable     = NewDomainError(ErrCodeStore, "vector store unavailable")
	ErrGenerationFailed     = NewDomainError(ErrCodeGeneration, "generation failed")
	ErrCredentialMissing    = NewDomainError(ErrCodeCredential, "Missing API Key")
	ErrIngestionInProgress  = NewDomainError(ErrCodeInProgress, "document is already being processed")
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
)

// CodeOf returns the DomainError code carried by err, or ErrCodeInternalError.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternalError
}

// IsSkippable reports whether err only affects a single item of a batch.
func IsSkippable(err error) bool {
	return CodeOf(err) == ErrCodeEmbedding
}

// IsRetryable reports whether retrying the same operation later can succeed.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case ErrCodeUnsupported, ErrCodeEmptyDocument, ErrCodeNotFound,
		ErrCodeCredential, ErrCodeValidation:
		return false
	}
	return true
}

// Wrap attaches cause to a sentinel DomainError, keeping its code and message.
func Wrap(sentinel *DomainError, cause error) *DomainError {
	return NewDomainErrorWithCause(sentinel.Code, sentinel.Message, cause)
}
