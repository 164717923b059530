package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/adaptivenexus/scandoq-chatboat/internal/domain"
)

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data any `json:"data"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// inProgressRetryAfter is the Retry-After hint, in seconds, sent while a
// document is being ingested.
const inProgressRetryAfter = "5"

var statusByCode = map[string]int{
	domain.ErrCodeValidation:    http.StatusBadRequest,
	domain.ErrCodeUnsupported:   http.StatusBadRequest,
	domain.ErrCodeEmptyDocument: http.StatusBadRequest,
	domain.ErrCodeNotFound:      http.StatusNotFound,
	domain.ErrCodeInProgress:    http.StatusConflict,
	domain.ErrCodeCredential:    http.StatusServiceUnavailable,
	domain.ErrCodeEmbedding:     http.StatusServiceUnavailable,
	domain.ErrCodeStore:         http.StatusServiceUnavailable,
	domain.ErrCodeGeneration:    http.StatusServiceUnavailable,
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("api: failed to encode response: %v", err)
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// StatusFor maps an error to the HTTP status it is reported with.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}
	if status, ok := statusByCode[domainErr.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HandleError writes the error response for err. Domain errors expose their
// message; anything else is logged and reported generically.
func HandleError(w http.ResponseWriter, err error) {
	status := StatusFor(err)

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		log.Printf("api: unhandled error: %v", err)
		JSON(w, status, ErrorResponse{Error: "internal error", Code: domain.ErrCodeInternalError})
		return
	}

	if domainErr.Code == domain.ErrCodeInProgress {
		w.Header().Set("Retry-After", inProgressRetryAfter)
	}
	JSON(w, status, ErrorResponse{Error: domainErr.Message, Code: domainErr.Code})
}
