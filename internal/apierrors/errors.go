// Package apierrors is the JSON error envelope the DMS HTTP API returns,
// grounded on the teacher service's internal/api/errors package but
// trimmed to the five kinds the deployment manager actually needs.
package apierrors

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrorCode classifies the kind of failure so agents and operators can
// branch on it without parsing the message string.
type ErrorCode string

const (
	CodeValidationError     ErrorCode = "VALIDATION_ERROR"
	CodeAuthenticationError ErrorCode = "AUTHENTICATION_ERROR"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeConflict            ErrorCode = "CONFLICT"
	CodeInternalError       ErrorCode = "INTERNAL_ERROR"
)

var statusByCode = map[ErrorCode]int{
	CodeValidationError:     http.StatusBadRequest,
	CodeAuthenticationError: http.StatusUnauthorized,
	CodeNotFound:            http.StatusNotFound,
	CodeConflict:            http.StatusConflict,
	CodeInternalError:       http.StatusInternalServerError,
}

// APIError is the body of every non-2xx response.
type APIError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse wraps APIError the way the teacher's error envelope does.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

func New(code ErrorCode, message string) *APIError {
	return &APIError{Code: code, Message: message, Timestamp: time.Now()}
}

func ValidationError(message string) *APIError { return New(CodeValidationError, message) }
func AuthError(message string) *APIError        { return New(CodeAuthenticationError, message) }
func NotFound(message string) *APIError         { return New(CodeNotFound, message) }
func Conflict(message string) *APIError         { return New(CodeConflict, message) }
func InternalError(message string) *APIError    { return New(CodeInternalError, message) }

// WithRequestID attaches the current request id for correlation.
func (e *APIError) WithRequestID(id string) *APIError {
	e.RequestID = id
	return e
}

// WriteError writes the error as a JSON envelope with the status code
// matching its ErrorCode.
func WriteError(w http.ResponseWriter, err *APIError) {
	status, ok := statusByCode[err.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: *err})
}
