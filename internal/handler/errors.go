package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/quarry-io/quarry/internal/qerrors"
)

// ErrorCode represents application-specific error codes.
type ErrorCode string

const (
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorCodeInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrorCodeServiceDown    ErrorCode = "SERVICE_UNAVAILABLE"
	ErrorCodeRateLimited    ErrorCode = "RATE_LIMITED"

	ErrorCodeDatasetNotFound ErrorCode = "DATASET_NOT_FOUND"
	ErrorCodeAlreadyExists   ErrorCode = "ALREADY_EXISTS"
	ErrorCodeUpstreamReject  ErrorCode = "UPSTREAM_REJECTED"
	ErrorCodeUnsafeContent   ErrorCode = "UNSAFE_CONTENT"
)

// ErrorResponse represents the standard error response format.
type ErrorResponse struct {
	Status    string    `json:"status"`
	ErrorCode ErrorCode `json:"error_code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// ErrorWriter maps service errors onto HTTP responses.
type ErrorWriter struct {
	logger *zap.Logger
}

// NewErrorWriter creates a new error writer.
func NewErrorWriter(logger *zap.Logger) *ErrorWriter {
	return &ErrorWriter{logger: logger}
}

// HandleError processes an error and writes an appropriate HTTP response.
func (e *ErrorWriter) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	kind := qerrors.KindOf(err)
	requestID := r.Header.Get("X-Request-ID")
	e.WriteErrorResponse(w, kindToHTTPStatus(kind), kindToErrorCode(kind), err.Error(), requestID)
}

func kindToHTTPStatus(kind qerrors.Kind) int {
	switch kind {
	case qerrors.KindInvalid:
		return http.StatusBadRequest
	case qerrors.KindNotFound:
		return http.StatusNotFound
	case qerrors.KindConflict:
		return http.StatusConflict
	case qerrors.KindSecurity:
		return http.StatusUnprocessableEntity
	case qerrors.KindRejected:
		return http.StatusBadGateway
	case qerrors.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func kindToErrorCode(kind qerrors.Kind) ErrorCode {
	switch kind {
	case qerrors.KindInvalid:
		return ErrorCodeInvalidRequest
	case qerrors.KindNotFound:
		return ErrorCodeDatasetNotFound
	case qerrors.KindConflict:
		return ErrorCodeAlreadyExists
	case qerrors.KindSecurity:
		return ErrorCodeUnsafeContent
	case qerrors.KindRejected:
		return ErrorCodeUpstreamReject
	case qerrors.KindTransient:
		return ErrorCodeServiceDown
	default:
		return ErrorCodeInternalError
	}
}

// WriteErrorResponse writes a formatted error response to the HTTP response writer.
func (e *ErrorWriter) WriteErrorResponse(w http.ResponseWriter, statusCode int, errorCode ErrorCode, message string, requestID string) {
	e.logger.Warn("HTTP error response",
		zap.Int("status_code", statusCode),
		zap.String("error_code", string(errorCode)),
		zap.String("message", message),
		zap.String("request_id", requestID),
	)

	resp := ErrorResponse{
		Status:    "error",
		ErrorCode: errorCode,
		Message:   message,
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// WriteValidationError writes a validation error response.
func (e *ErrorWriter) WriteValidationError(w http.ResponseWriter, message string, requestID string) {
	e.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest, message, requestID)
}

// WriteRateLimitedError writes a rate limit exceeded response.
func (e *ErrorWriter) WriteRateLimitedError(w http.ResponseWriter, requestID string) {
	e.WriteErrorResponse(w, http.StatusTooManyRequests, ErrorCodeRateLimited, "rate limit exceeded", requestID)
}
