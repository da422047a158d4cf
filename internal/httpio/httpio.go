// Package httpio holds the JSON response helpers shared by the controllers.
package httpio

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"stockwise/internal/dto"
	apperrors "stockwise/internal/errors"
)

type validationErrorResponse struct {
	TraceID string                       `json:"traceId"`
	Error   string                       `json:"error"`
	Message string                       `json:"message"`
	Details []apperrors.ValidationDetail `json:"details"`
}

// NewTrace returns a fresh trace id and a logger carrying it.
func NewTrace(logger *zap.Logger) (string, *zap.Logger) {
	traceID := uuid.New().String()
	return traceID, logger.With(zap.String("traceId", traceID))
}

func WriteJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

func WriteValidationError(w http.ResponseWriter, logger *zap.Logger, traceID, message string, details ...apperrors.ValidationDetail) {
	WriteJSON(w, logger, http.StatusBadRequest, validationErrorResponse{
		TraceID: traceID,
		Error:   "VALIDATION_ERROR",
		Message: message,
		Details: details,
	})
}

func WriteErrorResponse(w http.ResponseWriter, logger *zap.Logger, traceID string, status int, code, message string) {
	WriteJSON(w, logger, status, dto.ErrorResponse{
		TraceID:   traceID,
		Status:    status,
		Message:   message,
		Code:      code,
		Timestamp: time.Now().UTC(),
	})
}

// WriteError maps an application error to its HTTP status. Anything not
// typed is logged and answered with a generic 500.
func WriteError(w http.ResponseWriter, logger *zap.Logger, traceID string, err error) {
	if ve, ok := apperrors.IsValidationError(err); ok {
		WriteValidationError(w, logger, traceID, ve.Message, ve.Details...)
		return
	}

	if _, ok := apperrors.IsNotFoundError(err); ok {
		WriteErrorResponse(w, logger, traceID, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}

	if _, ok := apperrors.IsConflictError(err); ok {
		WriteErrorResponse(w, logger, traceID, http.StatusConflict, "CONFLICT", err.Error())
		return
	}

	if _, ok := apperrors.IsDeadlockError(err); ok {
		WriteErrorResponse(w, logger, traceID, http.StatusConflict, "DEADLOCK", err.Error())
		return
	}

	logger.Error("unexpected error", zap.Error(err))
	WriteErrorResponse(w, logger, traceID, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
}

// DecodeJSON decodes the request body into dst, answering 400 itself when
// the body is not valid JSON.
func DecodeJSON(w http.ResponseWriter, r *http.Request, logger *zap.Logger, traceID string, dst interface{}) bool {
	return decode(w, r, logger, traceID, dst, false)
}

// DecodeOptionalJSON is DecodeJSON for endpoints whose body may be omitted.
// An empty body leaves dst untouched.
func DecodeOptionalJSON(w http.ResponseWriter, r *http.Request, logger *zap.Logger, traceID string, dst interface{}) bool {
	return decode(w, r, logger, traceID, dst, true)
}

func decode(w http.ResponseWriter, r *http.Request, logger *zap.Logger, traceID string, dst interface{}, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if optional && errors.Is(err, io.EOF) {
		return true
	}
	if err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		WriteValidationError(w, logger, traceID, "invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
		return false
	}
	return true
}
