package api

import (
	"errors"
	"net/http"

	"github.com/savak1990/my-dogs/internal/apperr"
	"go.uber.org/zap"
)

// BadRequest writes a 400 validation error response.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, ErrorBody{Error: "Bad Request", Message: msg, Type: "validation_error"})
}

// Forbidden writes a 403 error response.
func Forbidden(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusForbidden, ErrorBody{Error: "Forbidden", Message: msg})
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusNotFound, ErrorBody{Error: "Not Found", Message: msg})
}

// Conflict writes a 409 error response.
func Conflict(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusConflict, ErrorBody{Error: "Conflict", Message: msg})
}

// TooLarge writes a 413 error response.
func TooLarge(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusRequestEntityTooLarge, ErrorBody{Error: "Request Entity Too Large", Message: msg})
}

// Unavailable writes a 503 error response.
func Unavailable(w http.ResponseWriter) {
	WriteJSON(w, http.StatusServiceUnavailable, ErrorBody{
		Error:   "Service Unavailable",
		Message: "A backing store is unavailable, please retry",
	})
}

// Internal writes an opaque 500 error response.
func Internal(w http.ResponseWriter) {
	WriteJSON(w, http.StatusInternalServerError, ErrorBody{
		Error:   "Internal Server Error",
		Message: "An unexpected error occurred",
	})
}

// WriteError maps an error kind to its HTTP response. Details of store and
// unexpected failures go to the log only.
func WriteError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrParse):
		BadRequest(w, apperr.Message(err))
	case errors.Is(err, apperr.ErrNotFound):
		NotFound(w, apperr.Message(err))
	case errors.Is(err, apperr.ErrVersionConflict):
		Conflict(w, apperr.Message(err))
	case errors.Is(err, apperr.ErrStoreUnavailable):
		logger.Error("backing store unavailable", zap.Error(err))
		Unavailable(w)
	default:
		logger.Error("unhandled error", zap.Error(err))
		Internal(w)
	}
}
