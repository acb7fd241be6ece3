package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"signagehub/internal/logging"
	"signagehub/internal/model"
)

// Error codes used in the error envelope
const (
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeValidation   = model.CodeValidation
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeTokenExpired = "TOKEN_EXPIRED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 64 << 10

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and message
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		// headers are already sent; nothing useful to do on failure
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes {"error": {"code": "ERROR_CODE", "message": "..."}}
func WriteError(w http.ResponseWriter, status int, code string, message string) {
	WriteJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// WriteBadRequest writes a 400 Bad Request error
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// WriteUnauthorized writes a 401 with the generic message used for every auth failure
func WriteUnauthorized(w http.ResponseWriter) {
	WriteError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "unauthorized")
}

// WriteNotFound writes a 404 Not Found error
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// WriteConflict writes a 409 Conflict error
func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, ErrCodeConflict, message)
}

// WriteInternalError writes a 500 Internal Server Error
func WriteInternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
}

// DecodeJSON reads a bounded JSON body into dst. It writes the 400 itself and
// returns false when the body is unusable.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			WriteBadRequest(w, "request body is required")
		case errors.As(err, &maxErr):
			WriteBadRequest(w, "request body too large")
		default:
			WriteBadRequest(w, "invalid JSON body")
		}
		return false
	}
	return true
}

// WriteServiceError maps a service error to its status. Unexpected errors are
// logged and never echoed to the caller.
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	var vErr *model.ValidationError
	switch {
	case errors.As(err, &vErr):
		WriteError(w, http.StatusBadRequest, ErrCodeValidation, vErr.Message)
	case errors.Is(err, model.ErrInvalidPairingCode), errors.Is(err, model.ErrSessionClosed):
		WriteError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, model.ErrUnauthorized):
		WriteUnauthorized(w)
	case model.IsConflict(err):
		WriteConflict(w, err.Error())
	case errors.Is(err, model.ErrDisplayNotFound):
		WriteNotFound(w, "display not found")
	case errors.Is(err, model.ErrKeyNotFound):
		WriteNotFound(w, "display key not found")
	default:
		entry := logger.WithFields(logging.Fields{"method": r.Method, "path": r.URL.Path})
		if errors.Is(err, model.ErrManifestIntegrity) {
			entry = entry.WithField("integrity", true)
		}
		entry.WithError(err).Error("request failed")
		WriteInternalError(w)
	}
}
