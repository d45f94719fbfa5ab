package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/engine"
	"crypto_dash/internal/notify"
)

var ErrInvalidInput = errors.New("invalid input provided")

// AppError is an error with the HTTP status it maps to.
type AppError struct {
	Code    int    `json:"-"`     // HTTP Status Code
	Message string `json:"error"` // User-friendly message
	Err     error  `json:"-"`     // Internal error (for logging)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError attaches a message and status to err.
func WrapError(err error, message string, code int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WriteResponse sends data as JSON with the given status code.
func WriteResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", slog.Any("error", err))
	}
}

// WriteError maps err to a status code and writes {"error": message}.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = classify(err)
	}

	if appErr.Code >= http.StatusInternalServerError {
		slog.Error("Error handling request", slog.Any("error", appErr.Err), slog.String("message", appErr.Message))
	} else {
		slog.Debug("Request rejected", slog.Any("error", appErr.Err), slog.Int("code", appErr.Code))
	}
	WriteResponse(w, appErr.Code, map[string]string{"error": appErr.Message})
}

func classify(err error) *AppError {
	switch {
	case errors.Is(err, domain.ErrInvalidHolding),
		errors.Is(err, domain.ErrInvalidAlert),
		errors.Is(err, ErrInvalidInput):
		return WrapError(err, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrUnknownCoin):
		return WrapError(err, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, engine.ErrNotFound):
		return WrapError(err, err.Error(), http.StatusNotFound)
	case errors.Is(err, notify.ErrAlreadyDecided):
		return WrapError(err, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrStopped):
		return WrapError(err, "Service Unavailable", http.StatusServiceUnavailable)
	default:
		return WrapError(err, "Internal Server Error", http.StatusInternalServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return WrapError(err, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
	}
	return nil
}
