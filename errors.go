package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/example/apicatalog/internal/account"
	"github.com/example/apicatalog/internal/catalog"
	"github.com/example/apicatalog/internal/session"
	"github.com/example/apicatalog/internal/token"
)

// APIError represents a structured API error response
type APIError struct {
	Code       string              `json:"error_code"`
	Message    string              `json:"error_message"`
	Violations []catalog.Violation `json:"violations,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("write json", "err", err)
	}
}

// writeError writes a structured error response
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIError{Code: code, Message: message})
}

// writeStatus is the {status, message} body the auth endpoints answer with.
func writeStatus(w http.ResponseWriter, status int, state, message string) {
	writeJSON(w, status, map[string]string{"status": state, "message": message})
}

// writeServiceError maps domain errors onto HTTP responses. Anything not
// recognised is logged and answered with a generic 500.
func (a *App) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, APIError{Code: "VALIDATION_FAILED", Message: "One or more fields are invalid", Violations: verr.Violations})
	case errors.Is(err, catalog.ErrInvalidCriteria):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "criteria must be gt, lt or eq")
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.Is(err, session.ErrAuthentication):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
	case errors.Is(err, session.ErrInvalidSession), errors.Is(err, token.ErrInvalidToken):
		writeError(w, http.StatusBadRequest, "INVALID_TOKEN", "Invalid access token/refresh token")
	case errors.Is(err, account.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	default:
		a.Logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
