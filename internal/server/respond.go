package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"resqride/backend/internal/identity/service"
	"resqride/backend/internal/platform/rbac"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps service sentinel errors to status codes with
// uniform messages. The internal cause never reaches the response body.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, service.ErrAuthenticationFailed):
		writeError(w, http.StatusUnauthorized, "Authentication failed")
	case errors.Is(err, service.ErrInvalidRefreshToken):
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, "User already exists")
	case errors.Is(err, rbac.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden")
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
