package apiErrors

import (
	"encoding/json"
	"net/http"
)

// Error codes returned by the operational API.
const (
	// Authentication errors
	ErrInvalidToken = "AUTH_001"
	ErrExpiredToken = "AUTH_002"

	// Validation errors
	ErrInvalidRequest = "VAL_001"

	// Server errors
	ErrInternalServer  = "SRV_001"
	ErrSyncInProgress  = "SRV_002"
	ErrExternalService = "SRV_003"
)

var httpStatusMap = map[string]int{
	ErrInvalidToken:    http.StatusUnauthorized,
	ErrExpiredToken:    http.StatusUnauthorized,
	ErrInvalidRequest:  http.StatusBadRequest,
	ErrInternalServer:  http.StatusInternalServerError,
	ErrSyncInProgress:  http.StatusConflict,
	ErrExternalService: http.StatusBadGateway,
}

// APIError is the standardized error body.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// WriteError writes the standardized error to the HTTP response.
func WriteError(w http.ResponseWriter, code string, message string, details any) {
	status, exists := httpStatusMap[code]
	if !exists {
		status = http.StatusInternalServerError
	}

	apiErr := APIError{
		Code:    code,
		Message: message,
		Details: details,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiErr)
}
