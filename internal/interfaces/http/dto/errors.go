package dto

import (
	"net/http"
	"strings"
)

// General error codes
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "VALIDATION_ERROR"
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "UNAUTHORIZED"
	// ErrCodeForbidden is used when the caller lacks permission
	ErrCodeForbidden = "FORBIDDEN"
	// ErrCodeConflict is used for resource conflicts
	ErrCodeConflict = "CONFLICT"
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes. Domain error
// codes not listed here fall back to the INVALID_ prefix rule, then to 500.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeConflict:     http.StatusConflict,
	ErrCodeRateLimited:  http.StatusTooManyRequests,

	// Tenancy
	"TENANT_NOT_SCOPED":      http.StatusUnauthorized,
	"GLOBAL_SCOPE_FORBIDDEN": http.StatusForbidden,
	"CROSS_TENANT":           http.StatusForbidden,

	// Ledger invariants -> 422 Unprocessable Entity
	"UNBALANCED_ENTRY":         http.StatusUnprocessableEntity,
	"DEGENERATE_ENTRY":         http.StatusUnprocessableEntity,
	"NON_POSTABLE_ACCOUNT":     http.StatusUnprocessableEntity,
	"ACCOUNT_VERSION_MISMATCH": http.StatusUnprocessableEntity,
	"ALREADY_REVERSED":         http.StatusUnprocessableEntity,
	"REVERSED_ENTRY_DELETION":  http.StatusUnprocessableEntity,
	"ACCOUNT_GROUP_CHANGE":     http.StatusUnprocessableEntity,
	"NO_ACTIVE_VERSION":        http.StatusUnprocessableEntity,
	"VERSION_EXISTS":           http.StatusConflict,

	// Certificates and ingestion
	"NO_ACTIVE_CERTIFICATE":   http.StatusUnprocessableEntity,
	"EXPIRED_CERTIFICATE":     http.StatusUnprocessableEntity,
	"DECRYPTION_KEY_MISMATCH": http.StatusInternalServerError,
	"UNKNOWN_PROVIDER":        http.StatusUnprocessableEntity,
	"MALFORMED_XML":           http.StatusBadRequest,
	"UNKNOWN_SCHEMA":          http.StatusBadRequest,
	"INVALID_STORAGE_KEY":     http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code. Codes with an
// INVALID_ prefix are input validation failures; everything else unknown is an
// internal error.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	if strings.HasPrefix(code, "INVALID_") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
