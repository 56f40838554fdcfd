package apperror

import (
	"fmt"
	"net/http"
	"strconv"
)

// AppError is a structured error that maps to HTTP responses.
// Code is an internal classifier for logs and tests; clients only
// ever see Message via the {"detail": ...} body.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Validation (VAL) ----

// Validation returns a 400 with the given client-facing message.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

// ---- Identity & Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid username or password", http.StatusUnauthorized)
}

func ErrMissingAPIKey() *AppError {
	return New("AUTH_002", "Missing API key", http.StatusUnauthorized)
}

func ErrInvalidAPIKey() *AppError {
	return New("AUTH_003", "Invalid or expired API key", http.StatusUnauthorized)
}

func ErrUserExists() *AppError {
	return New("AUTH_004", "Username or email already exists", http.StatusConflict)
}

// ErrForbidden is reserved by the error taxonomy; no endpoint emits it yet.
func ErrForbidden() *AppError {
	return New("AUTH_005", "Forbidden", http.StatusForbidden)
}

// ---- Billing (BILL) ----

// ErrInsufficientBalance reports a failed preflight or a debit that lost a
// balance race. Amounts are rendered without trailing zeros.
func ErrInsufficientBalance(required, available float64) *AppError {
	return New("BILL_001",
		fmt.Sprintf("Insufficient token balance. Required: %s, Available: %s",
			formatTokens(required), formatTokens(available)),
		http.StatusPaymentRequired)
}

func ErrNotFound(entity string) *AppError {
	return New("BILL_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded(window string, current, limit int) *AppError {
	return New("RATE_001",
		fmt.Sprintf("Rate limit exceeded for %s window. Current: %d/%d", window, current, limit),
		http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabase(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Internal wraps any unexpected error as a SYS_001.
func Internal(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

func ErrNotImplemented(message string) *AppError {
	return New("SYS_002", message, http.StatusNotImplemented)
}

func formatTokens(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
