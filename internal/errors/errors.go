package errors

import (
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates an AppError wrapping a cause
func Wrap(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Common error codes
const (
	CodeBadInput       = "BAD_INPUT"
	CodeClaimLifecycle = "CLAIM_LIFECYCLE"
	CodeInsolvent      = "INSOLVENT"
	CodeBankrupt       = "BANKRUPT"
	CodeExecution      = "EXECUTION"
	CodeEventLog       = "EVENT_LOG"
	CodeConfig         = "CONFIG"
)
