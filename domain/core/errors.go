package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input validation
	ErrBadInput          = errors.New("invalid input")
	ErrBadProbability    = fmt.Errorf("%w: probability out of range", ErrBadInput)
	ErrEmptyHypotheses   = fmt.Errorf("%w: empty hypothesis set", ErrBadInput)
	ErrDimensionMismatch = fmt.Errorf("%w: feature dimension mismatch", ErrBadInput)

	// Claim lifecycle
	ErrUnknownClaim     = errors.New("unknown claim")
	ErrClaimResolved    = errors.New("claim already resolved")
	ErrUnresolvedClaims = errors.New("unresolved claims at shutdown")

	// Enforcement states
	ErrInsolvent       = errors.New("epistemic debt insolvency")
	ErrBankrupt        = errors.New("epistemic bankruptcy")
	ErrBudgetExhausted = errors.New("budget cannot cover cheapest calibration action")

	// Collaborators
	ErrExecutionFailed = errors.New("execution engine failure")
	ErrEventLogFailed  = errors.New("event log append failure")
)

// NewValidationError reports a failed field validation with its reason
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrBadInput, field, reason)
}

// NewProbabilityError reports a probability outside [0,1]
func NewProbabilityError(field string, value float64) error {
	return fmt.Errorf("%w: %s=%v", ErrBadProbability, field, value)
}
