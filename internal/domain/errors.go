package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized             = errors.New("unauthorized")
	ErrUnsupportedFileType      = errors.New("unsupported file type")
	ErrFileTooLarge             = errors.New("file exceeds maximum allowed size")
	ErrInvalidAmount            = errors.New("amount must be positive")
	ErrDocumentUnreadable       = errors.New("document could not be read")
	ErrInsufficientCredits      = errors.New("insufficient credits")
	ErrTierLimitExceeded        = errors.New("tier limit exceeded")
	ErrGuardrailRejected        = errors.New("expensive engine rejected by guardrail")
	ErrStoreUnavailable         = errors.New("credit store unavailable")
	ErrInconsistentLedgerRecord = errors.New("inconsistent ledger record")
	ErrEngineTimeout            = errors.New("conversion engine timed out")
	ErrEngineFailed             = errors.New("conversion engine failed")
	ErrQABlocked                = errors.New("conversion blocked by quality checks")
)

// InsufficientCreditsError carries the exact shortfall of a rejected deduction.
type InsufficientCreditsError struct {
	Required  float64
	Available float64
}

// Shortfall is the number of credits missing to cover Required.
func (e *InsufficientCreditsError) Shortfall() float64 {
	return e.Required - e.Available
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %.2f, available %.2f, short by %.2f",
		e.Required, e.Available, e.Shortfall())
}

func (e *InsufficientCreditsError) Unwrap() error {
	return ErrInsufficientCredits
}

// TierLimitError reports the specific limit a document exceeded.
type TierLimitError struct {
	Code    string
	Message string
}

func (e *TierLimitError) Error() string {
	return e.Message
}

func (e *TierLimitError) Unwrap() error {
	return ErrTierLimitExceeded
}

// GuardrailError reports the gate that stopped use of the expensive engine.
type GuardrailError struct {
	Gate   GuardrailGate
	Reason string
}

func (e *GuardrailError) Error() string {
	return fmt.Sprintf("guardrail %s: %s", e.Gate, e.Reason)
}

func (e *GuardrailError) Unwrap() error {
	return ErrGuardrailRejected
}

// InconsistentLedgerError identifies the user record that failed the consistency check.
type InconsistentLedgerError struct {
	UserID string
	Detail string
}

func (e *InconsistentLedgerError) Error() string {
	return fmt.Sprintf("inconsistent ledger record for user %s: %s", e.UserID, e.Detail)
}

func (e *InconsistentLedgerError) Unwrap() error {
	return ErrInconsistentLedgerRecord
}
