package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrTransactionNotFound indicates a missing transaction.
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrJournalEntryNotFound indicates a missing journal entry.
	ErrJournalEntryNotFound = errors.New("ledger: journal entry not found")
	// ErrApprovalNotFound indicates a missing approval request.
	ErrApprovalNotFound = errors.New("ledger: approval not found")
	// ErrConcurrencyConflict indicates the chain tail moved between read and append.
	// It is transient: the caller may retry with a fresh tail.
	ErrConcurrencyConflict = errors.New("ledger: journal chain tail changed concurrently")
)

// Validation rule identifiers.
const (
	RuleTooFewLines      = "too_few_lines"
	RuleNonPositive      = "non_positive_amount"
	RuleInvalidLineType  = "invalid_line_type"
	RuleUnknownAccount   = "unknown_account"
	RuleInactiveAccount  = "inactive_account"
	RuleForeignAccount   = "foreign_account"
	RuleDuplicateAccount = "duplicate_account"
	RuleUnbalanced       = "unbalanced"
	RuleInvalidInput     = "invalid_input"
)

// ValidationError describes a rejected line set. The transaction never reaches the journal.
type ValidationError struct {
	Rule      string
	AccountID int64
	LineIndex int
	Message   string
}

func (e *ValidationError) Error() string {
	return "ledger: validation failed: " + e.Message
}

func newValidationError(rule string, idx int, accountID int64, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, LineIndex: idx, AccountID: accountID, Message: fmt.Sprintf(format, args...)}
}

// NewInputError wraps a malformed request as a validation error.
func NewInputError(msg string) *ValidationError {
	return &ValidationError{Rule: RuleInvalidInput, LineIndex: -1, Message: msg}
}

// IllegalStateError reports a lifecycle transition that is not allowed from the current status.
type IllegalStateError struct {
	TransactionID uuid.UUID
	From          string
	Action        string
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("ledger: cannot %s %s while %s", e.Action, e.TransactionID, e.From)
}

// IntegrityViolation is raised only by the chain verifier and must be escalated, never repaired.
type IntegrityViolation struct {
	CompanyID  int64
	BrokenAtID uuid.UUID
	Verified   int
	Reason     string
}

func (e *IntegrityViolation) Error() string {
	return fmt.Sprintf("ledger: journal chain for company %d broken at entry %s after %d verified entries: %s",
		e.CompanyID, e.BrokenAtID, e.Verified, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsIllegalState reports whether err is an IllegalStateError.
func IsIllegalState(err error) bool {
	var target *IllegalStateError
	return errors.As(err, &target)
}

// IsTransient reports whether the operation may simply be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
