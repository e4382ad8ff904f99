package shared

import (
	"errors"
	"fmt"

	"github.com/odyssey-erp/ledgerdesk/internal/platform/httpx"
)

// Validation rule codes reported to the entry screens.
const (
	RuleMinOneLine           = "min-one-line"
	RuleUnbalanced           = "unbalanced"
	RuleMissingAccount       = "missing-account"
	RuleMissingAmount        = "missing-amount"
	RuleZeroTotal            = "zero-total"
	RuleMissingFinancialYear = "missing-financial-year"
	RuleMissingTransaction   = "missing-transaction-id"
	RuleEmptyAllocation      = "empty-allocation"
	RuleInvalidState         = "invalid-state"
	RuleInvalidItem          = "invalid-item"
	RuleInvalidField         = "invalid-field"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = httpx.ErrNotFound
	// ErrForbidden indicates the session lacks the capability for an action.
	ErrForbidden = httpx.ErrForbidden
	// ErrUnauthorized indicates the request carries no bearer token.
	ErrUnauthorized = httpx.ErrUnauthorized
	// ErrSubmitInFlight indicates another submission for the same document is running.
	ErrSubmitInFlight = fmt.Errorf("submission already in progress: %w", httpx.ErrConflict)
	// ErrAlreadySubmitted indicates the draft revision was already saved; reload the draft.
	ErrAlreadySubmitted = fmt.Errorf("draft already submitted: %w", httpx.ErrConflict)
)

// ValidationError is a local, pre-submission failure. No network call is made when it is returned.
type ValidationError struct {
	Rule   string
	Detail string
}

// NewValidationError builds a ValidationError for rule.
func NewValidationError(rule, detail string) *ValidationError {
	return &ValidationError{Rule: rule, Detail: detail}
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return "validation: " + e.Rule
	}
	return fmt.Sprintf("validation: %s: %s", e.Rule, e.Detail)
}

// Unwrap lets callers match with errors.Is(err, httpx.ErrValidation).
func (e *ValidationError) Unwrap() error {
	return httpx.ErrValidation
}

// RuleCode exposes the rule for problem responses.
func (e *ValidationError) RuleCode() string {
	return e.Rule
}

// IsRule reports whether err is a ValidationError for rule.
func IsRule(err error, rule string) bool {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Rule == rule
	}
	return false
}
