package ledger

import (
	"fmt"

	"github.com/odyssey-erp/ledgerdesk/internal/money"
	"github.com/odyssey-erp/ledgerdesk/internal/shared"
)

// ValidateForSubmit applies the submission rules in order and reports the first violation.
func ValidateForSubmit(lines []Line, financialYearID int64) error {
	if len(lines) == 0 {
		return shared.NewValidationError(shared.RuleMinOneLine, "document must have at least one line")
	}
	totals := Evaluate(lines)
	if !totals.IsBalanced {
		return shared.NewValidationError(shared.RuleUnbalanced, fmt.Sprintf(
			"debit (%s) must equal credit (%s)", money.Fixed(totals.TotalDebit), money.Fixed(totals.TotalCredit)))
	}
	for idx, line := range lines {
		if line.AccountID == 0 {
			return shared.NewValidationError(shared.RuleMissingAccount, fmt.Sprintf("line %d has no account", idx+1))
		}
		if !line.HasAmount() {
			return shared.NewValidationError(shared.RuleMissingAmount, fmt.Sprintf("line %d needs a debit or credit amount", idx+1))
		}
	}
	if !totals.TotalDebit.IsPositive() {
		return shared.NewValidationError(shared.RuleZeroTotal, "document total must be greater than zero")
	}
	if financialYearID <= 0 {
		return shared.NewValidationError(shared.RuleMissingFinancialYear, "financial year is not set")
	}
	return nil
}
