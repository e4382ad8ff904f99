package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerdesk/internal/money"
)

// Side names which column must grow to bring a document back into balance.
type Side string

const (
	SideNone   Side = ""
	SideDebit  Side = "Debit needed"
	SideCredit Side = "Credit needed"
)

// Totals is derived from the current line set and never stored.
type Totals struct {
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Difference  decimal.Decimal `json:"difference"`
	IsBalanced  bool            `json:"is_balanced"`
}

// Evaluate sums both columns. An empty set is vacuously balanced.
func Evaluate(lines []Line) Totals {
	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	diff := debit.Sub(credit)
	return Totals{
		TotalDebit:  debit,
		TotalCredit: credit,
		Difference:  diff,
		IsBalanced:  diff.Abs().LessThan(money.Tolerance),
	}
}

// Shortfall reports the absolute imbalance and the label shown beside it.
func (t Totals) Shortfall() (decimal.Decimal, Side) {
	if t.IsBalanced {
		return decimal.Zero, SideNone
	}
	amount := money.Round2(t.Difference.Abs())
	if t.Difference.IsPositive() {
		return amount, SideDebit
	}
	return amount, SideCredit
}
