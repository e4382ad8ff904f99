// Package ledger evaluates double-entry line sets: totals, balance verdict and submission rules.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerdesk/internal/money"
)

// Line is one row of a journal-style document.
type Line struct {
	ID          string          `json:"id"`
	AccountID   int64           `json:"account_id"`
	PartyID     *int64          `json:"party_id,omitempty"`
	Debit       decimal.Decimal `json:"debit_amount"`
	Credit      decimal.Decimal `json:"credit_amount"`
	Description string          `json:"description"`
}

// NewLine returns a line with zero amounts.
func NewLine(id string) Line {
	return Line{ID: id, Debit: decimal.Zero, Credit: decimal.Zero}
}

// SetDebit stores the debit amount. A positive debit clears the credit.
func (l *Line) SetDebit(amount decimal.Decimal) {
	amount = money.Round2(money.NonNegative(amount))
	l.Debit = amount
	if amount.IsPositive() {
		l.Credit = decimal.Zero
	}
}

// SetCredit stores the credit amount. A positive credit clears the debit.
func (l *Line) SetCredit(amount decimal.Decimal) {
	amount = money.Round2(money.NonNegative(amount))
	l.Credit = amount
	if amount.IsPositive() {
		l.Debit = decimal.Zero
	}
}

// HasAmount reports whether either side is strictly positive.
func (l Line) HasAmount() bool {
	return l.Debit.IsPositive() || l.Credit.IsPositive()
}
