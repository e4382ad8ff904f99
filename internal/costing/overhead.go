package costing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Overhead types offered on the costing step.
const (
	OverheadTransportation = "Transportation"
	OverheadLabour         = "Labour"
	OverheadMisc           = "Misc"
)

// DefaultOverheads is the blank costing sheet a purchase starts with.
func DefaultOverheads() []OverheadRow {
	return []OverheadRow{
		{Type: OverheadTransportation, Amount: decimal.Zero},
		{Type: OverheadLabour, Amount: decimal.Zero},
		{Type: OverheadMisc, Amount: decimal.Zero},
	}
}

// Charges are the header-level overhead buckets stored on a purchase.
type Charges struct {
	Transport decimal.Decimal `json:"tptcharge"`
	Labour    decimal.Decimal `json:"labcharge"`
	Misc      decimal.Decimal `json:"misccharge"`
}

// Total sums the three buckets.
func (c Charges) Total() decimal.Decimal {
	return c.Transport.Add(c.Labour).Add(c.Misc)
}

// ClassifyOverheads folds free-text overhead types into the transport, labour and misc buckets.
func ClassifyOverheads(rows []OverheadRow) Charges {
	c := Charges{Transport: decimal.Zero, Labour: decimal.Zero, Misc: decimal.Zero}
	for _, row := range rows {
		t := strings.ToLower(strings.TrimSpace(row.Type))
		switch {
		case strings.HasPrefix(t, "trans"), strings.Contains(t, "freight"), strings.Contains(t, "tpt"):
			c.Transport = c.Transport.Add(row.Amount)
		case strings.HasPrefix(t, "lab"):
			c.Labour = c.Labour.Add(row.Amount)
		default:
			c.Misc = c.Misc.Add(row.Amount)
		}
	}
	return c
}

// Prepared reports whether any overhead carries an amount.
func Prepared(rows []OverheadRow) bool {
	for _, row := range rows {
		if row.Amount.IsPositive() {
			return true
		}
	}
	return false
}
