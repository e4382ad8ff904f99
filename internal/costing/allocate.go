package costing

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerdesk/internal/money"
)

// OverheadRow is one shared cost (freight, labour, ...) to spread over the items.
type OverheadRow struct {
	Type   string          `json:"OHType"`
	Amount decimal.Decimal `json:"Amount"`
}

// Allocation is the landed-cost preview for one item.
type Allocation struct {
	Srno         int             `json:"srno"`
	ItemCode     int64           `json:"itemcode"`
	ItemName     string          `json:"itemname"`
	Qty          decimal.Decimal `json:"qty"`
	Rate         decimal.Decimal `json:"rate"`
	TaxableValue decimal.Decimal `json:"invamount"`
	OHAmount     decimal.Decimal `json:"ohamt"`
	NetRate      decimal.Decimal `json:"netrate"`
	LineTotal    decimal.Decimal `json:"linetotal"`
}

// TotalOverhead sums the overhead rows. Negative amounts count as zero.
func TotalOverhead(rows []OverheadRow) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(money.NonNegative(row.Amount))
	}
	return total
}

// Allocate spreads the overhead pool across items in proportion to taxable value.
// Output order follows input order; srno is 1-based. Inputs are not modified.
// Each share is rounded on its own, so the shares may miss the pool by a few cents (see Drift).
func Allocate(items []ItemLine, overheads []OverheadRow) []Allocation {
	totalOverhead := TotalOverhead(overheads)
	totalTaxable := decimal.Zero
	for _, item := range items {
		totalTaxable = totalTaxable.Add(item.TaxableValue)
	}
	out := make([]Allocation, 0, len(items))
	for idx, item := range items {
		share := money.Proportion(item.TaxableValue, totalTaxable)
		oh := money.Round2(share.Mul(totalOverhead))
		netRate := item.Rate
		if item.Qty.IsPositive() {
			netRate = item.Rate.Add(oh.Div(item.Qty))
		}
		out = append(out, Allocation{
			Srno:         idx + 1,
			ItemCode:     item.ItemCode,
			ItemName:     item.ItemName,
			Qty:          item.Qty,
			Rate:         item.Rate,
			TaxableValue: item.TaxableValue,
			OHAmount:     oh,
			NetRate:      money.Round2(netRate),
			LineTotal:    money.Round2(item.TaxableValue.Add(oh)),
		})
	}
	return out
}

// Drift is the overhead pool minus the allocated shares. It is reported, not redistributed.
func Drift(allocs []Allocation, overheads []OverheadRow) decimal.Decimal {
	allocated := decimal.Zero
	for _, a := range allocs {
		allocated = allocated.Add(a.OHAmount)
	}
	return TotalOverhead(overheads).Sub(allocated)
}
