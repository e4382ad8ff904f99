// Package costing holds the purchase arithmetic: GST line totals, invoice totals and the
// landed-cost allocation of overheads across received items.
package costing

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerdesk/internal/money"
)

var hundred = decimal.NewFromInt(100)

// ItemLine is one received item. Derived fields are only written by Recalc.
type ItemLine struct {
	ItemCode     int64           `json:"itemcode"`
	ItemName     string          `json:"itemname"`
	Qty          decimal.Decimal `json:"qty"`
	Rate         decimal.Decimal `json:"rate"`
	CGSTPct      decimal.Decimal `json:"cgst_pct"`
	SGSTPct      decimal.Decimal `json:"sgst_pct"`
	IGSTPct      decimal.Decimal `json:"igst_pct"`
	TaxableValue decimal.Decimal `json:"taxable_value"`
	CGST         decimal.Decimal `json:"cgst"`
	SGST         decimal.Decimal `json:"sgst"`
	IGST         decimal.Decimal `json:"igst"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

// NewItemLine builds a line and computes its derived fields.
func NewItemLine(code int64, name string, qty, rate, cgstPct, sgstPct, igstPct decimal.Decimal) ItemLine {
	item := ItemLine{
		ItemCode: code,
		ItemName: name,
		Qty:      qty,
		Rate:     rate,
		CGSTPct:  cgstPct,
		SGSTPct:  sgstPct,
		IGSTPct:  igstPct,
	}
	item.Recalc()
	return item
}

// Recalc refreshes taxable value, tax amounts and line total from qty, rate and percentages.
func (i *ItemLine) Recalc() {
	i.TaxableValue = money.Round2(i.Qty.Mul(i.Rate))
	i.CGST = percentOf(i.TaxableValue, i.CGSTPct)
	i.SGST = percentOf(i.TaxableValue, i.SGSTPct)
	i.IGST = percentOf(i.TaxableValue, i.IGSTPct)
	i.LineTotal = money.Sum(i.TaxableValue, i.CGST, i.SGST, i.IGST)
}

// GST is the sum of the three tax components.
func (i ItemLine) GST() decimal.Decimal {
	return money.Sum(i.CGST, i.SGST, i.IGST)
}

func percentOf(base, pct decimal.Decimal) decimal.Decimal {
	return money.Round2(base.Mul(pct).Div(hundred))
}

// InvoiceSummary aggregates the item lines of a purchase invoice.
type InvoiceSummary struct {
	Taxable    decimal.Decimal `json:"taxable"`
	CGST       decimal.Decimal `json:"cgst"`
	SGST       decimal.Decimal `json:"sgst"`
	IGST       decimal.Decimal `json:"igst"`
	GST        decimal.Decimal `json:"gst"`
	AfterGST   decimal.Decimal `json:"after_gst"`
	RoundOff   decimal.Decimal `json:"round_off"`
	FinalTotal decimal.Decimal `json:"final_total"`
}

// InvoiceTotals sums the items and rounds the payable to the nearest whole unit.
func InvoiceTotals(items []ItemLine) InvoiceSummary {
	var s InvoiceSummary
	for _, item := range items {
		s.Taxable = s.Taxable.Add(item.TaxableValue)
		s.CGST = s.CGST.Add(item.CGST)
		s.SGST = s.SGST.Add(item.SGST)
		s.IGST = s.IGST.Add(item.IGST)
	}
	s.GST = money.Sum(s.CGST, s.SGST, s.IGST)
	s.AfterGST = s.Taxable.Add(s.GST)
	s.FinalTotal = s.AfterGST.Round(0)
	s.RoundOff = s.FinalTotal.Sub(s.AfterGST)
	return s
}
