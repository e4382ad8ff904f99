package costing

// Purchase is the header and item lines of a purchase invoice as exchanged with the ERP backend.
type Purchase struct {
	TranID              int64         `json:"tranid,omitempty"`
	TrNo                string        `json:"trno,omitempty"`
	FinancialYearID     int64         `json:"fyearid"`
	TrDate              string        `json:"trdate"`
	SupplierInvoiceNo   string        `json:"suppinvno"`
	SupplierInvoiceDate string        `json:"suppinvdt"`
	PartyID             int64         `json:"partyid"`
	Remark              string        `json:"remark"`
	Items               []ItemLine    `json:"items"`
	Overheads           []OverheadRow `json:"overheads"`
	CostSheetPrepared   bool          `json:"costsheetprepared"`
	CostConfirmed       bool          `json:"costconfirmed"`
	GRNPosted           bool          `json:"grnposted"`
}

// Summary returns the invoice totals of the current items.
func (p Purchase) Summary() InvoiceSummary {
	return InvoiceTotals(p.Items)
}

// Receipt identifies a persisted purchase.
type Receipt struct {
	TranID int64  `json:"tranid"`
	TrNo   string `json:"trno"`
}

// Stored is a persisted purchase with the per-item allocation recorded by the backend.
// Allocation is empty until costing is confirmed.
type Stored struct {
	Purchase   Purchase
	Allocation []Allocation
}
