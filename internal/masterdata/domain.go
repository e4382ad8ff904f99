// Package masterdata serves the chart of accounts, parties and items the entry forms pick from.
package masterdata

import "github.com/shopspring/decimal"

// Account is a ledger account from the chart of accounts.
type Account struct {
	ID            int64  `json:"account_id"`
	Code          string `json:"account_code"`
	Name          string `json:"account_name"`
	GroupID       int64  `json:"group_id"`
	NormalBalance string `json:"normal_balance"`
}

// Party is a counterparty (supplier, customer, ...).
type Party struct {
	ID   int64  `json:"partyid"`
	Name string `json:"partyname"`
	Type string `json:"partytype"`
}

// Item is a purchasable item with its default cost and GST percentages.
type Item struct {
	Code    int64           `json:"itemcode"`
	Name    string          `json:"itemname"`
	Cost    decimal.Decimal `json:"cost"`
	CGSTPct decimal.Decimal `json:"cgst"`
	SGSTPct decimal.Decimal `json:"sgst"`
	IGSTPct decimal.Decimal `json:"igst"`
}

// Bundle is everything an entry form needs to populate its pickers.
type Bundle struct {
	Accounts []Account `json:"accounts"`
	Parties  []Party   `json:"parties"`
	Items    []Item    `json:"items,omitempty"`
}
