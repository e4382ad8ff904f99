package erpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerdesk/internal/ledger"
	"github.com/odyssey-erp/ledgerdesk/internal/money"
)

func voucherPath(kind ledger.Kind) string {
	switch kind {
	case ledger.KindDebitNote:
		return "/api/accounting/journals/debit-notes"
	case ledger.KindCreditNote:
		return "/api/accounting/journals/credit-notes"
	default:
		return "/api/accounting/journals"
	}
}

type wireLine struct {
	AccountID       int64           `json:"account_id"`
	PartyID         *int64          `json:"party_id"`
	DebitAmount     decimal.Decimal `json:"debit_amount"`
	CreditAmount    decimal.Decimal `json:"credit_amount"`
	Description     string          `json:"description"`
	AllocationRefID *int64          `json:"allocation_ref_id"`
}

type outLine struct {
	AccountID       int64  `json:"account_id"`
	PartyID         *int64 `json:"party_id"`
	DebitAmount     string `json:"debit_amount"`
	CreditAmount    string `json:"credit_amount"`
	Description     string `json:"description"`
	AllocationRefID *int64 `json:"allocation_ref_id"`
}

// voucherPayload builds the kind-prefixed request body, e.g. debit_note_date and debit_note_details.
func voucherPayload(doc ledger.Document) map[string]any {
	prefix := doc.Kind.FieldPrefix()
	totals := doc.Totals()
	lines := make([]outLine, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		lines = append(lines, outLine{
			AccountID:    l.AccountID,
			PartyID:      l.PartyID,
			DebitAmount:  money.Fixed(l.Debit),
			CreditAmount: money.Fixed(l.Credit),
			Description:  l.Description,
		})
	}
	body := map[string]any{
		prefix + "_date":      doc.Date,
		prefix + "_serial":    doc.Serial,
		prefix + "_details":   lines,
		"finyearid":           doc.FinancialYearID,
		"source_document_ref": doc.SourceDocumentRef,
		"total_debit":         money.Fixed(totals.TotalDebit),
		"total_credit":        money.Fixed(totals.TotalCredit),
		"narration":           doc.Narration,
	}
	if doc.Kind == ledger.KindJournal {
		sourceType := doc.SourceDocumentType
		if sourceType == "" {
			sourceType = "Journal"
		}
		body["source_document_type"] = sourceType
	}
	return body
}

// NextSerial fetches the next human-readable serial for kind.
func (c *Client) NextSerial(ctx context.Context, token string, kind ledger.Kind) (string, error) {
	var out map[string]json.RawMessage
	if err := c.do(ctx, token, http.MethodGet, voucherPath(kind)+"/serial/next", nil, &out); err != nil {
		return "", err
	}
	return rawString(out[kind.FieldPrefix()+"_serial"]), nil
}

// GetVoucher loads a persisted document. Unknown ids unwrap to httpx.ErrNotFound.
func (c *Client) GetVoucher(ctx context.Context, token string, kind ledger.Kind, id int64) (ledger.Document, error) {
	var out struct {
		Master  map[string]json.RawMessage `json:"master"`
		Details []wireLine                 `json:"details"`
	}
	if err := c.do(ctx, token, http.MethodGet, fmt.Sprintf("%s/%d", voucherPath(kind), id), nil, &out); err != nil {
		return ledger.Document{}, err
	}
	prefix := kind.FieldPrefix()
	doc := ledger.Document{
		ID:                 id,
		Kind:               kind,
		Serial:             rawString(out.Master[prefix+"_serial"]),
		Date:               dateOnly(rawString(out.Master[prefix+"_date"])),
		SourceDocumentType: rawString(out.Master["source_document_type"]),
		SourceDocumentRef:  rawString(out.Master["source_document_ref"]),
		Narration:          rawString(out.Master["narration"]),
		FinancialYearID:    rawInt(out.Master["finyearid"]),
	}
	for idx, d := range out.Details {
		line := ledger.NewLine(strconv.Itoa(idx + 1))
		line.AccountID = d.AccountID
		line.PartyID = d.PartyID
		line.Description = d.Description
		line.Debit = money.Round2(d.DebitAmount)
		line.Credit = money.Round2(d.CreditAmount)
		doc.Lines = append(doc.Lines, line)
	}
	return doc, nil
}

// CreateVoucher persists a new document.
func (c *Client) CreateVoucher(ctx context.Context, token string, doc ledger.Document) (ledger.Receipt, error) {
	return c.saveVoucher(ctx, token, http.MethodPost, voucherPath(doc.Kind), doc)
}

// UpdateVoucher replaces an existing document.
func (c *Client) UpdateVoucher(ctx context.Context, token string, doc ledger.Document) (ledger.Receipt, error) {
	return c.saveVoucher(ctx, token, http.MethodPut, fmt.Sprintf("%s/%d", voucherPath(doc.Kind), doc.ID), doc)
}

func (c *Client) saveVoucher(ctx context.Context, token, method, path string, doc ledger.Document) (ledger.Receipt, error) {
	var out map[string]json.RawMessage
	if err := c.do(ctx, token, method, path, voucherPayload(doc), &out); err != nil {
		return ledger.Receipt{}, err
	}
	res := ledger.Receipt{
		ID:     rawInt(out[doc.Kind.FieldPrefix()+"_mas_id"]),
		Serial: rawString(out[doc.Kind.CamelPrefix()+"Serial"]),
	}
	if res.ID == 0 {
		res.ID = rawInt(out["id"])
	}
	if res.ID == 0 {
		res.ID = doc.ID
	}
	if res.Serial == "" {
		res.Serial = doc.Serial
	}
	return res, nil
}

// DeleteVoucher removes a document.
func (c *Client) DeleteVoucher(ctx context.Context, token string, kind ledger.Kind, id int64) error {
	return c.do(ctx, token, http.MethodDelete, fmt.Sprintf("%s/%d", voucherPath(kind), id), nil, nil)
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func rawInt(raw json.RawMessage) int64 {
	v, err := strconv.ParseInt(rawString(raw), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func dateOnly(s string) string {
	if len(s) >= 10 && strings.Count(s[:10], "-") == 2 {
		return s[:10]
	}
	return s
}
