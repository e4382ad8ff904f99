package erpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerdesk/internal/costing"
	"github.com/odyssey-erp/ledgerdesk/internal/money"
)

type purchaseItem struct {
	ItemCode     int64  `json:"itemcode"`
	Qty          string `json:"qty"`
	Rate         string `json:"rate"`
	TaxableValue string `json:"taxableValue"`
	CGSTAmt      string `json:"cgstAmt"`
	SGSTAmt      string `json:"sgstAmt"`
	IGSTAmt      string `json:"igstAmt"`
	LineTotal    string `json:"lineTotal"`
	CGSTPer      string `json:"cgstPer"`
	SGSTPer      string `json:"sgstPer"`
	IGSTPer      string `json:"igstPer"`
}

type purchasePayload struct {
	FinancialYearID     int64                 `json:"fyearid"`
	TrDate              string                `json:"trdate"`
	SupplierInvoiceNo   string                `json:"suppinvno"`
	SupplierInvoiceDate string                `json:"suppinvdt"`
	PartyID             int64                 `json:"partyid"`
	Remark              string                `json:"remark"`
	Items               []purchaseItem        `json:"items"`
	Overheads           []costing.OverheadRow `json:"overheads"`
	Transport           string                `json:"tptcharge"`
	Labour              string                `json:"labcharge"`
	Misc                string                `json:"misccharge"`
	CostSheetPrepared   bool                  `json:"costsheetprepared"`
	GRNPosted           bool                  `json:"grnposted"`
	CostConfirmed       bool                  `json:"costconfirmed"`
}

func newPurchasePayload(p costing.Purchase) purchasePayload {
	charges := costing.ClassifyOverheads(p.Overheads)
	items := make([]purchaseItem, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, purchaseItem{
			ItemCode:     it.ItemCode,
			Qty:          it.Qty.String(),
			Rate:         money.Fixed(it.Rate),
			TaxableValue: money.Fixed(it.TaxableValue),
			CGSTAmt:      money.Fixed(it.CGST),
			SGSTAmt:      money.Fixed(it.SGST),
			IGSTAmt:      money.Fixed(it.IGST),
			LineTotal:    money.Fixed(it.LineTotal),
			CGSTPer:      it.CGSTPct.String(),
			SGSTPer:      it.SGSTPct.String(),
			IGSTPer:      it.IGSTPct.String(),
		})
	}
	return purchasePayload{
		FinancialYearID:     p.FinancialYearID,
		TrDate:              p.TrDate,
		SupplierInvoiceNo:   p.SupplierInvoiceNo,
		SupplierInvoiceDate: p.SupplierInvoiceDate,
		PartyID:             p.PartyID,
		Remark:              p.Remark,
		Items:               items,
		Overheads:           p.Overheads,
		Transport:           money.Fixed(charges.Transport),
		Labour:              money.Fixed(charges.Labour),
		Misc:                money.Fixed(charges.Misc),
		CostSheetPrepared:   costing.Prepared(p.Overheads),
		GRNPosted:           p.GRNPosted,
		CostConfirmed:       p.CostConfirmed,
	}
}

// CompletePurchase creates a purchase with its items.
func (c *Client) CompletePurchase(ctx context.Context, token string, p costing.Purchase) (costing.Receipt, error) {
	var out map[string]json.RawMessage
	if err := c.do(ctx, token, http.MethodPost, "/api/purchase/complete", newPurchasePayload(p), &out); err != nil {
		return costing.Receipt{}, err
	}
	return costing.Receipt{TranID: rawInt(out["tranid"]), TrNo: rawString(out["trno"])}, nil
}

// UpdatePurchase replaces the header and items of an existing purchase.
func (c *Client) UpdatePurchase(ctx context.Context, token string, p costing.Purchase) (costing.Receipt, error) {
	var out map[string]json.RawMessage
	if err := c.do(ctx, token, http.MethodPut, fmt.Sprintf("/api/purchase/%d", p.TranID), newPurchasePayload(p), &out); err != nil {
		return costing.Receipt{}, err
	}
	res := costing.Receipt{TranID: rawInt(out["tranid"]), TrNo: rawString(out["trno"])}
	if res.TranID == 0 {
		res.TranID = p.TranID
	}
	if res.TrNo == "" {
		res.TrNo = p.TrNo
	}
	return res, nil
}

// SaveCosting stores the overhead rows of a purchase.
func (c *Client) SaveCosting(ctx context.Context, token string, tranID int64, rows []costing.OverheadRow) error {
	body := map[string]any{"rows": rows}
	return c.do(ctx, token, http.MethodPut, fmt.Sprintf("/api/purchase/%d/costing", tranID), body, nil)
}

type confirmItem struct {
	Srno    int    `json:"Srno"`
	OHAmt   string `json:"OHAmt"`
	NetRate string `json:"NetRate"`
	GTotal  string `json:"GTotal"`
}

// ConfirmCosting posts the allocated overhead per item and locks costing upstream.
func (c *Client) ConfirmCosting(ctx context.Context, token string, tranID int64, allocs []costing.Allocation) error {
	items := make([]confirmItem, 0, len(allocs))
	for _, a := range allocs {
		items = append(items, confirmItem{
			Srno:    a.Srno,
			OHAmt:   money.Fixed(a.OHAmount),
			NetRate: money.Fixed(a.NetRate),
			GTotal:  money.Fixed(a.LineTotal),
		})
	}
	body := map[string]any{"items": items}
	return c.do(ctx, token, http.MethodPost, fmt.Sprintf("/api/purchase/%d/costing/confirm", tranID), body, nil)
}

// CancelPurchase cancels a purchase. The backend refuses once costing is confirmed.
func (c *Client) CancelPurchase(ctx context.Context, token string, tranID int64) error {
	return c.do(ctx, token, http.MethodPost, fmt.Sprintf("/api/purchase/%d/cancel", tranID), nil, nil)
}

type storedItem struct {
	Srno      int             `json:"srno"`
	ItemCode  int64           `json:"itemcode"`
	ItemName  string          `json:"itemname"`
	Qty       decimal.Decimal `json:"qty"`
	Rate      decimal.Decimal `json:"rate"`
	InvAmount decimal.Decimal `json:"invamount"`
	OHAmt     decimal.Decimal `json:"ohamt"`
	NetRate   decimal.Decimal `json:"netrate"`
	GTotal    decimal.Decimal `json:"gtotal"`
	CGSTPer   decimal.Decimal `json:"cgstp"`
	SGSTPer   decimal.Decimal `json:"sgstp"`
	IGSTPer   decimal.Decimal `json:"igstp"`
}

// GetPurchase loads a persisted purchase with its items. Derived item amounts are recomputed
// from qty, rate and tax percentages; the stored overhead split is returned once costing is
// confirmed. Unknown ids unwrap to httpx.ErrNotFound.
func (c *Client) GetPurchase(ctx context.Context, token string, tranID int64) (costing.Stored, error) {
	var out struct {
		Header  map[string]json.RawMessage `json:"header"`
		Details []storedItem               `json:"details"`
	}
	path := fmt.Sprintf("/api/purchase/%d", tranID)
	if err := c.do(ctx, token, http.MethodGet, path, nil, &out); err != nil {
		return costing.Stored{}, err
	}
	if len(out.Header) == 0 {
		return costing.Stored{}, &NetworkError{Method: http.MethodGet, Path: path, Status: http.StatusNotFound, Message: "purchase not found"}
	}
	h := out.Header
	pur := costing.Purchase{
		TranID:              tranID,
		TrNo:                rawString(h["trno"]),
		FinancialYearID:     rawInt(h["fyearid"]),
		TrDate:              dateOnly(rawString(h["trdate"])),
		SupplierInvoiceNo:   rawString(h["suppinvno"]),
		SupplierInvoiceDate: dateOnly(rawString(h["suppinvdt"])),
		PartyID:             rawInt(h["partyid"]),
		Remark:              rawString(h["remark"]),
		CostSheetPrepared:   rawBool(h["costsheetprepared"]),
		CostConfirmed:       rawBool(h["costconfirmed"]),
		GRNPosted:           rawBool(h["grnposted"]),
	}
	stored := costing.Stored{Purchase: pur}
	for idx, d := range out.Details {
		item := costing.NewItemLine(d.ItemCode, d.ItemName, d.Qty, d.Rate, d.CGSTPer, d.SGSTPer, d.IGSTPer)
		stored.Purchase.Items = append(stored.Purchase.Items, item)
		if !pur.CostConfirmed {
			continue
		}
		srno := d.Srno
		if srno == 0 {
			srno = idx + 1
		}
		stored.Allocation = append(stored.Allocation, costing.Allocation{
			Srno:         srno,
			ItemCode:     item.ItemCode,
			ItemName:     item.ItemName,
			Qty:          item.Qty,
			Rate:         item.Rate,
			TaxableValue: item.TaxableValue,
			OHAmount:     money.Round2(d.OHAmt),
			NetRate:      money.Round2(d.NetRate),
			LineTotal:    money.Round2(d.GTotal),
		})
	}
	return stored, nil
}

// GetCosting loads the overhead rows saved for a purchase.
func (c *Client) GetCosting(ctx context.Context, token string, tranID int64) ([]costing.OverheadRow, error) {
	var out []struct {
		OHType string          `json:"ohtype"`
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.do(ctx, token, http.MethodGet, fmt.Sprintf("/api/purchase/%d/costing", tranID), nil, &out); err != nil {
		return nil, err
	}
	rows := make([]costing.OverheadRow, 0, len(out))
	for _, r := range out {
		rows = append(rows, costing.OverheadRow{Type: r.OHType, Amount: money.Round2(r.Amount)})
	}
	return rows, nil
}

func rawBool(raw json.RawMessage) bool {
	switch strings.ToLower(rawString(raw)) {
	case "true", "1", "t":
		return true
	}
	var b bool
	return json.Unmarshal(raw, &b) == nil && b
}
