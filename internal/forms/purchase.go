package forms

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerdesk/internal/costing"
	"github.com/odyssey-erp/ledgerdesk/internal/money"
	"github.com/odyssey-erp/ledgerdesk/internal/shared"
)

const purchaseKind = "purchase"

// PurchaseState is the persisted form of a purchase draft.
type PurchaseState struct {
	DraftID    string               `json:"draft_id"`
	Revision   string               `json:"revision,omitempty"`
	Status     Status               `json:"status"`
	Purchase   costing.Purchase     `json:"purchase"`
	Allocation []costing.Allocation `json:"allocation,omitempty"`
}

// PurchaseHeader holds the editable header fields of a purchase.
type PurchaseHeader struct {
	TrDate              *string `json:"trdate,omitempty"`
	SupplierInvoiceNo   *string `json:"suppinvno,omitempty"`
	SupplierInvoiceDate *string `json:"suppinvdt,omitempty"`
	PartyID             *int64  `json:"partyid,omitempty"`
	Remark              *string `json:"remark,omitempty"`
}

// ItemInput describes an item line as typed by the user. Derived amounts are always recomputed.
type ItemInput struct {
	ItemCode int64           `json:"itemcode"`
	ItemName string          `json:"itemname"`
	Qty      decimal.Decimal `json:"qty"`
	Rate     decimal.Decimal `json:"rate"`
	CGSTPct  decimal.Decimal `json:"cgst_pct"`
	SGSTPct  decimal.Decimal `json:"sgst_pct"`
	IGSTPct  decimal.Decimal `json:"igst_pct"`
}

// Preview is an unconfirmed or locked allocation with its rounding drift.
type Preview struct {
	Allocation    []costing.Allocation `json:"allocation"`
	TotalOverhead decimal.Decimal      `json:"total_overhead"`
	Drift         decimal.Decimal      `json:"drift"`
	Locked        bool                 `json:"locked"`
}

// Purchase orchestrates a purchase through Draft, Costing, PendingApproval and Posted.
type Purchase struct {
	sess  shared.Session
	deps  Deps
	state PurchaseState
}

// NewPurchase starts a blank purchase draft.
func NewPurchase(sess shared.Session, deps Deps) *Purchase {
	deps = deps.withDefaults()
	return &Purchase{
		sess: sess,
		deps: deps,
		state: PurchaseState{
			DraftID:  deps.NewID(),
			Revision: deps.NewID(),
			Status:   StatusDraft,
			Purchase: costing.Purchase{
				FinancialYearID: sess.FinancialYearID,
				TrDate:          deps.Now().Format("2006-01-02"),
				Overheads:       costing.DefaultOverheads(),
			},
		},
	}
}

// RestorePurchase rebuilds an orchestrator from a stored draft.
func RestorePurchase(sess shared.Session, state PurchaseState, deps Deps) *Purchase {
	return &Purchase{sess: sess, deps: deps.withDefaults(), state: state}
}

// State returns a copy of the current draft.
func (p *Purchase) State() PurchaseState {
	out := p.state
	out.Purchase.Items = append([]costing.ItemLine(nil), p.state.Purchase.Items...)
	out.Purchase.Overheads = append([]costing.OverheadRow(nil), p.state.Purchase.Overheads...)
	out.Allocation = append([]costing.Allocation(nil), p.state.Allocation...)
	return out
}

// Summary returns the invoice totals.
func (p *Purchase) Summary() costing.InvoiceSummary {
	return p.state.Purchase.Summary()
}

func (p *Purchase) requireStatus(allowed ...Status) error {
	for _, s := range allowed {
		if p.state.Status == s {
			return nil
		}
	}
	return shared.NewValidationError(shared.RuleInvalidState,
		fmt.Sprintf("operation not allowed while purchase is %s", p.state.Status))
}

func (p *Purchase) requireEditable() error {
	if err := p.requireStatus(StatusDraft, StatusCosting); err != nil {
		return err
	}
	if p.state.Purchase.CostConfirmed {
		return shared.NewValidationError(shared.RuleInvalidState, "costing is confirmed")
	}
	return nil
}

// Load switches the draft to a persisted purchase. A posted goods receipt loads as Posted, a
// confirmed costing resumes at Costing with its locked allocation, anything else as Draft.
func (p *Purchase) Load(ctx context.Context, tranID int64) error {
	if !p.sess.Capabilities.Purchase.View {
		return shared.ErrForbidden
	}
	stored, err := p.deps.Purchases.GetPurchase(ctx, p.sess.Token, tranID)
	if err != nil {
		return fmt.Errorf("load purchase %d: %w", tranID, err)
	}
	overheads, err := p.deps.Purchases.GetCosting(ctx, p.sess.Token, tranID)
	if err != nil {
		return fmt.Errorf("load purchase %d costing: %w", tranID, err)
	}
	pur := stored.Purchase
	pur.TranID = tranID
	pur.Overheads = overheads
	if len(pur.Overheads) == 0 && !pur.CostConfirmed {
		pur.Overheads = costing.DefaultOverheads()
	}
	status := StatusDraft
	switch {
	case pur.GRNPosted:
		status = StatusPosted
	case pur.CostConfirmed:
		status = StatusCosting
	}
	p.state.Revision = p.deps.NewID()
	p.state.Status = status
	p.state.Purchase = pur
	p.state.Allocation = stored.Allocation
	return nil
}

// SetHeader applies the given header fields. Header and items are only editable in Draft.
func (p *Purchase) SetHeader(h PurchaseHeader) error {
	if err := p.requireStatus(StatusDraft); err != nil {
		return err
	}
	pur := &p.state.Purchase
	if h.TrDate != nil {
		pur.TrDate = *h.TrDate
	}
	if h.SupplierInvoiceNo != nil {
		pur.SupplierInvoiceNo = *h.SupplierInvoiceNo
	}
	if h.SupplierInvoiceDate != nil {
		pur.SupplierInvoiceDate = *h.SupplierInvoiceDate
	}
	if h.PartyID != nil {
		pur.PartyID = *h.PartyID
	}
	if h.Remark != nil {
		pur.Remark = *h.Remark
	}
	return nil
}

func (in ItemInput) line() (costing.ItemLine, error) {
	if in.ItemCode <= 0 {
		return costing.ItemLine{}, shared.NewValidationError(shared.RuleInvalidItem, "item is required")
	}
	if !in.Qty.IsPositive() {
		return costing.ItemLine{}, shared.NewValidationError(shared.RuleInvalidItem, "quantity must be greater than zero")
	}
	for _, v := range []decimal.Decimal{in.Rate, in.CGSTPct, in.SGSTPct, in.IGSTPct} {
		if v.IsNegative() {
			return costing.ItemLine{}, shared.NewValidationError(shared.RuleInvalidItem, "rate and tax percentages cannot be negative")
		}
	}
	return costing.NewItemLine(in.ItemCode, in.ItemName, in.Qty, in.Rate, in.CGSTPct, in.SGSTPct, in.IGSTPct), nil
}

// AddItem appends an item line.
func (p *Purchase) AddItem(in ItemInput) (costing.ItemLine, error) {
	if err := p.requireStatus(StatusDraft); err != nil {
		return costing.ItemLine{}, err
	}
	item, err := in.line()
	if err != nil {
		return costing.ItemLine{}, err
	}
	p.state.Purchase.Items = append(p.state.Purchase.Items, item)
	p.state.Allocation = nil
	return item, nil
}

// UpdateItem replaces the item at the 0-based index.
func (p *Purchase) UpdateItem(index int, in ItemInput) (costing.ItemLine, error) {
	if err := p.requireStatus(StatusDraft); err != nil {
		return costing.ItemLine{}, err
	}
	if index < 0 || index >= len(p.state.Purchase.Items) {
		return costing.ItemLine{}, fmt.Errorf("item %d: %w", index, shared.ErrNotFound)
	}
	item, err := in.line()
	if err != nil {
		return costing.ItemLine{}, err
	}
	p.state.Purchase.Items[index] = item
	p.state.Allocation = nil
	return item, nil
}

// RemoveItem deletes the item at the 0-based index.
func (p *Purchase) RemoveItem(index int) error {
	if err := p.requireStatus(StatusDraft); err != nil {
		return err
	}
	items := p.state.Purchase.Items
	if index < 0 || index >= len(items) {
		return fmt.Errorf("item %d: %w", index, shared.ErrNotFound)
	}
	p.state.Purchase.Items = append(items[:index:index], items[index+1:]...)
	p.state.Allocation = nil
	return nil
}

func (p *Purchase) validateForSave() error {
	pur := p.state.Purchase
	if len(pur.Items) == 0 {
		return shared.NewValidationError(shared.RuleMinOneLine, "purchase must have at least one item")
	}
	if pur.PartyID <= 0 {
		return shared.NewValidationError(shared.RuleInvalidField, "supplier is required")
	}
	if pur.SupplierInvoiceNo == "" {
		return shared.NewValidationError(shared.RuleInvalidField, "supplier invoice number is required")
	}
	if !p.sess.HasFinancialYear() {
		return shared.NewValidationError(shared.RuleMissingFinancialYear, "financial year is not set")
	}
	return nil
}

func (p *Purchase) lock(ctx context.Context) (func(), error) {
	id := p.state.DraftID
	if p.state.Purchase.TranID > 0 {
		id = strconv.FormatInt(p.state.Purchase.TranID, 10)
	}
	return p.deps.Guard.Acquire(ctx, shared.SubmitLockKey(purchaseKind, id))
}

// guard locks the purchase and rejects a draft revision that already reached the backend.
func (p *Purchase) guard(ctx context.Context) (string, func(), error) {
	release, err := p.lock(ctx)
	if err != nil {
		return "", nil, err
	}
	key := shared.SubmittedKey(purchaseKind, revisionOf(p.state.Revision, p.state.DraftID))
	sealed, err := p.deps.Guard.Sealed(ctx, key)
	if err != nil {
		release()
		return "", nil, err
	}
	if sealed {
		release()
		return "", nil, shared.ErrAlreadySubmitted
	}
	return key, release, nil
}

// seal marks the submitted revision and moves the draft to a fresh one.
func (p *Purchase) seal(ctx context.Context, key string) {
	if err := p.deps.Guard.Seal(ctx, key); err != nil {
		p.deps.Logger.Warn("seal submitted purchase", slog.String("draft", p.state.DraftID), slog.Any("error", err))
	}
	p.state.Revision = p.deps.NewID()
}

// Save creates the purchase or updates it when it already has a transaction id.
func (p *Purchase) Save(ctx context.Context) (costing.Receipt, error) {
	editing := p.state.Purchase.TranID > 0
	if !p.sess.Capabilities.Purchase.CanSave(editing) {
		return costing.Receipt{}, shared.ErrForbidden
	}
	if err := p.requireEditable(); err != nil {
		return costing.Receipt{}, err
	}
	if err := p.validateForSave(); err != nil {
		return costing.Receipt{}, err
	}
	sealKey, release, err := p.guard(ctx)
	if err != nil {
		return costing.Receipt{}, err
	}
	defer release()

	pur := p.state.Purchase
	pur.FinancialYearID = p.sess.FinancialYearID
	for i := range pur.Items {
		pur.Items[i].Recalc()
	}
	var receipt costing.Receipt
	if editing {
		receipt, err = p.deps.Purchases.UpdatePurchase(ctx, p.sess.Token, pur)
	} else {
		receipt, err = p.deps.Purchases.CompletePurchase(ctx, p.sess.Token, pur)
	}
	if err != nil {
		return costing.Receipt{}, fmt.Errorf("save purchase: %w", err)
	}
	pur.TranID = receipt.TranID
	pur.TrNo = receipt.TrNo
	p.state.Purchase = pur
	p.seal(ctx, sealKey)
	p.deps.Logger.Info("purchase saved", slog.Int64("tranid", receipt.TranID), slog.String("trno", receipt.TrNo), slog.Bool("edit", editing))
	return receipt, nil
}

// BeginCosting moves a saved draft to the costing step. Overhead persistence is keyed by
// transaction id, so an unsaved draft is rejected.
func (p *Purchase) BeginCosting() error {
	if err := p.requireStatus(StatusDraft, StatusCosting); err != nil {
		return err
	}
	if p.state.Purchase.TranID <= 0 {
		return shared.NewValidationError(shared.RuleMissingTransaction, "save the purchase before costing")
	}
	if len(p.state.Purchase.Overheads) == 0 {
		p.state.Purchase.Overheads = costing.DefaultOverheads()
	}
	p.state.Status = StatusCosting
	return nil
}

// SetOverheads replaces the overhead rows. Rows with an empty type are dropped.
func (p *Purchase) SetOverheads(rows []costing.OverheadRow) error {
	if err := p.requireStatus(StatusCosting); err != nil {
		return err
	}
	if p.state.Purchase.CostConfirmed {
		return shared.NewValidationError(shared.RuleInvalidState, "costing is confirmed")
	}
	clean := make([]costing.OverheadRow, 0, len(rows))
	for _, row := range rows {
		if row.Type == "" {
			continue
		}
		if row.Amount.IsNegative() {
			return shared.NewValidationError(shared.RuleInvalidField, fmt.Sprintf("overhead %q cannot be negative", row.Type))
		}
		clean = append(clean, costing.OverheadRow{Type: row.Type, Amount: money.Round2(row.Amount)})
	}
	p.state.Purchase.Overheads = clean
	p.state.Allocation = nil
	return nil
}

// SaveCosting persists the overhead rows.
func (p *Purchase) SaveCosting(ctx context.Context) error {
	if !p.sess.Capabilities.Purchase.Edit {
		return shared.ErrForbidden
	}
	if err := p.requireStatus(StatusCosting); err != nil {
		return err
	}
	if p.state.Purchase.CostConfirmed {
		return shared.NewValidationError(shared.RuleInvalidState, "costing is confirmed")
	}
	if err := p.deps.Purchases.SaveCosting(ctx, p.sess.Token, p.state.Purchase.TranID, p.state.Purchase.Overheads); err != nil {
		return fmt.Errorf("save costing: %w", err)
	}
	p.state.Purchase.CostSheetPrepared = costing.Prepared(p.state.Purchase.Overheads)
	return nil
}

// Preview computes the allocation. Once costing is confirmed the locked allocation is returned.
func (p *Purchase) Preview() Preview {
	overheads := p.state.Purchase.Overheads
	if p.state.Purchase.CostConfirmed {
		return Preview{
			Allocation:    append([]costing.Allocation(nil), p.state.Allocation...),
			TotalOverhead: costing.TotalOverhead(overheads),
			Drift:         costing.Drift(p.state.Allocation, overheads),
			Locked:        true,
		}
	}
	allocs := costing.Allocate(p.state.Purchase.Items, overheads)
	return Preview{
		Allocation:    allocs,
		TotalOverhead: costing.TotalOverhead(overheads),
		Drift:         costing.Drift(allocs, overheads),
	}
}

// ConfirmCosting stores and confirms the allocation. The allocation is final afterwards.
func (p *Purchase) ConfirmCosting(ctx context.Context) (Preview, error) {
	if !p.sess.Capabilities.Purchase.Edit {
		return Preview{}, shared.ErrForbidden
	}
	if err := p.requireStatus(StatusCosting); err != nil {
		return Preview{}, err
	}
	if p.state.Purchase.CostConfirmed {
		return Preview{}, shared.NewValidationError(shared.RuleInvalidState, "costing is already confirmed")
	}
	preview := p.Preview()
	if len(preview.Allocation) == 0 {
		return Preview{}, shared.NewValidationError(shared.RuleEmptyAllocation, "nothing to allocate")
	}
	sealKey, release, err := p.guard(ctx)
	if err != nil {
		return Preview{}, err
	}
	defer release()

	tranID := p.state.Purchase.TranID
	if err := p.deps.Purchases.SaveCosting(ctx, p.sess.Token, tranID, p.state.Purchase.Overheads); err != nil {
		return Preview{}, fmt.Errorf("save costing: %w", err)
	}
	if err := p.deps.Purchases.ConfirmCosting(ctx, p.sess.Token, tranID, preview.Allocation); err != nil {
		return Preview{}, fmt.Errorf("confirm costing: %w", err)
	}
	p.state.Allocation = preview.Allocation
	p.state.Purchase.CostSheetPrepared = true
	p.state.Purchase.CostConfirmed = true
	p.seal(ctx, sealKey)
	if !preview.Drift.IsZero() {
		p.deps.Logger.Info("costing confirmed with rounding drift", slog.Int64("tranid", tranID), slog.String("drift", preview.Drift.String()))
	}
	preview.Locked = true
	return preview, nil
}

// Approve submits a confirmed costing for approval.
func (p *Purchase) Approve() error {
	if !p.sess.Capabilities.Purchase.Edit {
		return shared.ErrForbidden
	}
	if err := p.requireStatus(StatusCosting); err != nil {
		return err
	}
	if !p.state.Purchase.CostConfirmed || len(p.state.Allocation) == 0 {
		return shared.NewValidationError(shared.RuleEmptyAllocation, "confirm the costing before approval")
	}
	p.state.Status = StatusPendingApproval
	return nil
}

// Post approves the purchase in the backend and posts the goods receipt. It cannot be undone.
func (p *Purchase) Post(ctx context.Context) (costing.Receipt, error) {
	if !p.sess.Capabilities.Purchase.Edit {
		return costing.Receipt{}, shared.ErrForbidden
	}
	if err := p.requireStatus(StatusPendingApproval); err != nil {
		return costing.Receipt{}, err
	}
	sealKey, release, err := p.guard(ctx)
	if err != nil {
		return costing.Receipt{}, err
	}
	defer release()

	pur := p.state.Purchase
	pur.GRNPosted = true
	receipt, err := p.deps.Purchases.UpdatePurchase(ctx, p.sess.Token, pur)
	if err != nil {
		return costing.Receipt{}, fmt.Errorf("post purchase: %w", err)
	}
	p.state.Purchase = pur
	p.state.Status = StatusPosted
	p.seal(ctx, sealKey)

	ev := PostedEvent{
		Document:        purchaseKind,
		ID:              receipt.TranID,
		Ref:             receipt.TrNo,
		Amount:          money.Fixed(pur.Summary().FinalTotal),
		FinancialYearID: pur.FinancialYearID,
		PostedAt:        p.deps.Now(),
	}
	if err := p.deps.Notifier.DocumentPosted(ctx, ev); err != nil {
		p.deps.Logger.Warn("notify posted purchase", slog.Int64("tranid", receipt.TranID), slog.Any("error", err))
	}
	return receipt, nil
}

// Cancel cancels a saved purchase. It is rejected once costing is confirmed.
func (p *Purchase) Cancel(ctx context.Context) error {
	if !p.sess.Capabilities.Purchase.Delete {
		return shared.ErrForbidden
	}
	if err := p.requireEditable(); err != nil {
		return err
	}
	if p.state.Purchase.TranID <= 0 {
		return shared.NewValidationError(shared.RuleMissingTransaction, "purchase is not saved")
	}
	if err := p.deps.Purchases.CancelPurchase(ctx, p.sess.Token, p.state.Purchase.TranID); err != nil {
		return fmt.Errorf("cancel purchase: %w", err)
	}
	p.state.Status = StatusCancelled
	return nil
}

// CostSheet renders the current allocation as an XLSX workbook.
func (p *Purchase) CostSheet() ([]byte, error) {
	preview := p.Preview()
	return costing.CostSheet(preview.Allocation, p.state.Purchase.Overheads)
}
