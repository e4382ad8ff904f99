package forms

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerdesk/internal/ledger"
	"github.com/odyssey-erp/ledgerdesk/internal/money"
	"github.com/odyssey-erp/ledgerdesk/internal/policy"
	"github.com/odyssey-erp/ledgerdesk/internal/shared"
)

// VoucherState is the persisted form of a voucher draft.
type VoucherState struct {
	DraftID  string          `json:"draft_id"`
	// Revision changes after every successful submission so a stale copy of the draft
	// cannot be submitted again.
	Revision string          `json:"revision,omitempty"`
	Mode     Mode            `json:"mode"`
	Status   Status          `json:"status"`
	Document ledger.Document `json:"document"`
}

// Header holds the editable master fields of a voucher.
type Header struct {
	Date               *string `json:"date,omitempty"`
	Serial             *string `json:"serial,omitempty"`
	SourceDocumentType *string `json:"source_document_type,omitempty"`
	SourceDocumentRef  *string `json:"source_document_ref,omitempty"`
	Narration          *string `json:"narration,omitempty"`
}

// LinePatch changes selected fields of a line. A positive debit clears the credit and vice versa;
// when both are given the credit is applied last.
type LinePatch struct {
	AccountID   *int64           `json:"account_id,omitempty"`
	PartyID     *int64           `json:"party_id,omitempty"`
	ClearParty  bool             `json:"clear_party,omitempty"`
	Debit       *decimal.Decimal `json:"debit_amount,omitempty"`
	Credit      *decimal.Decimal `json:"credit_amount,omitempty"`
	Description *string          `json:"description,omitempty"`
}

// Deps are the collaborators shared by the orchestrators.
type Deps struct {
	Vouchers  VoucherGateway
	Purchases PurchaseGateway
	Guard     SubmitGuard
	Notifier  Notifier
	Logger    *slog.Logger
	NewID     func() string
	Now       func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Guard == nil {
		d.Guard = nopGuard{}
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.NewID == nil {
		d.NewID = func() string { return uuid.NewString() }
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Voucher orchestrates one journal, debit note or credit note.
type Voucher struct {
	sess  shared.Session
	deps  Deps
	state VoucherState
}

// NewVoucher starts a blank create-mode draft holding a single empty line.
func NewVoucher(sess shared.Session, kind ledger.Kind, deps Deps) *Voucher {
	deps = deps.withDefaults()
	v := &Voucher{sess: sess, deps: deps}
	v.reset(kind, "")
	return v
}

// RestoreVoucher rebuilds an orchestrator from a stored draft.
func RestoreVoucher(sess shared.Session, state VoucherState, deps Deps) *Voucher {
	return &Voucher{sess: sess, deps: deps.withDefaults(), state: state}
}

func (v *Voucher) reset(kind ledger.Kind, serial string) {
	draftID := v.state.DraftID
	if draftID == "" {
		draftID = v.deps.NewID()
	}
	v.state = VoucherState{
		DraftID:  draftID,
		Revision: v.deps.NewID(),
		Mode:     ModeCreate,
		Status:   StatusDraft,
		Document: ledger.Document{
			Kind:            kind,
			Serial:          serial,
			Date:            v.deps.Now().Format(time.DateOnly),
			FinancialYearID: v.sess.FinancialYearID,
			Lines:           []ledger.Line{ledger.NewLine(v.deps.NewID())},
		},
	}
}

// State returns a copy of the current draft.
func (v *Voucher) State() VoucherState {
	out := v.state
	out.Document.Lines = append([]ledger.Line(nil), v.state.Document.Lines...)
	return out
}

func (v *Voucher) access() policy.Access {
	switch v.state.Document.Kind {
	case ledger.KindDebitNote:
		return v.sess.Capabilities.DebitNote
	case ledger.KindCreditNote:
		return v.sess.Capabilities.CreditNote
	default:
		return v.sess.Capabilities.Journal
	}
}

// Prepare fetches the next serial for a create-mode draft.
func (v *Voucher) Prepare(ctx context.Context) error {
	if !v.access().Create {
		return shared.ErrForbidden
	}
	serial, err := v.deps.Vouchers.NextSerial(ctx, v.sess.Token, v.state.Document.Kind)
	if err != nil {
		return fmt.Errorf("next %s serial: %w", v.state.Document.Kind, err)
	}
	v.state.Document.Serial = serial
	return nil
}

// Load switches the form to edit mode on a persisted document.
func (v *Voucher) Load(ctx context.Context, id int64) error {
	if !v.access().View {
		return shared.ErrForbidden
	}
	doc, err := v.deps.Vouchers.GetVoucher(ctx, v.sess.Token, v.state.Document.Kind, id)
	if err != nil {
		return fmt.Errorf("load %s %d: %w", v.state.Document.Kind, id, err)
	}
	doc.ID = id
	doc.Kind = v.state.Document.Kind
	if len(doc.Lines) == 0 {
		doc.Lines = []ledger.Line{ledger.NewLine(v.deps.NewID())}
	}
	for i := range doc.Lines {
		doc.Lines[i].ID = v.deps.NewID()
	}
	v.state.Revision = v.deps.NewID()
	v.state.Mode = ModeEdit
	v.state.Status = StatusDraft
	v.state.Document = doc
	return nil
}

// SetHeader applies the given master fields.
func (v *Voucher) SetHeader(h Header) {
	doc := &v.state.Document
	if h.Date != nil {
		doc.Date = *h.Date
	}
	if h.Serial != nil {
		doc.Serial = *h.Serial
	}
	if h.SourceDocumentType != nil {
		doc.SourceDocumentType = *h.SourceDocumentType
	}
	if h.SourceDocumentRef != nil {
		doc.SourceDocumentRef = *h.SourceDocumentRef
	}
	if h.Narration != nil {
		doc.Narration = *h.Narration
	}
}

// AddLine appends an empty line with a fresh temporary id.
func (v *Voucher) AddLine() ledger.Line {
	line := ledger.NewLine(v.deps.NewID())
	v.state.Document.Lines = append(v.state.Document.Lines, line)
	return line
}

// RemoveLine deletes a line. The last remaining line cannot be removed.
func (v *Voucher) RemoveLine(id string) error {
	idx := v.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("line %s: %w", id, shared.ErrNotFound)
	}
	if len(v.state.Document.Lines) <= 1 {
		return shared.NewValidationError(shared.RuleMinOneLine, "document must have at least one line")
	}
	lines := v.state.Document.Lines
	v.state.Document.Lines = append(lines[:idx:idx], lines[idx+1:]...)
	return nil
}

// UpdateLine applies patch to the line with id.
func (v *Voucher) UpdateLine(id string, patch LinePatch) (ledger.Line, error) {
	idx := v.indexOf(id)
	if idx < 0 {
		return ledger.Line{}, fmt.Errorf("line %s: %w", id, shared.ErrNotFound)
	}
	line := &v.state.Document.Lines[idx]
	if patch.AccountID != nil {
		line.AccountID = *patch.AccountID
	}
	if patch.ClearParty {
		line.PartyID = nil
	} else if patch.PartyID != nil {
		party := *patch.PartyID
		line.PartyID = &party
	}
	if patch.Debit != nil {
		line.SetDebit(*patch.Debit)
	}
	if patch.Credit != nil {
		line.SetCredit(*patch.Credit)
	}
	if patch.Description != nil {
		line.Description = *patch.Description
	}
	return *line, nil
}

func (v *Voucher) indexOf(id string) int {
	for i, line := range v.state.Document.Lines {
		if line.ID == id {
			return i
		}
	}
	return -1
}

// Totals evaluates the current lines.
func (v *Voucher) Totals() ledger.Totals {
	return ledger.Evaluate(v.state.Document.Lines)
}

// SubmitResult reports a successful save.
type SubmitResult struct {
	Receipt ledger.Receipt `json:"receipt"`
	Status  Status         `json:"status"`
}

// Submit validates the draft and persists it. Validation failures never reach the backend.
// On success a create-mode form resets to a blank draft with the next serial and an edit-mode
// form reloads the persisted document.
func (v *Voucher) Submit(ctx context.Context) (SubmitResult, error) {
	editing := v.state.Mode == ModeEdit
	if !v.access().CanSave(editing) {
		return SubmitResult{}, shared.ErrForbidden
	}
	doc := v.state.Document
	if err := ledger.ValidateForSubmit(doc.Lines, v.sess.FinancialYearID); err != nil {
		return SubmitResult{}, err
	}
	doc.FinancialYearID = v.sess.FinancialYearID

	lockID := v.state.DraftID
	if editing {
		lockID = strconv.FormatInt(doc.ID, 10)
	}
	release, err := v.deps.Guard.Acquire(ctx, shared.SubmitLockKey(string(doc.Kind), lockID))
	if err != nil {
		return SubmitResult{}, err
	}
	defer release()

	sealKey := shared.SubmittedKey(string(doc.Kind), revisionOf(v.state.Revision, v.state.DraftID))
	sealed, err := v.deps.Guard.Sealed(ctx, sealKey)
	if err != nil {
		return SubmitResult{}, err
	}
	if sealed {
		return SubmitResult{}, shared.ErrAlreadySubmitted
	}

	var receipt ledger.Receipt
	if editing {
		receipt, err = v.deps.Vouchers.UpdateVoucher(ctx, v.sess.Token, doc)
	} else {
		receipt, err = v.deps.Vouchers.CreateVoucher(ctx, v.sess.Token, doc)
	}
	if err != nil {
		return SubmitResult{}, fmt.Errorf("save %s: %w", doc.Kind, err)
	}
	if err := v.deps.Guard.Seal(ctx, sealKey); err != nil {
		v.deps.Logger.Warn("seal submitted voucher", slog.Int64("id", receipt.ID), slog.Any("error", err))
	}
	v.deps.Logger.Info("voucher saved",
		slog.String("kind", string(doc.Kind)),
		slog.Int64("id", receipt.ID),
		slog.String("serial", receipt.Serial),
		slog.Bool("edit", editing))

	v.notify(ctx, doc, receipt)

	if editing {
		if err := v.Load(ctx, receipt.ID); err != nil {
			v.deps.Logger.Warn("reload saved voucher", slog.Int64("id", receipt.ID), slog.Any("error", err))
			v.state.Document = doc
			v.state.Revision = v.deps.NewID()
		}
	} else {
		v.reset(doc.Kind, "")
		if err := v.Prepare(ctx); err != nil {
			v.deps.Logger.Warn("next serial after save", slog.String("kind", string(doc.Kind)), slog.Any("error", err))
		}
	}
	return SubmitResult{Receipt: receipt, Status: StatusPosted}, nil
}

func (v *Voucher) notify(ctx context.Context, doc ledger.Document, receipt ledger.Receipt) {
	ev := PostedEvent{
		Document:        string(doc.Kind),
		ID:              receipt.ID,
		Ref:             receipt.Serial,
		Amount:          money.Fixed(doc.Totals().TotalDebit),
		FinancialYearID: doc.FinancialYearID,
		PostedAt:        v.deps.Now(),
	}
	if err := v.deps.Notifier.DocumentPosted(ctx, ev); err != nil {
		v.deps.Logger.Warn("notify posted voucher", slog.Int64("id", receipt.ID), slog.Any("error", err))
	}
}

// revisionOf keys drafts stored before revisions existed by their draft id.
func revisionOf(revision, draftID string) string {
	if revision != "" {
		return revision
	}
	return draftID
}
