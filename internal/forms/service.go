package forms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/ledgerdesk/internal/costing"
	"github.com/odyssey-erp/ledgerdesk/internal/ledger"
	"github.com/odyssey-erp/ledgerdesk/internal/money"
	"github.com/odyssey-erp/ledgerdesk/internal/platform/httpx"
	"github.com/odyssey-erp/ledgerdesk/internal/shared"
)

// Recorder counts submission outcomes per document type.
type Recorder interface {
	RecordSubmission(document, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordSubmission(string, string) {}

// Service restores orchestrators from the draft store and writes them back after each change.
type Service struct {
	deps     Deps
	store    DraftStore
	recorder Recorder
}

// NewService constructs the forms service. recorder may be nil.
func NewService(deps Deps, store DraftStore, recorder Recorder) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{deps: deps.withDefaults(), store: store, recorder: recorder}
}

// OpenVoucher starts a create-mode draft with the next serial.
func (s *Service) OpenVoucher(ctx context.Context, sess shared.Session, kind ledger.Kind) (*Voucher, error) {
	v := NewVoucher(sess, kind, s.deps)
	if err := v.Prepare(ctx); err != nil {
		if errors.Is(err, shared.ErrForbidden) {
			return nil, err
		}
		s.deps.Logger.Warn("open voucher without serial", slog.String("kind", string(kind)), slog.Any("error", err))
	}
	if err := s.SaveVoucher(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// EditVoucher starts an edit-mode draft of a persisted document.
func (s *Service) EditVoucher(ctx context.Context, sess shared.Session, kind ledger.Kind, id int64) (*Voucher, error) {
	v := NewVoucher(sess, kind, s.deps)
	if err := v.Load(ctx, id); err != nil {
		return nil, err
	}
	if err := s.SaveVoucher(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Voucher restores a stored draft.
func (s *Service) Voucher(ctx context.Context, sess shared.Session, kind ledger.Kind, draftID string) (*Voucher, error) {
	var state VoucherState
	if err := s.store.Get(ctx, string(kind), draftID, &state); err != nil {
		return nil, err
	}
	if state.Document.Kind != kind {
		return nil, ErrDraftNotFound
	}
	return RestoreVoucher(sess, state, s.deps), nil
}

// SaveVoucher writes the draft back.
func (s *Service) SaveVoucher(ctx context.Context, v *Voucher) error {
	st := v.State()
	return s.store.Put(ctx, string(st.Document.Kind), st.DraftID, st)
}

// SubmitVoucher submits and records the outcome.
func (s *Service) SubmitVoucher(ctx context.Context, v *Voucher) (SubmitResult, error) {
	res, err := v.Submit(ctx)
	s.recorder.RecordSubmission(string(v.state.Document.Kind), outcome(err))
	return res, err
}

// DeleteVoucher removes a persisted document. Needs the delete capability of its kind.
func (s *Service) DeleteVoucher(ctx context.Context, sess shared.Session, kind ledger.Kind, id int64) error {
	v := NewVoucher(sess, kind, s.deps)
	if !v.access().Delete {
		return shared.ErrForbidden
	}
	if err := s.deps.Vouchers.DeleteVoucher(ctx, sess.Token, kind, id); err != nil {
		return fmt.Errorf("delete %s %d: %w", kind, id, err)
	}
	s.deps.Logger.Info("voucher deleted", slog.String("kind", string(kind)), slog.Int64("id", id))
	return nil
}

// DiscardVoucher drops a draft.
func (s *Service) DiscardVoucher(ctx context.Context, kind ledger.Kind, draftID string) error {
	return s.store.Delete(ctx, string(kind), draftID)
}

// OpenPurchase starts a blank purchase draft.
func (s *Service) OpenPurchase(ctx context.Context, sess shared.Session) (*Purchase, error) {
	if !sess.Capabilities.Purchase.Create {
		return nil, shared.ErrForbidden
	}
	p := NewPurchase(sess, s.deps)
	if err := s.SavePurchase(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// EditPurchase starts a draft of a persisted purchase.
func (s *Service) EditPurchase(ctx context.Context, sess shared.Session, tranID int64) (*Purchase, error) {
	p := NewPurchase(sess, s.deps)
	if err := p.Load(ctx, tranID); err != nil {
		return nil, err
	}
	if err := s.SavePurchase(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Purchase restores a stored purchase draft.
func (s *Service) Purchase(ctx context.Context, sess shared.Session, draftID string) (*Purchase, error) {
	var state PurchaseState
	if err := s.store.Get(ctx, purchaseKind, draftID, &state); err != nil {
		return nil, err
	}
	return RestorePurchase(sess, state, s.deps), nil
}

// SavePurchase writes the purchase draft back.
func (s *Service) SavePurchase(ctx context.Context, p *Purchase) error {
	st := p.State()
	return s.store.Put(ctx, purchaseKind, st.DraftID, st)
}

// RecordPurchase records the outcome of a purchase persistence step.
func (s *Service) RecordPurchase(step string, err error) {
	s.recorder.RecordSubmission(purchaseKind+"_"+step, outcome(err))
}

// DiscardPurchase drops a purchase draft.
func (s *Service) DiscardPurchase(ctx context.Context, draftID string) error {
	return s.store.Delete(ctx, purchaseKind, draftID)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, httpx.ErrValidation):
		return "invalid"
	case errors.Is(err, httpx.ErrConflict):
		return "conflict"
	case errors.Is(err, httpx.ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}

// PurchaseView is the response shape of a purchase draft.
type PurchaseView struct {
	PurchaseState
	Summary costing.InvoiceSummary `json:"summary"`
	Charges costing.Charges        `json:"charges"`
}

// ViewPurchase renders p.
func ViewPurchase(p *Purchase) PurchaseView {
	st := p.State()
	return PurchaseView{PurchaseState: st, Summary: p.Summary(), Charges: costing.ClassifyOverheads(st.Purchase.Overheads)}
}

// VoucherView is the response shape of a voucher draft.
type VoucherView struct {
	VoucherState
	Totals    ledger.Totals `json:"totals"`
	Shortfall *Shortfall    `json:"shortfall,omitempty"`
}

// Shortfall tells the user which side is short and by how much.
type Shortfall struct {
	Amount string `json:"amount"`
	Side   string `json:"side"`
	Label  string `json:"label"`
}

// ViewVoucher renders v.
func ViewVoucher(v *Voucher) VoucherView {
	totals := v.Totals()
	view := VoucherView{VoucherState: v.State(), Totals: totals}
	if amount, side := totals.Shortfall(); side != ledger.SideNone {
		view.Shortfall = &Shortfall{Amount: money.Fixed(amount), Side: string(side), Label: money.Format(amount) + " (" + string(side) + ")"}
	}
	return view
}
