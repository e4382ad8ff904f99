// Package forms holds the entry-screen orchestrators: journal-style vouchers and the purchase
// landed-cost workflow. Each orchestrator owns one editable document, recomputes derived values on
// every change and delegates persistence to the ERP backend.
package forms

import (
	"context"
	"time"

	"github.com/odyssey-erp/ledgerdesk/internal/costing"
	"github.com/odyssey-erp/ledgerdesk/internal/ledger"
)

// VoucherGateway persists journals, debit notes and credit notes.
type VoucherGateway interface {
	NextSerial(ctx context.Context, token string, kind ledger.Kind) (string, error)
	GetVoucher(ctx context.Context, token string, kind ledger.Kind, id int64) (ledger.Document, error)
	CreateVoucher(ctx context.Context, token string, doc ledger.Document) (ledger.Receipt, error)
	UpdateVoucher(ctx context.Context, token string, doc ledger.Document) (ledger.Receipt, error)
	DeleteVoucher(ctx context.Context, token string, kind ledger.Kind, id int64) error
}

// PurchaseGateway persists purchases and their costing.
type PurchaseGateway interface {
	GetPurchase(ctx context.Context, token string, tranID int64) (costing.Stored, error)
	GetCosting(ctx context.Context, token string, tranID int64) ([]costing.OverheadRow, error)
	CompletePurchase(ctx context.Context, token string, p costing.Purchase) (costing.Receipt, error)
	UpdatePurchase(ctx context.Context, token string, p costing.Purchase) (costing.Receipt, error)
	SaveCosting(ctx context.Context, token string, tranID int64, rows []costing.OverheadRow) error
	ConfirmCosting(ctx context.Context, token string, tranID int64, allocs []costing.Allocation) error
	CancelPurchase(ctx context.Context, token string, tranID int64) error
}

// SubmitGuard grants one in-flight submission per key and remembers which draft
// revisions were already submitted. Seal is called while the lock is held.
type SubmitGuard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
	Seal(ctx context.Context, key string) error
	Sealed(ctx context.Context, key string) (bool, error)
}

// PostedEvent describes a document that reached the posted state.
type PostedEvent struct {
	Document        string    `json:"document"`
	ID              int64     `json:"id"`
	Ref             string    `json:"ref"`
	Amount          string    `json:"amount"`
	FinancialYearID int64     `json:"finyearid"`
	PostedAt        time.Time `json:"posted_at"`
}

// Notifier is told about posted documents. Delivery failures never fail the posting.
type Notifier interface {
	DocumentPosted(ctx context.Context, ev PostedEvent) error
}

type nopNotifier struct{}

func (nopNotifier) DocumentPosted(context.Context, PostedEvent) error { return nil }

type nopGuard struct{}

func (nopGuard) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

func (nopGuard) Seal(context.Context, string) error { return nil }

func (nopGuard) Sealed(context.Context, string) (bool, error) { return false, nil }
