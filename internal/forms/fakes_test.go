package forms

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/odyssey-erp/ledgerdesk/internal/costing"
	"github.com/odyssey-erp/ledgerdesk/internal/ledger"
	"github.com/odyssey-erp/ledgerdesk/internal/policy"
	"github.com/odyssey-erp/ledgerdesk/internal/shared"
)

type memoryVouchers struct {
	mu      sync.Mutex
	calls   int
	serials int
	docs    map[int64]ledger.Document
	nextID  int64
	saveErr error
	block   chan struct{}
}

func newMemoryVouchers() *memoryVouchers {
	return &memoryVouchers{docs: map[int64]ledger.Document{}, nextID: 100}
}

func (m *memoryVouchers) NextSerial(ctx context.Context, token string, kind ledger.Kind) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serials++
	return fmt.Sprintf("%s-%04d", kind, m.nextID+1), nil
}

func (m *memoryVouchers) GetVoucher(ctx context.Context, token string, kind ledger.Kind, id int64) (ledger.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok || doc.Kind != kind {
		return ledger.Document{}, shared.ErrNotFound
	}
	doc.Lines = append([]ledger.Line(nil), doc.Lines...)
	return doc, nil
}

func (m *memoryVouchers) CreateVoucher(ctx context.Context, token string, doc ledger.Document) (ledger.Receipt, error) {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.saveErr != nil {
		return ledger.Receipt{}, m.saveErr
	}
	m.nextID++
	doc.ID = m.nextID
	m.docs[doc.ID] = doc
	return ledger.Receipt{ID: doc.ID, Serial: doc.Serial}, nil
}

func (m *memoryVouchers) UpdateVoucher(ctx context.Context, token string, doc ledger.Document) (ledger.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.saveErr != nil {
		return ledger.Receipt{}, m.saveErr
	}
	if _, ok := m.docs[doc.ID]; !ok {
		return ledger.Receipt{}, shared.ErrNotFound
	}
	m.docs[doc.ID] = doc
	return ledger.Receipt{ID: doc.ID, Serial: doc.Serial}, nil
}

func (m *memoryVouchers) DeleteVoucher(ctx context.Context, token string, kind ledger.Kind, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	doc, ok := m.docs[id]
	if !ok || doc.Kind != kind {
		return shared.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *memoryVouchers) networkCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type memoryPurchases struct {
	stored    map[int64]costing.Stored
	overheads map[int64][]costing.OverheadRow
	completed []costing.Purchase
	updated   []costing.Purchase
	costing   [][]costing.OverheadRow
	confirmed [][]costing.Allocation
	cancelled []int64
	cancelErr error
}

func (m *memoryPurchases) GetPurchase(ctx context.Context, token string, tranID int64) (costing.Stored, error) {
	st, ok := m.stored[tranID]
	if !ok {
		return costing.Stored{}, shared.ErrNotFound
	}
	return st, nil
}

func (m *memoryPurchases) GetCosting(ctx context.Context, token string, tranID int64) ([]costing.OverheadRow, error) {
	return m.overheads[tranID], nil
}

func (m *memoryPurchases) CompletePurchase(ctx context.Context, token string, p costing.Purchase) (costing.Receipt, error) {
	m.completed = append(m.completed, p)
	return costing.Receipt{TranID: 500, TrNo: "PUR-500"}, nil
}

func (m *memoryPurchases) UpdatePurchase(ctx context.Context, token string, p costing.Purchase) (costing.Receipt, error) {
	m.updated = append(m.updated, p)
	return costing.Receipt{TranID: p.TranID, TrNo: p.TrNo}, nil
}

func (m *memoryPurchases) SaveCosting(ctx context.Context, token string, tranID int64, rows []costing.OverheadRow) error {
	m.costing = append(m.costing, rows)
	return nil
}

func (m *memoryPurchases) ConfirmCosting(ctx context.Context, token string, tranID int64, allocs []costing.Allocation) error {
	m.confirmed = append(m.confirmed, allocs)
	return nil
}

func (m *memoryPurchases) CancelPurchase(ctx context.Context, token string, tranID int64) error {
	if m.cancelErr != nil {
		return m.cancelErr
	}
	m.cancelled = append(m.cancelled, tranID)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []PostedEvent
}

func (n *recordingNotifier) DocumentPosted(ctx context.Context, ev PostedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

type memoryGuard struct {
	mu     sync.Mutex
	held   map[string]bool
	sealed map[string]bool
}

func (g *memoryGuard) Seal(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sealed == nil {
		g.sealed = map[string]bool{}
	}
	g.sealed[key] = true
	return nil
}

func (g *memoryGuard) Sealed(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sealed[key], nil
}

func (g *memoryGuard) Acquire(ctx context.Context, key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held == nil {
		g.held = map[string]bool{}
	}
	if g.held[key] {
		return nil, shared.ErrSubmitInFlight
	}
	g.held[key] = true
	return func() {
		g.mu.Lock()
		delete(g.held, key)
		g.mu.Unlock()
	}, nil
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("tmp-%d", n)
	}
}

// testDeps leaves nil fakes unset so withDefaults sees a nil interface, not a typed nil.
func testDeps(v *memoryVouchers, p *memoryPurchases, n *recordingNotifier) Deps {
	deps := Deps{
		Guard:  &memoryGuard{},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewID:  sequentialIDs(),
		Now:    func() time.Time { return time.Date(2024, 6, 30, 10, 0, 0, 0, time.UTC) },
	}
	if v != nil {
		deps.Vouchers = v
	}
	if p != nil {
		deps.Purchases = p
	}
	if n != nil {
		deps.Notifier = n
	}
	return deps
}

func testSession() shared.Session {
	return shared.Session{Token: "tok", FinancialYearID: 7, Capabilities: policy.Full()}
}
