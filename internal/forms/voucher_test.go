package forms

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgerdesk/internal/ledger"
	"github.com/odyssey-erp/ledgerdesk/internal/platform/httpx"
	"github.com/odyssey-erp/ledgerdesk/internal/policy"
	"github.com/odyssey-erp/ledgerdesk/internal/shared"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func int64p(v int64) *int64 { return &v }

// balancedVoucher fills a draft with a 150.00 debit and credit pair.
func balancedVoucher(t *testing.T, v *Voucher) {
	t.Helper()
	first := v.State().Document.Lines[0].ID
	_, err := v.UpdateLine(first, LinePatch{AccountID: int64p(1), Debit: dec("150.00")})
	require.NoError(t, err)
	second := v.AddLine()
	_, err = v.UpdateLine(second.ID, LinePatch{AccountID: int64p(2), Credit: dec("150.00")})
	require.NoError(t, err)
}

func TestNewVoucherStartsWithOneLine(t *testing.T) {
	v := NewVoucher(testSession(), ledger.KindJournal, testDeps(newMemoryVouchers(), nil, nil))
	st := v.State()
	require.Len(t, st.Document.Lines, 1)
	assert.Equal(t, ModeCreate, st.Mode)
	assert.Equal(t, StatusDraft, st.Status)
	assert.Equal(t, "2024-06-30", st.Document.Date)
	assert.True(t, v.Totals().IsBalanced)
}

func TestRemovingLastLineRejected(t *testing.T) {
	v := NewVoucher(testSession(), ledger.KindJournal, testDeps(newMemoryVouchers(), nil, nil))
	only := v.State().Document.Lines[0].ID

	err := v.RemoveLine(only)
	require.Error(t, err)
	assert.True(t, shared.IsRule(err, shared.RuleMinOneLine))
	assert.Contains(t, err.Error(), "at least one line")
	assert.Len(t, v.State().Document.Lines, 1)

	added := v.AddLine()
	require.NoError(t, v.RemoveLine(only))
	require.Len(t, v.State().Document.Lines, 1)
	assert.Equal(t, added.ID, v.State().Document.Lines[0].ID)
}

func TestAddLineMakesNoNetworkCall(t *testing.T) {
	vouchers := newMemoryVouchers()
	v := NewVoucher(testSession(), ledger.KindJournal, testDeps(vouchers, nil, nil))
	a := v.AddLine()
	b := v.AddLine()
	assert.NotEqual(t, a.ID, b.ID)
	assert.Zero(t, vouchers.networkCalls())
	assert.Zero(t, vouchers.serials)
}

func TestUpdateLineKeepsSidesExclusive(t *testing.T) {
	v := NewVoucher(testSession(), ledger.KindJournal, testDeps(newMemoryVouchers(), nil, nil))
	id := v.State().Document.Lines[0].ID

	line, err := v.UpdateLine(id, LinePatch{Debit: dec("80")})
	require.NoError(t, err)
	assert.Equal(t, "80.00", line.Debit.StringFixed(2))

	line, err = v.UpdateLine(id, LinePatch{Credit: dec("25.5")})
	require.NoError(t, err)
	assert.True(t, line.Debit.IsZero())
	assert.Equal(t, "25.50", line.Credit.StringFixed(2))

	_, err = v.UpdateLine("missing", LinePatch{})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestShortfallExample(t *testing.T) {
	v := NewVoucher(testSession(), ledger.KindJournal, testDeps(newMemoryVouchers(), nil, nil))
	balancedVoucher(t, v)
	require.True(t, v.Totals().IsBalanced)

	second := v.State().Document.Lines[1].ID
	_, err := v.UpdateLine(second, LinePatch{Credit: dec("149.50")})
	require.NoError(t, err)

	view := ViewVoucher(v)
	require.False(t, view.Totals.IsBalanced)
	require.NotNil(t, view.Shortfall)
	assert.Equal(t, "0.50", view.Shortfall.Amount)
	assert.Equal(t, string(ledger.SideDebit), view.Shortfall.Side)
	assert.Equal(t, "0.50 (Debit needed)", view.Shortfall.Label)
}

func TestSubmitMissingAccountMakesNoNetworkCall(t *testing.T) {
	vouchers := newMemoryVouchers()
	v := NewVoucher(testSession(), ledger.KindJournal, testDeps(vouchers, nil, nil))
	first := v.State().Document.Lines[0].ID
	_, err := v.UpdateLine(first, LinePatch{Debit: dec("10")})
	require.NoError(t, err)
	second := v.AddLine()
	_, err = v.UpdateLine(second.ID, LinePatch{AccountID: int64p(2), Credit: dec("10")})
	require.NoError(t, err)

	_, err = v.Submit(context.Background())
	require.True(t, shared.IsRule(err, shared.RuleMissingAccount))
	assert.Zero(t, vouchers.networkCalls())
}

func TestSubmitRequiresFinancialYear(t *testing.T) {
	sess := testSession()
	sess.FinancialYearID = 0
	vouchers := newMemoryVouchers()
	v := NewVoucher(sess, ledger.KindJournal, testDeps(vouchers, nil, nil))
	balancedVoucher(t, v)

	_, err := v.Submit(context.Background())
	require.True(t, shared.IsRule(err, shared.RuleMissingFinancialYear))
	assert.Zero(t, vouchers.networkCalls())
}

func TestSubmitCreateResetsToFreshDraft(t *testing.T) {
	vouchers := newMemoryVouchers()
	notifier := &recordingNotifier{}
	v := NewVoucher(testSession(), ledger.KindDebitNote, testDeps(vouchers, nil, notifier))
	require.NoError(t, v.Prepare(context.Background()))
	draftID := v.State().DraftID
	balancedVoucher(t, v)

	res, err := v.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusPosted, res.Status)
	assert.EqualValues(t, 101, res.Receipt.ID)
	assert.EqualValues(t, 7, vouchers.docs[101].FinancialYearID)

	st := v.State()
	assert.Equal(t, draftID, st.DraftID)
	assert.Equal(t, StatusDraft, st.Status)
	assert.Equal(t, ModeCreate, st.Mode)
	require.Len(t, st.Document.Lines, 1)
	assert.False(t, st.Document.Lines[0].HasAmount())
	assert.Equal(t, "debit-note-0102", st.Document.Serial)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "debit-note", notifier.events[0].Document)
	assert.Equal(t, "150.00", notifier.events[0].Amount)
}

func TestSubmitFailureLeavesDraftEditable(t *testing.T) {
	vouchers := newMemoryVouchers()
	vouchers.saveErr = errors.New("backend down")
	v := NewVoucher(testSession(), ledger.KindJournal, testDeps(vouchers, nil, nil))
	balancedVoucher(t, v)
	before := v.State()

	_, err := v.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, before, v.State())
}

func TestEditModeLoadAndReload(t *testing.T) {
	vouchers := newMemoryVouchers()
	deps := testDeps(vouchers, nil, nil)
	creator := NewVoucher(testSession(), ledger.KindJournal, deps)
	balancedVoucher(t, creator)
	res, err := creator.Submit(context.Background())
	require.NoError(t, err)

	editor := NewVoucher(testSession(), ledger.KindJournal, deps)
	require.NoError(t, editor.Load(context.Background(), res.Receipt.ID))
	st := editor.State()
	assert.Equal(t, ModeEdit, st.Mode)
	require.Len(t, st.Document.Lines, 2)

	narration := "accrual reversal"
	editor.SetHeader(Header{Narration: &narration})
	_, err = editor.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "accrual reversal", editor.State().Document.Narration)
	assert.Equal(t, ModeEdit, editor.State().Mode)
	assert.Equal(t, "accrual reversal", vouchers.docs[res.Receipt.ID].Narration)
}

func TestLoadUnknownDocumentIsNotFound(t *testing.T) {
	v := NewVoucher(testSession(), ledger.KindCreditNote, testDeps(newMemoryVouchers(), nil, nil))
	err := v.Load(context.Background(), 999)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestSubmitForbiddenWithoutCapability(t *testing.T) {
	sess := testSession()
	sess.Capabilities = policy.Capabilities{Journal: policy.Access{View: true, Edit: true}}
	vouchers := newMemoryVouchers()
	v := NewVoucher(sess, ledger.KindJournal, testDeps(vouchers, nil, nil))
	balancedVoucher(t, v)

	_, err := v.Submit(context.Background())
	require.ErrorIs(t, err, shared.ErrForbidden)
	assert.Zero(t, vouchers.networkCalls())
}

func TestConcurrentSubmitRejected(t *testing.T) {
	vouchers := newMemoryVouchers()
	vouchers.block = make(chan struct{})
	deps := testDeps(vouchers, nil, nil)
	v := NewVoucher(testSession(), ledger.KindJournal, deps)
	balancedVoucher(t, v)
	twin := RestoreVoucher(testSession(), v.State(), deps)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = v.Submit(context.Background())
	}()

	require.Eventually(t, func() bool {
		guard := deps.Guard.(*memoryGuard)
		guard.mu.Lock()
		defer guard.mu.Unlock()
		return len(guard.held) == 1
	}, time.Second, 5*time.Millisecond)

	_, err := twin.Submit(context.Background())
	require.ErrorIs(t, err, shared.ErrSubmitInFlight)
	require.ErrorIs(t, err, httpx.ErrConflict)

	close(vouchers.block)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Equal(t, 1, vouchers.networkCalls())
}

func TestDeleteVoucherNeedsDeleteCapability(t *testing.T) {
	vouchers := newMemoryVouchers()
	vouchers.docs[9] = ledger.Document{ID: 9, Kind: ledger.KindCreditNote}
	svc := NewService(testDeps(vouchers, nil, nil), nil, nil)

	sess := testSession()
	sess.Capabilities = policy.Capabilities{CreditNote: policy.Access{View: true, Edit: true}}
	err := svc.DeleteVoucher(context.Background(), sess, ledger.KindCreditNote, 9)
	require.ErrorIs(t, err, shared.ErrForbidden)
	assert.Zero(t, vouchers.networkCalls())

	err = svc.DeleteVoucher(context.Background(), testSession(), ledger.KindCreditNote, 9)
	require.NoError(t, err)
	err = svc.DeleteVoucher(context.Background(), testSession(), ledger.KindCreditNote, 9)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSubmitWithoutNotifierUsesDefault(t *testing.T) {
	vouchers := newMemoryVouchers()
	deps := testDeps(vouchers, nil, nil)
	require.Nil(t, deps.Notifier)
	require.Nil(t, deps.Purchases)

	v := NewVoucher(testSession(), ledger.KindJournal, deps)
	balancedVoucher(t, v)
	res, err := v.Submit(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 101, res.Receipt.ID)
}

func TestStaleDraftCopyCannotResubmit(t *testing.T) {
	vouchers := newMemoryVouchers()
	deps := testDeps(vouchers, nil, nil)
	v := NewVoucher(testSession(), ledger.KindJournal, deps)
	balancedVoucher(t, v)
	stale := RestoreVoucher(testSession(), v.State(), deps)

	_, err := v.Submit(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, stale.State().Revision, v.State().Revision)

	_, err = stale.Submit(context.Background())
	require.ErrorIs(t, err, shared.ErrAlreadySubmitted)
	require.ErrorIs(t, err, httpx.ErrConflict)
	assert.Equal(t, 1, vouchers.networkCalls())
	assert.Len(t, vouchers.docs, 1)

	// The reset draft carries a new revision and submits normally.
	balancedVoucher(t, v)
	_, err = v.Submit(context.Background())
	require.NoError(t, err)
	assert.Len(t, vouchers.docs, 2)
}

func TestStaleEditCopyCannotResubmit(t *testing.T) {
	vouchers := newMemoryVouchers()
	vouchers.docs[40] = ledger.Document{ID: 40, Kind: ledger.KindJournal, Serial: "JV-40"}
	deps := testDeps(vouchers, nil, nil)
	editor := NewVoucher(testSession(), ledger.KindJournal, deps)
	require.NoError(t, editor.Load(context.Background(), 40))
	balancedVoucher(t, editor)
	stale := RestoreVoucher(testSession(), editor.State(), deps)

	_, err := editor.Submit(context.Background())
	require.NoError(t, err)
	_, err = stale.Submit(context.Background())
	require.ErrorIs(t, err, shared.ErrAlreadySubmitted)
	assert.Equal(t, 1, vouchers.networkCalls())

	_, err = editor.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, vouchers.networkCalls())
}
