package erpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgerdesk/internal/costing"
	"github.com/odyssey-erp/ledgerdesk/internal/ledger"
	"github.com/odyssey-erp/ledgerdesk/internal/mapping"
	"github.com/odyssey-erp/ledgerdesk/internal/platform/httpx"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_SendsBearerToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/coa/all", r.URL.Path)
		_, _ = w.Write([]byte(`[{"account_id":7,"account_code":"1100","account_name":"Cash"}]`))
	})

	accounts, err := client.Accounts(context.Background(), "tok-1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.EqualValues(t, 7, accounts[0].ID)
}

func TestClient_ServerMessageSurfaced(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Costing already confirmed"}`))
	})

	err := client.CancelPurchase(context.Background(), "tok", 9)
	require.Error(t, err)
	assert.Equal(t, "Costing already confirmed", MessageOf(err))
	assert.True(t, errors.Is(err, httpx.ErrValidation))
}

func TestClient_GenericMessageFallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<html>boom</html>"))
	})

	err := client.DeleteMapping(context.Background(), "tok", 3)
	require.Error(t, err)
	var nErr *NetworkError
	require.ErrorAs(t, err, &nErr)
	assert.Equal(t, http.StatusInternalServerError, nErr.Status)
	assert.Equal(t, genericFailure, nErr.Message)
}

func TestClient_StatusClasses(t *testing.T) {
	cases := map[int]error{
		http.StatusNotFound:     httpx.ErrNotFound,
		http.StatusUnauthorized: httpx.ErrUnauthorized,
		http.StatusForbidden:    httpx.ErrForbidden,
		http.StatusConflict:     httpx.ErrConflict,
		http.StatusBadGateway:   httpx.ErrUpstream,
	}
	for status, want := range cases {
		status, want := status, want
		t.Run(http.StatusText(status), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			})
			_, err := client.GetVoucher(context.Background(), "tok", ledger.KindJournal, 1)
			require.ErrorIs(t, err, want)
		})
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.Items(ctx, "tok")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_CreateDebitNoteUsesPrefixedFields(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/accounting/journals/debit-notes", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"debit_note_mas_id":41,"debitNoteSerial":"DN-0041"}`))
	})

	l1 := ledger.NewLine("a")
	l1.AccountID = 1
	l1.SetDebit(decimal.RequireFromString("100.5"))
	l2 := ledger.NewLine("b")
	l2.AccountID = 2
	l2.SetCredit(decimal.RequireFromString("100.5"))
	doc := ledger.Document{Kind: ledger.KindDebitNote, Date: "2024-04-01", FinancialYearID: 3, Lines: []ledger.Line{l1, l2}}

	res, err := client.CreateVoucher(context.Background(), "tok", doc)
	require.NoError(t, err)
	assert.EqualValues(t, 41, res.ID)
	assert.Equal(t, "DN-0041", res.Serial)
	assert.Equal(t, "2024-04-01", body["debit_note_date"])
	assert.Equal(t, "100.50", body["total_debit"])
	assert.NotContains(t, body, "source_document_type")
	details, ok := body["debit_note_details"].([]any)
	require.True(t, ok)
	assert.Len(t, details, 2)
}

func TestClient_GetVoucher(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/accounting/journals/12", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"master": {"journal_serial":"JV-12","journal_date":"2024-05-02T00:00:00.000Z","finyearid":4,"narration":"accrual"},
			"details": [
				{"account_id":10,"debit_amount":"250.00","credit_amount":"0"},
				{"account_id":11,"debit_amount":0,"credit_amount":250}
			]}`))
	})

	doc, err := client.GetVoucher(context.Background(), "tok", ledger.KindJournal, 12)
	require.NoError(t, err)
	assert.Equal(t, "JV-12", doc.Serial)
	assert.Equal(t, "2024-05-02", doc.Date)
	assert.EqualValues(t, 4, doc.FinancialYearID)
	require.Len(t, doc.Lines, 2)
	assert.True(t, doc.Totals().IsBalanced)
}

func TestClient_NextSerial(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/accounting/journals/credit-notes/serial/next", r.URL.Path)
		_, _ = w.Write([]byte(`{"credit_note_serial":"CN-0007"}`))
	})

	serial, err := client.NextSerial(context.Background(), "tok", ledger.KindCreditNote)
	require.NoError(t, err)
	assert.Equal(t, "CN-0007", serial)
}

func TestClient_CompletePurchase(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/purchase/complete", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"success":true,"tranid":88,"trno":"PUR-88"}`))
	})

	item := costing.NewItemLine(5, "Bolt", decimal.NewFromInt(10), decimal.NewFromInt(12),
		decimal.NewFromInt(9), decimal.NewFromInt(9), decimal.Zero)
	p := costing.Purchase{
		FinancialYearID: 2,
		PartyID:         30,
		Items:           []costing.ItemLine{item},
		Overheads:       []costing.OverheadRow{{Type: "Freight", Amount: decimal.NewFromInt(40)}},
	}

	res, err := client.CompletePurchase(context.Background(), "tok", p)
	require.NoError(t, err)
	assert.EqualValues(t, 88, res.TranID)
	assert.Equal(t, "PUR-88", res.TrNo)
	assert.Equal(t, "40.00", body["tptcharge"])
	assert.Equal(t, true, body["costsheetprepared"])
	items := body["items"].([]any)
	first := items[0].(map[string]any)
	assert.Equal(t, "120.00", first["taxableValue"])
	assert.Equal(t, "10.80", first["cgstAmt"])
}

func TestClient_ConfirmCosting(t *testing.T) {
	var body struct {
		Items []confirmItem `json:"items"`
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/purchase/5/costing/confirm", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	})

	allocs := []costing.Allocation{{Srno: 1, OHAmount: decimal.NewFromInt(25), NetRate: decimal.RequireFromString("12.5"), LineTotal: decimal.NewFromInt(125)}}
	require.NoError(t, client.ConfirmCosting(context.Background(), "tok", 5, allocs))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "25.00", body.Items[0].OHAmt)
	assert.Equal(t, "12.50", body.Items[0].NetRate)
}

func TestClient_MappingPreviewEscapesType(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/transaction-mapping/preview/SALES INVOICE", r.URL.Path)
		_, _ = w.Write([]byte(`[{"mapping_id":1,"transaction_type":"SALES INVOICE","entry_sequence":1,"account_nature":"AR","debit_credit":"D","value_source":"GROSS"}]`))
	})

	rows, err := client.PreviewMappings(context.Background(), "tok", "SALES INVOICE")
	require.NoError(t, err)
	require.Equal(t, []mapping.Mapping{{
		ID: 1, TransactionType: "SALES INVOICE", EntrySequence: 1, AccountNature: "AR", DebitCredit: "D", ValueSource: "GROSS",
	}}, rows)
}

func TestClient_Permissions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/permissions/me", r.URL.Path)
		_, _ = w.Write([]byte(`{"permissions":["ACCOUNTS_JOURNAL_VOUCHER_VIEW"]}`))
	})

	codes, err := client.Permissions(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, []string{"ACCOUNTS_JOURNAL_VOUCHER_VIEW"}, codes)
}

type observation struct {
	method   string
	endpoint string
	status   int
}

type recordingObserver struct {
	seen []observation
}

func (o *recordingObserver) ObserveUpstream(method, endpoint string, status int, _ time.Duration) {
	o.seen = append(o.seen, observation{method: method, endpoint: endpoint, status: status})
}

func TestClient_ObserverSeesTemplatedEndpoint(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	obs := &recordingObserver{}
	client.SetObserver(obs)

	err := client.DeleteVoucher(context.Background(), "tok", ledger.KindJournal, 42)
	require.ErrorIs(t, err, httpx.ErrNotFound)
	require.Equal(t, []observation{{method: http.MethodDelete, endpoint: "/api/accounting/journals/:id", status: http.StatusNotFound}}, obs.seen)
}

func TestClient_ObserverSeesTransportFailure(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	obs := &recordingObserver{}
	client.SetObserver(obs)

	_, err := client.Accounts(context.Background(), "tok")
	require.ErrorIs(t, err, httpx.ErrUpstream)
	require.Len(t, obs.seen, 1)
	assert.Equal(t, 0, obs.seen[0].status)
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "/api/purchase/:id/costing", Endpoint("/api/purchase/17/costing"))
	assert.Equal(t, "/api/transaction-mappings/preview/PURCHASE", Endpoint("/api/transaction-mappings/preview/PURCHASE?x=1"))
	assert.Equal(t, "/api/coa/all", Endpoint("/api/coa/all"))
}

func TestClient_GetPurchase(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/purchase/500":
			_, _ = w.Write([]byte(`{
				"header": {"tranid":500,"trno":"PUR-500","fyearid":"7","trdate":"2024-06-01T00:00:00.000Z",
					"suppinvno":"INV-9","suppinvdt":"2024-05-30T00:00:00.000Z","partyid":30,"remark":null,
					"costsheetprepared":true,"costconfirmed":true,"grnposted":false},
				"details": [
					{"srno":1,"itemcode":1,"qty":"10.000","rate":"10.00","invamount":"100.00","ohamt":"10.00","netrate":"11.00","gtotal":"128.00","cgstp":"9","sgstp":"9","igstp":null},
					{"srno":2,"itemcode":2,"qty":30,"rate":10,"invamount":300,"ohamt":30,"netrate":11,"gtotal":330,"cgstp":0,"sgstp":0,"igstp":0}
				]}`))
		case "/api/purchase/500/costing":
			_, _ = w.Write([]byte(`[{"costtrid":1,"pruchmasid":500,"ohtype":"Transportation","amount":"40.00"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Purchase not found"}`))
		}
	})

	stored, err := client.GetPurchase(context.Background(), "tok", 500)
	require.NoError(t, err)
	pur := stored.Purchase
	assert.Equal(t, "PUR-500", pur.TrNo)
	assert.EqualValues(t, 7, pur.FinancialYearID)
	assert.Equal(t, "2024-06-01", pur.TrDate)
	assert.Equal(t, "2024-05-30", pur.SupplierInvoiceDate)
	assert.EqualValues(t, 30, pur.PartyID)
	assert.Empty(t, pur.Remark)
	assert.True(t, pur.CostConfirmed)
	assert.False(t, pur.GRNPosted)
	require.Len(t, pur.Items, 2)
	assert.Equal(t, "118.00", pur.Items[0].LineTotal.StringFixed(2))
	require.Len(t, stored.Allocation, 2)
	assert.Equal(t, "30.00", stored.Allocation[1].OHAmount.StringFixed(2))
	assert.Equal(t, "11.00", stored.Allocation[1].NetRate.StringFixed(2))

	rows, err := client.GetCosting(context.Background(), "tok", 500)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, costing.OverheadTransportation, rows[0].Type)
	assert.Equal(t, "40.00", rows[0].Amount.StringFixed(2))

	_, err = client.GetPurchase(context.Background(), "tok", 999)
	require.ErrorIs(t, err, httpx.ErrNotFound)
	assert.Equal(t, "Purchase not found", MessageOf(err))
}

func TestClient_GetPurchaseWithoutHeaderIsNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"details":[]}`))
	})

	_, err := client.GetPurchase(context.Background(), "tok", 12)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestClient_RejectsOversizedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[`))
		chunk := []byte(strings.Repeat(`{"account_id":1},`, 1024))
		for written := 0; written <= maxResponseBytes; written += len(chunk) {
			if _, err := w.Write(chunk); err != nil {
				return
			}
		}
	})

	_, err := client.Accounts(context.Background(), "tok")
	require.ErrorIs(t, err, ErrResponseTooLarge)
	require.ErrorIs(t, err, httpx.ErrUpstream)
}
