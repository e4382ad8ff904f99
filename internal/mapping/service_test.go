package mapping

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgerdesk/internal/policy"
	"github.com/odyssey-erp/ledgerdesk/internal/shared"
)

type memoryGateway struct {
	rows    []Mapping
	nextID  int64
	created []Mapping
	deleted []int64
}

func (g *memoryGateway) ListMappings(ctx context.Context, token string) ([]Mapping, error) {
	return append([]Mapping(nil), g.rows...), nil
}

func (g *memoryGateway) CreateMapping(ctx context.Context, token string, m Mapping) (Mapping, error) {
	g.nextID++
	m.ID = g.nextID
	g.created = append(g.created, m)
	g.rows = append(g.rows, m)
	return m, nil
}

func (g *memoryGateway) UpdateMapping(ctx context.Context, token string, m Mapping) (Mapping, error) {
	for i := range g.rows {
		if g.rows[i].ID == m.ID {
			g.rows[i] = m
			return m, nil
		}
	}
	return Mapping{}, ErrMappingNotFound
}

func (g *memoryGateway) DeleteMapping(ctx context.Context, token string, id int64) error {
	g.deleted = append(g.deleted, id)
	return nil
}

func (g *memoryGateway) PreviewMappings(ctx context.Context, token, transactionType string) ([]Mapping, error) {
	var out []Mapping
	for _, row := range g.rows {
		if row.TransactionType == transactionType {
			out = append(out, row)
		}
	}
	return out, nil
}

func (g *memoryGateway) AccountNatures(ctx context.Context, token string) ([]AccountNature, error) {
	return []AccountNature{{ID: 1, Code: "AR", DisplayName: "Receivables"}}, nil
}

func (g *memoryGateway) ValueSources(ctx context.Context, token string) ([]ValueSource, error) {
	return []ValueSource{{Code: "GROSS", DisplayName: "Gross amount", ModuleTag: "SALES"}}, nil
}

func seededGateway() *memoryGateway {
	return &memoryGateway{
		nextID: 10,
		rows: []Mapping{
			{ID: 3, TransactionType: "SALES", EntrySequence: 2, AccountNature: "REVENUE", DebitCredit: "C", ValueSource: "NET"},
			{ID: 1, TransactionType: "SALES", EntrySequence: 1, AccountNature: "AR", DebitCredit: "D", ValueSource: "GROSS"},
			{ID: 2, TransactionType: "PURCHASE", EntrySequence: 1, AccountNature: "AP", DebitCredit: "C", ValueSource: "GROSS"},
		},
	}
}

func fullSession() shared.Session {
	return shared.Session{Token: "tok", FinancialYearID: 1, Capabilities: policy.Full()}
}

func TestListFiltersAndOrders(t *testing.T) {
	svc := NewService(seededGateway())

	rows, err := svc.List(context.Background(), fullSession(), ListFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "PURCHASE", rows[0].TransactionType)
	require.EqualValues(t, 1, rows[1].ID)
	require.EqualValues(t, 3, rows[2].ID)

	rows, err = svc.List(context.Background(), fullSession(), ListFilter{Side: "debit"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "AR", rows[0].AccountNature)

	rows, err = svc.List(context.Background(), fullSession(), ListFilter{Search: "gross", Side: FilterCredit})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.EqualValues(t, 2, rows[0].ID)
}

func TestCreateValidates(t *testing.T) {
	gw := seededGateway()
	svc := NewService(gw)

	_, err := svc.Create(context.Background(), fullSession(), Mapping{TransactionType: "sales", EntrySequence: 0, DebitCredit: "X"})
	require.Error(t, err)
	require.True(t, shared.IsRule(err, shared.RuleInvalidField))
	require.Contains(t, err.Error(), "entry_sequence")
	require.Contains(t, err.Error(), "debit_credit")
	require.Empty(t, gw.created)

	created, err := svc.Create(context.Background(), fullSession(), Mapping{
		TransactionType: " sales return ", EntrySequence: 1, AccountNature: "AR", DebitCredit: "c", ValueSource: "GROSS",
	})
	require.NoError(t, err)
	require.EqualValues(t, 11, created.ID)
	require.Equal(t, "SALES RETURN", created.TransactionType)
	require.Equal(t, "C", created.DebitCredit)
}

func TestCapabilitiesEnforced(t *testing.T) {
	svc := NewService(seededGateway())
	viewer := shared.Session{Token: "tok", Capabilities: policy.Capabilities{Mapping: policy.Access{View: true}}}

	_, err := svc.Create(context.Background(), viewer, Mapping{})
	require.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.Update(context.Background(), viewer, Mapping{ID: 1})
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.ErrorIs(t, svc.Delete(context.Background(), viewer, 1), shared.ErrForbidden)

	_, err = svc.List(context.Background(), shared.Session{Token: "tok"}, ListFilter{})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestUpdateRequiresID(t *testing.T) {
	svc := NewService(seededGateway())
	_, err := svc.Update(context.Background(), fullSession(), Mapping{})
	require.ErrorIs(t, err, ErrIDRequired)
	require.ErrorIs(t, svc.Delete(context.Background(), fullSession(), 0), ErrIDRequired)
}

func TestPreviewSortedBySequence(t *testing.T) {
	svc := NewService(seededGateway())

	rows, err := svc.Preview(context.Background(), fullSession(), "sales")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 1, rows[0].EntrySequence)
	require.Equal(t, 2, rows[1].EntrySequence)

	_, err = svc.Preview(context.Background(), fullSession(), "  ")
	require.True(t, shared.IsRule(err, shared.RuleInvalidField))
}

func TestOptions(t *testing.T) {
	svc := NewService(seededGateway())
	opts, err := svc.Options(context.Background(), fullSession())
	require.NoError(t, err)
	require.Len(t, opts.Natures, 1)
	require.Equal(t, "GROSS", opts.ValueSources[0].Code)
}

func newTestRouter(t *testing.T, gw Gateway, sess *shared.Session) http.Handler {
	t.Helper()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(gw))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if sess != nil {
				req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
			}
			next.ServeHTTP(w, req)
		})
	})
	h.MountRoutes(r)
	return r
}

func TestHandlerCreateAndGet(t *testing.T) {
	sess := fullSession()
	router := newTestRouter(t, seededGateway(), &sess)

	body := `{"transaction_type":"PURCHASE","entry_sequence":2,"account_nature":"INVENTORY","debit_credit":"D","value_source":"NET"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mappings", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"mapping_id":11`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mappings/11", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "INVENTORY")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mappings/99", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerValidationProblem(t *testing.T) {
	sess := fullSession()
	router := newTestRouter(t, seededGateway(), &sess)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mappings", strings.NewReader(`{"transaction_type":"X"}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), shared.RuleInvalidField)
}

func TestHandlerUnauthorizedWithoutSession(t *testing.T) {
	router := newTestRouter(t, seededGateway(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mappings", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
