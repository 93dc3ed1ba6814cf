package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

type brokenGoals struct{ *memory.Store }

func (brokenGoals) ListGoals(context.Context, string) ([]core.Goal, error) {
	return nil, errors.New("disk on fire")
}

func newTestServer(t *testing.T, opts Options) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	return newServerWith(t, store, store, opts), store
}

func newServerWith(t *testing.T, store *memory.Store, dashStore services.DashboardStore, opts Options) *Server {
	t.Helper()
	dash := services.NewDashboardService(dashStore, nil, nil)
	srv, err := NewServer(":0", Services{
		Ledger:    services.NewLedgerService(store, nil, dash, nil),
		Dashboard: dash,
		Recurring: services.NewRecurringProcessor(store, 0, nil, dash, nil),
	}, opts, nil)
	require.NoError(t, err)
	t.Cleanup(func() { srv.limiter.Stop() })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestNewServer_RequiresServices(t *testing.T) {
	_, err := NewServer(":0", Services{}, Options{}, nil)
	assert.Error(t, err)
}

func TestNewServer_BadTrustedProxy(t *testing.T) {
	store := memory.New()
	dash := services.NewDashboardService(store, nil, nil)
	_, err := NewServer(":0", Services{
		Ledger:    services.NewLedgerService(store, nil, dash, nil),
		Dashboard: dash,
		Recurring: services.NewRecurringProcessor(store, 0, nil, dash, nil),
	}, Options{TrustedProxies: []string{"nope"}}, nil)
	assert.Error(t, err)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	}

	rr := do(t, srv, http.MethodGet, "/metricsz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	m := decode[Metrics](t, rr)
	assert.Equal(t, int64(2), m.TotalRequests)
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	body := decode[ErrorBody](t, rr)
	assert.NotEmpty(t, body.RequestID)

	rr = do(t, srv, http.MethodDelete, "/api/users/u1/transactions", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestCreateTransactionAndDashboard(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	ctx := context.Background()

	rr := do(t, srv, http.MethodPost, "/api/users/u1/accounts", `{"name":"Checking","type":"checking","currency":"eur"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	account := decode[core.Account](t, rr)
	assert.Equal(t, "u1", account.UserID)
	assert.Equal(t, "EUR", account.Currency)

	rr = do(t, srv, http.MethodPost, "/api/users/u1/transactions",
		`{"date":"2025-01-01","amount":"200.00","transaction_kind":"income","currency":"EUR","account_id":"`+account.ID+`"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodPost, "/api/users/u1/transactions",
		`{"date":"2025-01-02","amount_cents":5000,"type":"expense","currency":"EUR","account_id":"`+account.ID+`",
		  "splits":[{"category_id":"c1","amount":"40"},{"category_id":"c2","amount_cents":1000}]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[core.Transaction](t, rr)
	assert.Equal(t, core.KindExpense, created.Kind)
	assert.Equal(t, "/api/users/u1/transactions/"+created.ID, rr.Header().Get("Location"))

	stored, err := store.ListTransactions(ctx, "u1", storage.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	rr = do(t, srv, http.MethodGet, "/api/users/u1/dashboard?from=2025-01-01&to=2025-01-31&currency=eur", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	d := decode[services.Dashboard](t, rr)
	assert.Equal(t, int64(20000), d.Totals.Income)
	assert.Equal(t, int64(5000), d.Totals.Expense)
	assert.Equal(t, int64(15000), d.Totals.Net)
	assert.Equal(t, "2025-01", d.Month)
	require.Len(t, d.Accounts, 1)
	assert.Equal(t, int64(15000), d.Accounts[0].Cents)
}

func TestCreateTransaction_Rejected(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "malformed json", body: `{"date":`},
		{name: "unknown field", body: `{"date":"2025-01-01","amount":"1","type":"expense","account_id":"a","currency":"EUR","bogus":1}`},
		{name: "trailing data", body: `{"date":"2025-01-01","amount":"1","type":"expense","account_id":"a","currency":"EUR"} {}`},
		{name: "missing kind", body: `{"date":"2025-01-01","amount":"1","account_id":"a","currency":"EUR"}`},
		{name: "bad date", body: `{"date":"01/02/2025","amount":"1","type":"expense","account_id":"a","currency":"EUR"}`},
		{name: "negative amount", body: `{"date":"2025-01-01","amount":"-1","type":"expense","account_id":"a","currency":"EUR"}`},
		{name: "negative cents", body: `{"date":"2025-01-01","amount_cents":-100,"type":"expense","account_id":"a","currency":"EUR"}`},
		{name: "same account transfer", body: `{"date":"2025-01-01","amount":"1","type":"transfer","from_account_id":"a","to_account_id":"a","currency":"EUR"}`},
		{name: "splits exceed amount", body: `{"date":"2025-01-01","amount":"1","type":"expense","account_id":"a","currency":"EUR","splits":[{"amount":"2"}]}`},
		{name: "bad currency", body: `{"date":"2025-01-01","amount":"1","type":"expense","account_id":"a","currency":"euro"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/users/u1/transactions", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decode[ErrorBody](t, rr).Error)
		})
	}
}

func TestCreateTransaction_KindConflictUsesTransactionKind(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/api/users/u1/transactions",
		`{"date":"2025-01-01","amount":"10","transaction_kind":"income","type":"expense","account_id":"a","currency":"EUR"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, core.KindIncome, decode[core.Transaction](t, rr).Kind)
}

func TestDashboard_BadQuery(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	for _, q := range []string{"from=yesterday", "to=2025-13-01", "month=2025-1x", "from=2025-02-01&to=2025-01-01"} {
		rr := do(t, srv, http.MethodGet, "/api/users/u1/dashboard?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestDashboard_MixedCurrenciesNeedCurrency(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	for _, body := range []string{
		`{"id":"eur","name":"Euro","type":"checking","currency":"EUR"}`,
		`{"id":"jpy","name":"Yen","type":"checking","currency":"JPY"}`,
	} {
		rr := do(t, srv, http.MethodPost, "/api/users/u1/accounts", body)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	rr := do(t, srv, http.MethodGet, "/api/users/u1/dashboard", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode[ErrorBody](t, rr).Error, "pass a currency")

	rr = do(t, srv, http.MethodGet, "/api/users/u1/dashboard?currency=jpy", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "JPY", decode[services.Dashboard](t, rr).Currency)
}

func TestDashboard_StoreFailureIsInternal(t *testing.T) {
	store := memory.New()
	srv := newServerWith(t, store, brokenGoals{store}, Options{})

	rr := do(t, srv, http.MethodGet, "/api/users/u1/dashboard", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decode[ErrorBody](t, rr)
	assert.Equal(t, "internal error", body.Error)
	assert.NotContains(t, rr.Body.String(), "disk on fire")
	assert.Equal(t, int64(1), srv.Metrics().ServerErrors)
}

func TestSubscriptions_EmptyIsArray(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/api/users/u1/subscriptions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"subscriptions":[]}`, rr.Body.String())
}

func TestRecurringRuleAndMaterialize(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/api/users/u1/recurring-rules",
		`{"name":"Rent","amount_cents":1000,"type":"expense","account_id":"a1","currency":"EUR","cadence":"monthly","start_date":"2025-01-15"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rule := decode[core.RecurringRule](t, rr)
	assert.True(t, rule.Active)
	assert.Equal(t, "2025-01-15", rule.NextRun.Key())

	rr = do(t, srv, http.MethodPost, "/api/users/u1/recurring/materialize?today=2025-04-20", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	first := decode[materializeResponse](t, rr)
	assert.Equal(t, 4, first.Inserted)
	assert.Len(t, first.TransactionIDs, 4)

	rr = do(t, srv, http.MethodPost, "/api/users/u1/recurring/materialize?today=2025-04-20", "")
	require.Equal(t, http.StatusOK, rr.Code)
	second := decode[materializeResponse](t, rr)
	assert.Zero(t, second.Inserted)
	assert.Empty(t, second.TransactionIDs)

	rr = do(t, srv, http.MethodPost, "/api/users/u1/recurring/materialize?today=someday", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMaterialize_RejectsFutureToday(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	ctx := context.Background()

	start := core.Today()
	rr := do(t, srv, http.MethodPost, "/api/users/u1/recurring-rules",
		`{"name":"Gym","amount_cents":2500,"type":"expense","account_id":"a1","currency":"EUR","cadence":"monthly","start_date":"`+start.Key()+`"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodPost, "/api/users/u1/recurring/materialize?today=2099-12-31", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode[ErrorBody](t, rr).Error, "after the current date")

	txs, err := store.ListTransactions(ctx, "u1", storage.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
	rules, err := store.ListRecurringRules(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, start.Key(), rules[0].NextRun.Key())

	rr = do(t, srv, http.MethodPost, "/api/users/u1/recurring/materialize", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	out := decode[materializeResponse](t, rr)
	assert.Equal(t, 1, out.Inserted)
	assert.Equal(t, start.Key(), out.Today.Key())
}

func TestMaterializeDate(t *testing.T) {
	now := core.NewDate(2025, 4, 20)
	tests := []struct {
		name    string
		query   string
		want    string
		wantErr bool
	}{
		{name: "missing uses now", query: "", want: "2025-04-20"},
		{name: "same day", query: "2025-04-20", want: "2025-04-20"},
		{name: "past", query: "2025-01-31", want: "2025-01-31"},
		{name: "tomorrow", query: "2025-04-21", wantErr: true},
		{name: "garbage", query: "soon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := materializeDate(map[string][]string{"today": {tt.query}}, now)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, services.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Key())
		})
	}
}

func TestCreateEntities(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	tests := []struct {
		path string
		body string
		want int
	}{
		{path: "categories", body: `{"name":"Food","direction":"expense"}`, want: http.StatusCreated},
		{path: "categories", body: `{"name":"Moves","direction":"transfer"}`, want: http.StatusBadRequest},
		{path: "budgets", body: `{"category_id":"c1","month":"2025-01","limit_cents":3000,"currency":"EUR"}`, want: http.StatusCreated},
		{path: "budgets", body: `{"category_id":"c1","month":"January","limit_cents":3000,"currency":"EUR"}`, want: http.StatusBadRequest},
		{path: "goals", body: `{"name":"Trip","target_cents":10000,"currency":"EUR","due_date":"2025-12-31"}`, want: http.StatusCreated},
		{path: "goals", body: `{"name":"Trip","target_cents":0,"currency":"EUR"}`, want: http.StatusBadRequest},
		{path: "accounts", body: `{"name":"Card","type":"plastic","currency":"EUR"}`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path+" "+http.StatusText(tt.want), func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/users/u1/"+tt.path, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, Options{RequestsPerMinute: 2})

	for range 2 {
		assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/users/u1/subscriptions", "").Code)
	}
	rr := do(t, srv, http.MethodGet, "/api/users/u1/subscriptions", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// Probes stay reachable for orchestrators.
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "").Code)
}

func TestParseDashboardQuery(t *testing.T) {
	q, err := parseDashboardQuery(map[string][]string{"from": {"2025-01-01"}, "currency": {" usd\x00 "}, "month": {"2025-02"}})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01", q.From.Key())
	assert.True(t, q.To.IsEmpty())
	assert.Equal(t, "usd", q.Currency)
	assert.Equal(t, "2025-02", q.Month)
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "a\tb", sanitizeInput("  a\x07\tb\x1b "))
	assert.Equal(t, "", sanitizeInput("   "))
}
