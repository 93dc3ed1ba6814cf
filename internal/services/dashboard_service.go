package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/aggregate"
	"fintrack/internal/balance"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/subscriptions"
)

// DefaultWindowDays is the dashboard window when the query leaves From empty.
const DefaultWindowDays = 30

// DashboardQuery selects the reporting window. Empty To means today, empty From means
// DefaultWindowDays before To and empty Month means To's month. Empty Currency means the
// ledger's only currency; a ledger holding several currencies must name one.
type DashboardQuery struct {
	From     core.Date
	To       core.Date
	Currency string
	Month    string
}

type (
	AccountBalance struct {
		AccountID string            `json:"account_id"`
		Name      string            `json:"name"`
		Class     core.AccountClass `json:"account_class"`
		Currency  string            `json:"currency"`
		Cents     int64             `json:"cents"`
	}

	GoalStatus struct {
		Goal     core.Goal `json:"goal"`
		Progress float64   `json:"progress"`
	}

	// Dashboard is every derived view of a user's ledger for one query.
	Dashboard struct {
		UserID        string                    `json:"user_id"`
		From          core.Date                 `json:"from"`
		To            core.Date                 `json:"to"`
		Month         string                    `json:"month"`
		Currency      string                    `json:"currency,omitempty"`
		Totals        aggregate.Totals          `json:"totals"`
		Categories    []core.CategoryAmount     `json:"categories"`
		Cashflow      []aggregate.CashflowPoint `json:"cashflow"`
		NetTrend      []aggregate.NetPoint      `json:"net_trend"`
		Merchants     map[string]int64          `json:"merchants"`
		Weekdays      map[string]int64          `json:"weekdays"`
		Accounts      []AccountBalance          `json:"accounts"`
		Summary       balance.Summary           `json:"summary"`
		NetWorth      []balance.Point           `json:"net_worth"`
		Budgets       []aggregate.BudgetStatus  `json:"budgets"`
		Goals         []GoalStatus              `json:"goals"`
		Subscriptions []subscriptions.Candidate `json:"subscriptions"`
		GeneratedAt   time.Time                 `json:"generated_at"`
	}
)

// DashboardStore is the read side of the ledger the dashboard needs.
type DashboardStore interface {
	ListAccounts(ctx context.Context, userID string) ([]core.Account, error)
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
	ListTransactions(ctx context.Context, userID string, f storage.TransactionFilter) ([]core.Transaction, error)
	ListBudgets(ctx context.Context, userID string) ([]core.Budget, error)
	ListGoals(ctx context.Context, userID string) ([]core.Goal, error)
}

// DashboardService builds dashboards and caches them per user and query.
type DashboardService struct {
	store  DashboardStore
	cache  cache.Cache[*Dashboard]
	logger *log.Logger
	today  func() core.Date
}

var _ Invalidator = (*DashboardService)(nil)

// NewDashboardService wires the service. A nil cache disables caching.
func NewDashboardService(store DashboardStore, c cache.Cache[*Dashboard], logger *log.Logger) *DashboardService {
	if logger == nil {
		logger = log.Discard()
	}
	return &DashboardService{
		store:  store,
		cache:  c,
		logger: logger.WithComponent(log.ComponentDashboard),
		today:  core.Today,
	}
}

// Normalize fills the query defaults.
func (s *DashboardService) Normalize(q DashboardQuery) DashboardQuery {
	if q.To.IsEmpty() {
		q.To = s.today()
	}
	if q.From.IsEmpty() {
		q.From = q.To.AddDays(-(DefaultWindowDays - 1))
	}
	if q.Month == "" {
		q.Month = q.To.MonthKey()
	}
	q.Currency = core.NormalizeCurrency(q.Currency)
	return q
}

func cacheKey(userID string, q DashboardQuery) string {
	return strings.Join([]string{userID, q.From.Key(), q.To.Key(), q.Month, q.Currency}, "|")
}

// Build returns the dashboard for userID. Ledger reads run concurrently and the first
// failure cancels the rest.
func (s *DashboardService) Build(ctx context.Context, userID string, q DashboardQuery) (*Dashboard, error) {
	q = s.Normalize(q)
	if q.From.After(q.To) {
		return nil, fmt.Errorf("%w: from %s is after to %s", ErrInvalidInput, q.From.Key(), q.To.Key())
	}
	key := cacheKey(userID, q)
	if s.cache != nil {
		if d, ok := s.cache.Get(key); ok {
			s.logger.DebugContext(ctx, "Dashboard cache hit", log.FieldUserID, userID)
			return d, nil
		}
	}

	var (
		accounts   []core.Account
		categories []core.Category
		txs        []core.Transaction
		budgets    []core.Budget
		goals      []core.Goal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		accounts, err = s.store.ListAccounts(gctx, userID)
		return wrap("list accounts", err)
	})
	g.Go(func() (err error) {
		categories, err = s.store.ListCategories(gctx, userID)
		return wrap("list categories", err)
	})
	g.Go(func() (err error) {
		// Balances and the net-worth replay need the full history.
		txs, err = s.store.ListTransactions(gctx, userID, storage.TransactionFilter{})
		return wrap("list transactions", err)
	})
	g.Go(func() (err error) {
		budgets, err = s.store.ListBudgets(gctx, userID)
		return wrap("list budgets", err)
	})
	g.Go(func() (err error) {
		goals, err = s.store.ListGoals(gctx, userID)
		return wrap("list goals", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if q.Currency == "" {
		cur, err := ledgerCurrency(accounts, txs)
		if err != nil {
			return nil, err
		}
		q.Currency = cur
	}

	d := compose(userID, q, accounts, categories, txs, budgets, goals)
	d.GeneratedAt = time.Now().UTC()
	if s.cache != nil {
		s.cache.Set(key, d)
	}
	s.logger.DebugContext(ctx, "Dashboard built", log.FieldUserID, userID, "transactions", len(txs))
	return d, nil
}

// Subscriptions runs detection over the user's whole history.
func (s *DashboardService) Subscriptions(ctx context.Context, userID string) ([]subscriptions.Candidate, error) {
	txs, err := s.store.ListTransactions(ctx, userID, storage.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return subscriptions.Detect(txs, subscriptions.DetectOptions{}), nil
}

// InvalidateUser drops every cached dashboard of userID.
func (s *DashboardService) InvalidateUser(userID string) {
	if s.cache == nil {
		return
	}
	if n := s.cache.DeletePrefix(userID + "|"); n > 0 {
		s.logger.Debug("Dashboard cache invalidated", log.FieldUserID, userID, "entries", n)
	}
}

func compose(userID string, q DashboardQuery, accounts []core.Account, categories []core.Category,
	txs []core.Transaction, budgets []core.Budget, goals []core.Goal) *Dashboard {
	inCurrency := aggregate.FilterCurrency(txs, q.Currency)
	window := aggregate.FilterRange(inCurrency, q.From, q.To)

	balances := balance.AccountBalances(accounts, txs, q.Currency)
	d := &Dashboard{
		UserID:     userID,
		From:       q.From,
		To:         q.To,
		Month:      q.Month,
		Currency:   q.Currency,
		Totals:     aggregate.SumIncomeExpense(window),
		Categories: aggregate.SortedCategoryTotals(window, categories),
		Cashflow:   aggregate.CashflowSeries(window, 100),
		NetTrend:   aggregate.NetTrendSeries(window, 100),
		Merchants:  aggregate.MerchantTotals(window),
		Weekdays:   aggregate.WeekdayTotals(window),
		Accounts:   accountBalances(accounts, balances),
		Summary:    balance.AccountSummary(accounts, balances, q.Currency),
		NetWorth: balance.NetWorthTrend(balance.TrendQuery{
			Accounts:     accounts,
			Transactions: txs,
			Start:        q.From,
			End:          q.To,
			Currency:     q.Currency,
		}),
		Budgets:       aggregate.BudgetProgress(filterBudgets(budgets, q.Currency), txs, q.Month),
		Subscriptions: subscriptions.Detect(inCurrency, subscriptions.DetectOptions{}),
	}
	for _, g := range goals {
		if q.Currency != "" && !strings.EqualFold(g.Currency, q.Currency) {
			continue
		}
		d.Goals = append(d.Goals, GoalStatus{Goal: g, Progress: g.Progress()})
	}
	return d
}

// ledgerCurrency returns the single currency used by accounts and transactions. Amounts
// are never converted, so a mixed ledger without an explicit currency is an input error.
func ledgerCurrency(accounts []core.Account, txs []core.Transaction) (string, error) {
	seen := make(map[string]struct{})
	for _, a := range accounts {
		if c := core.NormalizeCurrency(a.Currency); c != "" {
			seen[c] = struct{}{}
		}
	}
	for _, tx := range txs {
		if c := core.NormalizeCurrency(tx.Currency); c != "" {
			seen[c] = struct{}{}
		}
	}
	if len(seen) > 1 {
		codes := make([]string, 0, len(seen))
		for c := range seen {
			codes = append(codes, c)
		}
		sort.Strings(codes)
		return "", fmt.Errorf("%w: ledger holds %s, pass a currency", ErrInvalidInput, strings.Join(codes, ", "))
	}
	for c := range seen {
		return c, nil
	}
	return "", nil
}

func accountBalances(accounts []core.Account, balances map[string]int64) []AccountBalance {
	out := make([]AccountBalance, 0, len(balances))
	for _, a := range accounts {
		cents, ok := balances[a.ID]
		if !ok {
			continue
		}
		out = append(out, AccountBalance{
			AccountID: a.ID,
			Name:      a.Name,
			Class:     a.EffectiveClass(),
			Currency:  a.Currency,
			Cents:     cents,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func filterBudgets(budgets []core.Budget, currency string) []core.Budget {
	if currency == "" {
		return budgets
	}
	out := make([]core.Budget, 0, len(budgets))
	for _, b := range budgets {
		if strings.EqualFold(b.Currency, currency) {
			out = append(out, b)
		}
	}
	return out
}

func wrap(op string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
