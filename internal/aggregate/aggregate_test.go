package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

// scenarioLedger is the January ledger used across the aggregation tests.
func scenarioLedger() []core.Transaction {
	return []core.Transaction{
		{ID: "t1", Date: core.NewDate(2025, 1, 1), AmountCents: 20000, Kind: core.KindIncome, Currency: "EUR", AccountID: "a1", CategoryID: "salary"},
		{
			ID: "t2", Date: core.NewDate(2025, 1, 2), AmountCents: 5000, Kind: core.KindExpense, Currency: "EUR", AccountID: "a1",
			CategoryID: "ignored-parent", Merchant: "Market",
			Splits: []core.Split{
				{CategoryID: "c1", AmountCents: 4000},
				{CategoryID: "c2", AmountCents: 1000},
			},
		},
		{ID: "t3", Date: core.NewDate(2025, 1, 3), AmountCents: 5000, Kind: core.KindExpense, Currency: "EUR", AccountID: "a1", CategoryID: "c3", Merchant: "Gym"},
		{ID: "t4", Date: core.NewDate(2025, 1, 2), AmountCents: 3000, Kind: core.KindTransfer, Currency: "EUR", FromAccountID: "a1", ToAccountID: "a2"},
		{ID: "t5", Date: core.NewDate(2025, 1, 4), AmountCents: 3000, Kind: core.KindTransfer, Currency: "EUR", FromAccountID: "a2", ToAccountID: "a1"},
	}
}

func TestSumIncomeExpense_Scenario(t *testing.T) {
	got := SumIncomeExpense(scenarioLedger())
	assert.Equal(t, Totals{Income: 20000, Expense: 10000, Net: 10000}, got)
}

func TestCategoryTotals_Scenario(t *testing.T) {
	got := CategoryTotals(scenarioLedger())
	assert.Equal(t, map[string]int64{"c1": 4000, "c2": 1000, "c3": 5000}, got)
	assert.NotContains(t, got, "ignored-parent", "split parent category must not receive spend")
}

func TestCategoryTotals_Uncategorized(t *testing.T) {
	txs := []core.Transaction{
		{Kind: core.KindExpense, AmountCents: 700, Date: core.NewDate(2025, 1, 1)},
		{Kind: core.KindExpense, AmountCents: 300, Date: core.NewDate(2025, 1, 1), Splits: []core.Split{{AmountCents: 300}}},
		{Kind: core.KindIncome, AmountCents: 999, Date: core.NewDate(2025, 1, 1)},
	}
	assert.Equal(t, map[string]int64{UncategorizedKey: 1000}, CategoryTotals(txs))
}

func TestTransfersNeverCount(t *testing.T) {
	transfers := []core.Transaction{
		{Date: core.NewDate(2025, 2, 1), AmountCents: 123456, Kind: core.KindTransfer, FromAccountID: "a", ToAccountID: "b", Merchant: "Bank"},
		{Date: core.NewDate(2025, 2, 2), AmountCents: 1, Kind: core.KindTransfer, FromAccountID: "b", ToAccountID: "a"},
	}
	assert.Equal(t, Totals{}, SumIncomeExpense(transfers))
	assert.Empty(t, CategoryTotals(transfers))
	assert.Empty(t, CashflowSeries(transfers, 1))
	assert.Empty(t, NetTrendSeries(transfers, 1))
	assert.Empty(t, MerchantTotals(transfers))
	for _, v := range WeekdayTotals(transfers) {
		assert.Zero(t, v)
	}
}

func TestNetIdentity(t *testing.T) {
	txs := scenarioLedger()
	for i := 0; i < 50; i++ {
		kind := core.KindExpense
		if i%3 == 0 {
			kind = core.KindIncome
		}
		txs = append(txs, core.Transaction{Kind: kind, AmountCents: int64(i*37 + 1), Date: core.NewDate(2025, 2, 1+i%28)})
	}
	got := SumIncomeExpense(txs)
	assert.Equal(t, got.Income-got.Expense, got.Net)
}

func TestCashflowSeries(t *testing.T) {
	got := CashflowSeries(scenarioLedger(), 100)
	require.Len(t, got, 3)
	assert.Equal(t, CashflowPoint{Date: "2025-01-01", Income: 200, Expense: 0}, got[0])
	assert.Equal(t, CashflowPoint{Date: "2025-01-02", Income: 0, Expense: 50}, got[1])
	assert.Equal(t, CashflowPoint{Date: "2025-01-03", Income: 0, Expense: 50}, got[2])

	unscaled := CashflowSeries(scenarioLedger(), 0)
	assert.Equal(t, float64(20000), unscaled[0].Income, "scale <= 0 defaults to 1")
}

func TestNetTrendSeries(t *testing.T) {
	txs := append(scenarioLedger(),
		core.Transaction{Date: core.NewDate(2025, 1, 3), AmountCents: 150, Kind: core.KindIncome},
	)
	got := NetTrendSeries(txs, 100)
	assert.Equal(t, []NetPoint{
		{Date: "2025-01-01", Net: 200},
		{Date: "2025-01-02", Net: -50},
		{Date: "2025-01-03", Net: -49}, // -48.5 rounds half away from zero
	}, got)
}

func TestSeriesInvalidDateSortsLast(t *testing.T) {
	txs := []core.Transaction{
		{Date: core.ParseDateLenient("not-a-date"), AmountCents: 100, Kind: core.KindExpense},
		{Date: core.NewDate(2025, 3, 1), AmountCents: 200, Kind: core.KindIncome},
		{Date: core.ParseDateLenient(""), AmountCents: 50, Kind: core.KindExpense},
	}
	cash := CashflowSeries(txs, 1)
	require.Len(t, cash, 2)
	assert.Equal(t, "2025-03-01", cash[0].Date)
	assert.Equal(t, core.InvalidDateKey, cash[1].Date)
	assert.Equal(t, float64(150), cash[1].Expense)

	net := NetTrendSeries(txs, 1)
	require.Len(t, net, 2)
	assert.Equal(t, core.InvalidDateKey, net[1].Date)
}

func TestMerchantTotals(t *testing.T) {
	txs := append(scenarioLedger(),
		core.Transaction{Kind: core.KindExpense, AmountCents: 250, Merchant: " Gym "},
		core.Transaction{Kind: core.KindExpense, AmountCents: 999, Merchant: "   "},
		core.Transaction{Kind: core.KindIncome, AmountCents: 999, Merchant: "Employer"},
	)
	assert.Equal(t, map[string]int64{"Market": 5000, "Gym": 5250}, MerchantTotals(txs))
}

func TestWeekdayTotals(t *testing.T) {
	got := WeekdayTotals(scenarioLedger())
	require.Len(t, got, 7)
	// 2025-01-02 is a Thursday, 2025-01-03 a Friday.
	assert.Equal(t, int64(5000), got["Thu"])
	assert.Equal(t, int64(5000), got["Fri"])
	assert.Equal(t, int64(0), got["Wed"], "income on Wednesday must not count")
	assert.Equal(t, int64(0), got["Sun"])

	empty := WeekdayTotals(nil)
	assert.Len(t, empty, 7)
	for _, label := range WeekdayOrder {
		assert.Contains(t, empty, label)
	}
}

func TestSortedCategoryTotals(t *testing.T) {
	cats := []core.Category{{ID: "c3", Name: "Fitness"}, {ID: "c1", Name: "Groceries"}}
	got := SortedCategoryTotals(scenarioLedger(), cats)
	require.Len(t, got, 3)
	assert.Equal(t, "c3", got[0].CategoryID)
	assert.Equal(t, "Fitness", got[0].Name)
	assert.Equal(t, "c1", got[1].CategoryID)
	assert.Equal(t, core.UncategorizedName, got[2].Name, "dangling category ids render as uncategorized")
}

func TestFilters(t *testing.T) {
	txs := scenarioLedger()
	txs = append(txs, core.Transaction{Kind: core.KindExpense, AmountCents: 1, Currency: "USD", Date: core.NewDate(2025, 1, 2)})

	assert.Len(t, FilterCurrency(txs, "eur"), 5)
	assert.Len(t, FilterCurrency(txs, ""), 6)

	ranged := FilterRange(txs, core.NewDate(2025, 1, 2), core.NewDate(2025, 1, 3))
	assert.Len(t, ranged, 4)
}

func TestBudgetProgress(t *testing.T) {
	budgets := []core.Budget{
		{ID: "b1", CategoryID: "c1", Month: "2025-01", LimitCents: 3000, Currency: "EUR"},
		{ID: "b2", CategoryID: "c3", Month: "2025-01", LimitCents: 10000, Currency: "EUR"},
		{ID: "b3", CategoryID: "c3", Month: "2025-02", LimitCents: 10000, Currency: "EUR"},
		{ID: "b4", CategoryID: "c3", Month: "2025-01", LimitCents: 10000, Currency: "USD"},
	}
	got := BudgetProgress(budgets, scenarioLedger(), "2025-01")
	require.Len(t, got, 3)

	assert.Equal(t, int64(4000), got[0].SpentCents)
	assert.Equal(t, int64(-1000), got[0].RemainingCents)
	assert.True(t, got[0].Over)

	assert.Equal(t, int64(5000), got[1].SpentCents)
	assert.InDelta(t, 0.5, got[1].Ratio, 1e-9)
	assert.False(t, got[1].Over)

	assert.Equal(t, int64(0), got[2].SpentCents, "currencies are never mixed")
}
