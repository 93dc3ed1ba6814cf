package balance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func accounts() []core.Account {
	return []core.Account{
		{ID: "checking", Type: core.AccountChecking, Currency: "EUR"},
		{ID: "savings", Type: core.AccountSavings, Currency: "EUR"},
		{ID: "card", Type: core.AccountCredit, Currency: "EUR"},
		{ID: "usd", Type: core.AccountChecking, Currency: "USD"},
	}
}

func ledger() []core.Transaction {
	return []core.Transaction{
		{Date: core.NewDate(2025, 1, 1), AmountCents: 200000, Kind: core.KindIncome, Currency: "EUR", AccountID: "checking"},
		{Date: core.NewDate(2025, 1, 2), AmountCents: 50000, Kind: core.KindTransfer, Currency: "EUR", FromAccountID: "checking", ToAccountID: "savings"},
		{Date: core.NewDate(2025, 1, 3), AmountCents: 12000, Kind: core.KindExpense, Currency: "EUR", AccountID: "card"},
		{Date: core.NewDate(2025, 1, 3), AmountCents: 9900, Kind: core.KindIncome, Currency: "USD", AccountID: "usd"},
		{Date: core.NewDate(2025, 1, 4), AmountCents: 777, Kind: core.KindExpense, Currency: "EUR", AccountID: "deleted-account"},
		{Date: core.NewDate(2025, 1, 5), AmountCents: 5000, Kind: core.KindTransfer, Currency: "EUR", FromAccountID: "checking", ToAccountID: "card"},
	}
}

func TestAccountBalances_CurrencyScoped(t *testing.T) {
	got := AccountBalances(accounts(), ledger(), "EUR")
	assert.Equal(t, map[string]int64{
		"checking": 200000 - 50000 - 5000,
		"savings":  50000,
		"card":     -12000 + 5000,
	}, got)
}

func TestAccountBalances_Unfiltered(t *testing.T) {
	got := AccountBalances(accounts(), ledger(), "")
	assert.Equal(t, int64(9900), got["usd"])
	assert.NotContains(t, got, "deleted-account", "dangling ids are dropped")
}

func TestBalanceConservation(t *testing.T) {
	accs := accounts()
	for _, tx := range ledger() {
		before := AccountBalances(accs, nil, "")
		after := AccountBalances(accs, []core.Transaction{tx}, "")
		var sum int64
		var changed int
		for id := range after {
			d := after[id] - before[id]
			sum += d
			if d != 0 {
				changed++
			}
		}
		switch tx.Kind {
		case core.KindTransfer:
			assert.Zero(t, sum, "transfers move money, never create it")
			assert.Equal(t, 2, changed)
		case core.KindIncome:
			if tx.AccountID == "deleted-account" {
				continue
			}
			assert.Equal(t, tx.AmountCents, sum)
			assert.Equal(t, 1, changed)
		case core.KindExpense:
			if tx.AccountID == "deleted-account" {
				assert.Zero(t, changed)
				continue
			}
			assert.Equal(t, -tx.AmountCents, sum)
			assert.Equal(t, 1, changed)
		}
	}
}

func TestAccountSummary(t *testing.T) {
	balances := AccountBalances(accounts(), ledger(), "EUR")
	got := AccountSummary(accounts(), balances, "EUR")
	assert.Equal(t, Summary{Assets: 195000, Liabilities: -7000, Total: 188000}, got)

	liabilityOverride := []core.Account{{ID: "loan", Type: core.AccountOther, Class: core.ClassLiability, Currency: "EUR"}}
	got = AccountSummary(liabilityOverride, map[string]int64{"loan": -100}, "EUR")
	assert.Equal(t, Summary{Liabilities: -100, Total: -100}, got)
}

func TestNetWorthTrend(t *testing.T) {
	points := NetWorthTrend(TrendQuery{
		Accounts:     accounts(),
		Transactions: ledger(),
		Start:        core.NewDate(2025, 1, 3),
		End:          core.NewDate(2025, 1, 5),
		Currency:     "EUR",
	})
	require.Len(t, points, 3)
	// Before the window: +2000.00 income, transfer nets to zero.
	assert.Equal(t, Point{Date: "2025-01-03", Balance: 1880}, points[0])
	assert.Equal(t, Point{Date: "2025-01-04", Balance: 1880}, points[1])
	assert.Equal(t, Point{Date: "2025-01-05", Balance: 1880}, points[2])
}

func TestNetWorthTrend_PostsOnOwnDate(t *testing.T) {
	accs := []core.Account{{ID: "a", Type: core.AccountChecking, Currency: "EUR"}}
	txs := []core.Transaction{
		{Date: core.NewDate(2025, 3, 2), AmountCents: 1049, Kind: core.KindIncome, Currency: "EUR", AccountID: "a"},
		{Date: core.NewDate(2025, 3, 10), AmountCents: 99999, Kind: core.KindIncome, Currency: "EUR", AccountID: "a"},
	}
	points := NetWorthTrend(TrendQuery{
		Accounts: accs, Transactions: txs,
		Start: core.NewDate(2025, 3, 1), End: core.NewDate(2025, 3, 3),
		LabelFormat: "Jan 2",
	})
	assert.Equal(t, []Point{
		{Date: "Mar 1", Balance: 0},
		{Date: "Mar 2", Balance: 10},
		{Date: "Mar 3", Balance: 10},
	}, points)
}

func TestNetWorthTrend_Degenerate(t *testing.T) {
	zeros := NetWorthTrend(TrendQuery{Start: core.NewDate(2025, 1, 1), End: core.NewDate(2025, 1, 2)})
	assert.Equal(t, []Point{{Date: "2025-01-01"}, {Date: "2025-01-02"}}, zeros)

	reversed := NetWorthTrend(TrendQuery{Accounts: accounts(), Start: core.NewDate(2025, 2, 1), End: core.NewDate(2025, 1, 1)})
	assert.Empty(t, reversed)
	assert.NotNil(t, reversed)
}
