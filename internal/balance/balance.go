// Package balance reconstructs account balances and net worth from a ledger.
//
// Balances are replayed from the full transaction history every time; nothing is
// cached between calls. Only accounts in the requested currency take part, and deltas
// aimed at any other account id (wrong currency, deleted account) are dropped.
package balance

import (
	"strings"

	"fintrack/internal/core"
)

// Summary splits net worth into its asset and liability sides.
type Summary struct {
	Assets      int64 `json:"assets"`
	Liabilities int64 `json:"liabilities"`
	Total       int64 `json:"total"`
}

// AccountBalances returns the balance in cents of every included account. An empty
// currency includes every account and every transaction.
func AccountBalances(accounts []core.Account, txs []core.Transaction, currency string) map[string]int64 {
	balances := initBalances(accounts, currency)
	for _, tx := range txs {
		apply(balances, tx, currency)
	}
	return balances
}

// AccountSummary totals included accounts by class. Liability balances are already
// negative by construction, so Total is net worth.
func AccountSummary(accounts []core.Account, balances map[string]int64, currency string) Summary {
	var s Summary
	for _, acc := range accounts {
		if !matchesCurrency(currency, acc.Currency) {
			continue
		}
		bal := balances[acc.ID]
		if acc.EffectiveClass() == core.ClassLiability {
			s.Liabilities += bal
		} else {
			s.Assets += bal
		}
	}
	s.Total = s.Assets + s.Liabilities
	return s
}

func initBalances(accounts []core.Account, currency string) map[string]int64 {
	balances := make(map[string]int64, len(accounts))
	for _, acc := range accounts {
		if matchesCurrency(currency, acc.Currency) {
			balances[acc.ID] = 0
		}
	}
	return balances
}

// apply posts tx to balances. Ids missing from the map are ignored.
func apply(balances map[string]int64, tx core.Transaction, currency string) {
	if !matchesCurrency(currency, tx.Currency) {
		return
	}
	switch tx.Kind {
	case core.KindTransfer:
		credit(balances, tx.FromAccountID, -tx.AmountCents)
		credit(balances, tx.ToAccountID, tx.AmountCents)
	case core.KindIncome:
		credit(balances, tx.AccountID, tx.AmountCents)
	case core.KindExpense:
		credit(balances, tx.AccountID, -tx.AmountCents)
	}
}

func credit(balances map[string]int64, accountID string, delta int64) {
	if _, ok := balances[accountID]; ok {
		balances[accountID] += delta
	}
}

func matchesCurrency(filter, code string) bool {
	return filter == "" || strings.EqualFold(filter, code)
}
