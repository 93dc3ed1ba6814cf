package aggregate

import (
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

// BudgetStatus compares one budget against the month's expense lines in its category.
type BudgetStatus struct {
	Budget         core.Budget `json:"budget"`
	SpentCents     int64       `json:"spent_cents"`
	RemainingCents int64       `json:"remaining_cents"`
	Ratio          float64     `json:"ratio"`
	Over           bool        `json:"over"`
}

// BudgetProgress evaluates every budget for month (yyyy-MM). Only expense lines in the
// budget's currency and month count toward it.
func BudgetProgress(budgets []core.Budget, txs []core.Transaction, month string) []BudgetStatus {
	type key struct{ category, currency string }
	spent := make(map[key]int64)
	inMonth := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Date.MonthKey() == month {
			inMonth = append(inMonth, tx)
		}
	}
	for tx, line := range ledger.Lines(inMonth) {
		if line.Kind != core.KindExpense {
			continue
		}
		spent[key{line.CategoryID, strings.ToUpper(tx.Currency)}] += line.AmountCents
	}

	out := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		if b.Month != month {
			continue
		}
		s := spent[key{b.CategoryID, strings.ToUpper(b.Currency)}]
		status := BudgetStatus{
			Budget:         b,
			SpentCents:     s,
			RemainingCents: b.LimitCents - s,
			Over:           s > b.LimitCents,
		}
		if b.LimitCents > 0 {
			status.Ratio = float64(s) / float64(b.LimitCents)
		}
		out = append(out, status)
	}
	return out
}
