// Package aggregate derives totals and time series from a ledger.
//
// Every function is a pure reducer: it reads the transactions it is given and returns
// freshly allocated results. Transfers never contribute to any figure here.
package aggregate

import (
	"math"
	"sort"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

// UncategorizedKey buckets expense lines without a category.
const UncategorizedKey = "uncategorized"

// WeekdayOrder lists the weekday buckets in display order.
var WeekdayOrder = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// weekdayLabels is indexed by time.Weekday (Sunday = 0).
var weekdayLabels = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

type (
	// Totals is the income/expense summary of a set of transactions.
	Totals struct {
		Income  int64 `json:"income"`
		Expense int64 `json:"expense"`
		Net     int64 `json:"net"`
	}

	CashflowPoint struct {
		Date    string  `json:"date"`
		Income  float64 `json:"income"`
		Expense float64 `json:"expense"`
	}

	NetPoint struct {
		Date string `json:"date"`
		Net  int64  `json:"net"`
	}
)

// SumIncomeExpense sums whole-transaction amounts by kind. Splits do not matter here.
func SumIncomeExpense(txs []core.Transaction) Totals {
	var t Totals
	for _, tx := range txs {
		switch tx.Kind {
		case core.KindIncome:
			t.Income += tx.AmountCents
		case core.KindExpense:
			t.Expense += tx.AmountCents
		}
	}
	t.Net = t.Income - t.Expense
	return t
}

// CategoryTotals sums expense lines per category id.
func CategoryTotals(txs []core.Transaction) map[string]int64 {
	out := make(map[string]int64)
	for _, line := range ledger.Lines(txs) {
		if line.Kind != core.KindExpense {
			continue
		}
		key := line.CategoryID
		if key == "" {
			key = UncategorizedKey
		}
		out[key] += line.AmountCents
	}
	return out
}

// SortedCategoryTotals returns CategoryTotals as a slice, largest first, names resolved.
func SortedCategoryTotals(txs []core.Transaction, categories []core.Category) []core.CategoryAmount {
	totals := CategoryTotals(txs)
	out := make([]core.CategoryAmount, 0, len(totals))
	for id, cents := range totals {
		name := core.UncategorizedName
		if id != UncategorizedKey {
			name = core.CategoryName(categories, id)
		}
		out = append(out, core.CategoryAmount{CategoryID: id, Name: name, Cents: cents})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cents != out[j].Cents {
			return out[i].Cents > out[j].Cents
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

// CashflowSeries buckets income and expense per date, ascending. Amounts are divided by
// scale for display units; scale <= 0 means 1.
func CashflowSeries(txs []core.Transaction, scale float64) []CashflowPoint {
	if scale <= 0 {
		scale = 1
	}
	type bucket struct{ income, expense int64 }
	buckets := make(map[string]*bucket)
	for _, tx := range txs {
		if tx.Kind != core.KindIncome && tx.Kind != core.KindExpense {
			continue
		}
		key := tx.Date.Key()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		if tx.Kind == core.KindIncome {
			b.income += tx.AmountCents
		} else {
			b.expense += tx.AmountCents
		}
	}
	out := make([]CashflowPoint, 0, len(buckets))
	for _, key := range sortedKeys(buckets) {
		b := buckets[key]
		out = append(out, CashflowPoint{
			Date:    key,
			Income:  float64(b.income) / scale,
			Expense: float64(b.expense) / scale,
		})
	}
	return out
}

// NetTrendSeries returns income minus expense per date, ascending, divided by scale and
// rounded to the nearest integer.
func NetTrendSeries(txs []core.Transaction, scale float64) []NetPoint {
	if scale <= 0 {
		scale = 1
	}
	nets := make(map[string]int64)
	for _, tx := range txs {
		if tx.Kind != core.KindIncome && tx.Kind != core.KindExpense {
			continue
		}
		nets[tx.Date.Key()] += ledger.SignedCents(tx.Kind, tx.AmountCents)
	}
	out := make([]NetPoint, 0, len(nets))
	for _, key := range sortedKeys(nets) {
		out = append(out, NetPoint{Date: key, Net: int64(math.Round(float64(nets[key]) / scale))})
	}
	return out
}

// MerchantTotals sums expense transactions per merchant. Transactions without a
// merchant are left out entirely.
func MerchantTotals(txs []core.Transaction) map[string]int64 {
	out := make(map[string]int64)
	for _, tx := range txs {
		if tx.Kind != core.KindExpense {
			continue
		}
		merchant := strings.TrimSpace(tx.Merchant)
		if merchant == "" {
			continue
		}
		out[merchant] += tx.AmountCents
	}
	return out
}

// WeekdayTotals sums expense lines by the weekday of their transaction date. All seven
// buckets are always present.
func WeekdayTotals(txs []core.Transaction) map[string]int64 {
	out := make(map[string]int64, 7)
	for _, label := range WeekdayOrder {
		out[label] = 0
	}
	for tx, line := range ledger.Lines(txs) {
		if line.Kind != core.KindExpense || tx.Date.IsEmpty() {
			continue
		}
		out[WeekdayLabel(tx.Date.Weekday())] += line.AmountCents
	}
	return out
}

// WeekdayLabel returns the three-letter abbreviation for wd.
func WeekdayLabel(wd time.Weekday) string {
	return weekdayLabels[int(wd)%7]
}

// FilterCurrency keeps transactions in the given currency. An empty code keeps everything.
func FilterCurrency(txs []core.Transaction, currency string) []core.Transaction {
	if currency == "" {
		return txs
	}
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if strings.EqualFold(tx.Currency, currency) {
			out = append(out, tx)
		}
	}
	return out
}

// FilterRange keeps transactions dated within [from, to]. Empty bounds are open.
// Undated transactions are kept only when both bounds are open.
func FilterRange(txs []core.Transaction, from, to core.Date) []core.Transaction {
	if from.IsEmpty() && to.IsEmpty() {
		return txs
	}
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Date.IsEmpty() {
			continue
		}
		if !from.IsEmpty() && tx.Date.Before(from) {
			continue
		}
		if !to.IsEmpty() && tx.Date.After(to) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
