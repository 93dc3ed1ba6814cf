package subscriptions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func freezeNow(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func TestEstimateMonthlyCents(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want int64
	}{
		{"weekly", Candidate{AvgAmountCents: 1200, Interval: IntervalWeekly}, 5200},
		{"monthly", Candidate{AvgAmountCents: 1599, Interval: IntervalMonthly}, 1599},
		{"unknown treated as monthly", Candidate{AvgAmountCents: 700, Interval: IntervalUnknown}, 700},
		{"weekly rounds", Candidate{AvgAmountCents: 999, Interval: IntervalWeekly}, 4329},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateMonthlyCents(tt.c); got != tt.want {
				t.Errorf("EstimateMonthlyCents() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Weekly", IntervalLabel(IntervalWeekly))
	assert.Equal(t, "Monthly", IntervalLabel(IntervalMonthly))
	assert.Equal(t, "Monthly", IntervalLabel(IntervalUnknown))

	assert.Equal(t, core.Weekly, ScheduleTextFromInterval(IntervalWeekly))
	assert.Equal(t, core.Monthly, ScheduleTextFromInterval(IntervalUnknown))
}

func TestDefaultNextDueDate(t *testing.T) {
	freezeNow(t, time.Date(2025, 1, 31, 15, 4, 0, 0, time.UTC))

	stored := Candidate{Interval: IntervalWeekly, NextDueDate: core.NewDate(2025, 3, 3)}
	assert.Equal(t, "2025-03-03", DefaultNextDueDate(stored).Key())

	assert.Equal(t, "2025-02-07", DefaultNextDueDate(Candidate{Interval: IntervalWeekly}).Key())
	assert.Equal(t, "2025-02-28", DefaultNextDueDate(Candidate{Interval: IntervalMonthly}).Key())
	assert.Equal(t, "2025-02-28", DefaultNextDueDate(Candidate{Interval: IntervalUnknown}).Key())
}

func TestSnoozeDateFromInterval(t *testing.T) {
	freezeNow(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "2025-06-17", SnoozeDateFromInterval(IntervalWeekly, core.Date{}).Key())
	assert.Equal(t, "2025-07-10", SnoozeDateFromInterval(IntervalMonthly, core.Date{}).Key())
	assert.Equal(t, "2025-01-08", SnoozeDateFromInterval(IntervalWeekly, core.NewDate(2025, 1, 1)).Key())
}

func expense(merchant string, d core.Date, cents int64) core.Transaction {
	return core.Transaction{UserID: "u1", Kind: core.KindExpense, Merchant: merchant, Date: d, AmountCents: cents, Currency: "EUR"}
}

func TestDetect(t *testing.T) {
	txs := []core.Transaction{
		// monthly streaming, stable price
		expense("Streamio", core.NewDate(2025, 1, 5), 1299),
		expense("streamio ", core.NewDate(2025, 2, 5), 1299),
		expense("Streamio", core.NewDate(2025, 3, 5), 1299),
		expense("Streamio", core.NewDate(2025, 4, 5), 1299),
		// weekly box, varying price
		expense("VeggieBox", core.NewDate(2025, 3, 3), 2000),
		expense("VeggieBox", core.NewDate(2025, 3, 10), 2600),
		expense("VeggieBox", core.NewDate(2025, 3, 17), 1800),
		// irregular
		expense("Hardware", core.NewDate(2025, 1, 1), 5000),
		expense("Hardware", core.NewDate(2025, 1, 3), 5000),
		expense("Hardware", core.NewDate(2025, 3, 20), 5000),
		// too few
		expense("Cinema", core.NewDate(2025, 1, 1), 900),
		expense("Cinema", core.NewDate(2025, 2, 1), 900),
		// income never counts
		{UserID: "u1", Kind: core.KindIncome, Merchant: "Employer", Date: core.NewDate(2025, 1, 1), AmountCents: 1, Currency: "EUR"},
		{UserID: "u1", Kind: core.KindIncome, Merchant: "Employer", Date: core.NewDate(2025, 2, 1), AmountCents: 1, Currency: "EUR"},
		{UserID: "u1", Kind: core.KindIncome, Merchant: "Employer", Date: core.NewDate(2025, 3, 1), AmountCents: 1, Currency: "EUR"},
	}

	got := Detect(txs, DetectOptions{})
	require.Len(t, got, 2)

	stream := got[0]
	assert.Equal(t, "Streamio", stream.Merchant)
	assert.Equal(t, IntervalMonthly, stream.Interval)
	assert.Equal(t, int64(1299), stream.AvgAmountCents)
	assert.Equal(t, 4, stream.Occurrences)
	assert.Equal(t, "2025-05-05", stream.NextDueDate.Key())
	assert.InDelta(t, 1.0, stream.Confidence, 1e-9)
	assert.NotEmpty(t, stream.ID)

	box := got[1]
	assert.Equal(t, IntervalWeekly, box.Interval)
	assert.Equal(t, int64(2133), box.AvgAmountCents)
	assert.Equal(t, "2025-03-24", box.NextDueDate.Key())
	assert.Less(t, box.Confidence, stream.Confidence)

	again := Detect(txs, DetectOptions{})
	assert.Equal(t, got[0].ID, again[0].ID, "candidate ids are stable")
}

func TestDetect_CurrenciesAreSeparate(t *testing.T) {
	var txs []core.Transaction
	for i := 0; i < 3; i++ {
		d := core.NewDate(2025, 1, 1).AddMonths(i)
		txs = append(txs, expense("Cloud", d, 500))
		usd := expense("Cloud", d, 600)
		usd.Currency = "USD"
		txs = append(txs, usd)
	}
	got := Detect(txs, DetectOptions{})
	require.Len(t, got, 2)
	assert.NotEqual(t, got[0].Currency, got[1].Currency)

	assert.Empty(t, Detect(txs, DetectOptions{MinOccurrences: 4}))
}
