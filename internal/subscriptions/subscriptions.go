// Package subscriptions estimates and schedules repeating charges detected in a ledger.
package subscriptions

import (
	"math"
	"time"

	"fintrack/internal/core"
)

// Interval is the coarse period of a detected subscription.
type Interval string

const (
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
	IntervalUnknown Interval = "unknown"
)

// Candidate is a merchant that charges the user on a recognizable rhythm but has not been
// turned into a recurring rule.
type Candidate struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id,omitempty"`
	Merchant       string    `json:"merchant"`
	Currency       string    `json:"currency"`
	AvgAmountCents int64     `json:"avg_amount_cents"`
	Interval       Interval  `json:"interval"`
	Occurrences    int       `json:"occurrences"`
	LastDate       core.Date `json:"last_date"`
	NextDueDate    core.Date `json:"next_due_date"`
	Confidence     float64   `json:"confidence"`
}

// now is swapped out by tests.
var now = time.Now

// EstimateMonthlyCents normalizes a candidate's average charge to a monthly figure.
func EstimateMonthlyCents(c Candidate) int64 {
	if c.Interval == IntervalWeekly {
		return int64(math.Round(float64(c.AvgAmountCents) * 52 / 12))
	}
	return c.AvgAmountCents
}

// IntervalLabel is the display label for an interval.
func IntervalLabel(i Interval) string {
	if i == IntervalWeekly {
		return "Weekly"
	}
	return "Monthly"
}

// ScheduleTextFromInterval maps an interval to the cadence a recurring rule would use.
func ScheduleTextFromInterval(i Interval) core.Cadence {
	if i == IntervalWeekly {
		return core.Weekly
	}
	return core.Monthly
}

// DefaultNextDueDate returns the stored next due date, or one period from today.
func DefaultNextDueDate(c Candidate) core.Date {
	if !c.NextDueDate.IsEmpty() {
		return c.NextDueDate
	}
	return step(core.DateOf(now()), c.Interval)
}

// SnoozeDateFromInterval pushes a candidate one period past base, or past today when base is empty.
func SnoozeDateFromInterval(i Interval, base core.Date) core.Date {
	if base.IsEmpty() {
		base = core.DateOf(now())
	}
	return step(base, i)
}

func step(d core.Date, i Interval) core.Date {
	if i == IntervalWeekly {
		return d.AddDays(7)
	}
	return d.AddMonths(1)
}
