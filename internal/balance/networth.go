package balance

import (
	"fintrack/internal/core"
)

// TrendQuery describes a net-worth replay window. LabelFormat is a Go time layout and
// defaults to core.DateLayout.
type TrendQuery struct {
	Accounts     []core.Account
	Transactions []core.Transaction
	Start        core.Date
	End          core.Date
	Currency     string
	LabelFormat  string
}

// Point is the total balance of all included accounts at the end of one day,
// in whole currency units.
type Point struct {
	Date    string `json:"date"`
	Balance int64  `json:"balance"`
}

// NetWorthTrend replays every transaction before Start, then walks Start..End one day
// at a time, posting each day's transactions before recording its total.
func NetWorthTrend(q TrendQuery) []Point {
	if q.Start.IsEmpty() || q.End.IsEmpty() || q.Start.After(q.End) {
		return []Point{}
	}
	layout := q.LabelFormat
	if layout == "" {
		layout = core.DateLayout
	}

	balances := initBalances(q.Accounts, q.Currency)
	byDay := make(map[string][]core.Transaction)
	for _, tx := range q.Transactions {
		if tx.Date.IsEmpty() {
			continue
		}
		switch {
		case tx.Date.Before(q.Start):
			apply(balances, tx, q.Currency)
		case !tx.Date.After(q.End):
			key := tx.Date.Key()
			byDay[key] = append(byDay[key], tx)
		}
	}

	var points []Point
	for day := q.Start; !day.After(q.End); day = day.AddDays(1) {
		for _, tx := range byDay[day.Key()] {
			apply(balances, tx, q.Currency)
		}
		var total int64
		for _, bal := range balances {
			total += bal
		}
		points = append(points, Point{
			Date:    day.Format(layout),
			Balance: core.CentsToUnits(total),
		})
	}
	return points
}
