// Package recurring turns recurring rules into concrete ledger transactions.
//
// Date stepping is a strategy per cadence. Each cadence has its own Stepper, looked
// up through a registry so new cadences can be added without touching the planner.
package recurring

import (
	"fmt"
	"sync"

	"fintrack/internal/core"
)

// Stepper is the strategy interface for moving a date forward by one period.
type Stepper interface {
	// Next returns the occurrence that follows d.
	Next(d core.Date) core.Date
}

// DayStepper advances by a fixed number of days.
type DayStepper struct{ Days int }

// Next adds Days calendar days.
func (s DayStepper) Next(d core.Date) core.Date { return d.AddDays(s.Days) }

// MonthStepper advances by whole months, clamping the day to the end of the target month.
type MonthStepper struct{ Months int }

// Next adds Months calendar months. Jan 31 + 1 month is Feb 28 (or 29).
func (s MonthStepper) Next(d core.Date) core.Date { return d.AddMonths(s.Months) }

var (
	steppersMu sync.RWMutex
	steppers   = map[core.Cadence]Stepper{
		core.Daily:     DayStepper{Days: 1},
		core.Weekly:    DayStepper{Days: 7},
		core.Biweekly:  DayStepper{Days: 14},
		core.Monthly:   MonthStepper{Months: 1},
		core.Quarterly: MonthStepper{Months: 3},
		core.Yearly:    MonthStepper{Months: 12},
	}
)

// GetStepper returns the stepper registered for cadence.
func GetStepper(cadence core.Cadence) (Stepper, error) {
	steppersMu.RLock()
	defer steppersMu.RUnlock()
	s, ok := steppers[cadence]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidCadence, cadence)
	}
	return s, nil
}

// RegisterStepper installs or replaces the stepper for a cadence.
func RegisterStepper(cadence core.Cadence, s Stepper) {
	steppersMu.Lock()
	defer steppersMu.Unlock()
	steppers[cadence] = s
}

// AdvanceDate returns d moved forward by one cadence period.
func AdvanceDate(d core.Date, cadence core.Cadence) (core.Date, error) {
	s, err := GetStepper(cadence)
	if err != nil {
		return core.Date{}, err
	}
	return s.Next(d), nil
}
