package recurring

import (
	"fintrack/internal/core"
)

// MaxOccurrencesPerRule bounds how many transactions one rule can emit in a single run.
// A rule that has been dormant for years catches up over several runs instead of one.
const MaxOccurrencesPerRule = 120

// Plan is the catch-up schedule for one rule as of a given day.
type Plan struct {
	Occurrences []core.Date
	// NextRun is the first occurrence that was not emitted.
	NextRun core.Date
	// LastRun is the latest emitted occurrence, or the rule's previous LastRun when
	// nothing was emitted.
	LastRun core.Date
	Active  bool
	// Capped reports that the run stopped at the occurrence limit rather than at today
	// or the end date.
	Capped bool
}

// Due reports whether the plan emits anything.
func (p Plan) Due() bool { return len(p.Occurrences) > 0 }

// PlanRule walks rule from its NextRun up to today (inclusive), never past EndDate and never
// more than max steps. A non-positive max uses MaxOccurrencesPerRule.
func PlanRule(rule core.RecurringRule, today core.Date, max int) (Plan, error) {
	if max <= 0 {
		max = MaxOccurrencesPerRule
	}
	stepper, err := GetStepper(rule.Cadence)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{NextRun: rule.NextRun, LastRun: rule.LastRun, Active: rule.Active}
	if rule.NextRun.IsEmpty() || today.IsEmpty() {
		return plan, nil
	}

	current := rule.NextRun
	for i := 0; i < max; i++ {
		if !rule.EndDate.IsEmpty() && current.After(rule.EndDate) {
			break
		}
		if current.After(today) {
			break
		}
		plan.Occurrences = append(plan.Occurrences, current)
		current = stepper.Next(current)
	}
	if !plan.Due() {
		return plan, nil
	}

	plan.LastRun = plan.Occurrences[len(plan.Occurrences)-1]
	plan.NextRun = current
	plan.Capped = len(plan.Occurrences) == max && !current.After(today) &&
		(rule.EndDate.IsEmpty() || !current.After(rule.EndDate))
	if !rule.EndDate.IsEmpty() && plan.NextRun.After(rule.EndDate) {
		plan.Active = false
	}
	return plan, nil
}
