package recurring

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// occurrenceNamespace seeds the name-based ids of materialized transactions.
var occurrenceNamespace = uuid.MustParse("6f1c2a8e-4b7d-5e39-9a10-3c2d8e7f6b51")

// Store is the persistence the materializer needs. Both writes are batched and keyed by id,
// so replaying a run overwrites rather than duplicates.
type Store interface {
	ListDueRecurringRules(ctx context.Context, userID string, today core.Date) ([]core.RecurringRule, error)
	UpsertTransactions(ctx context.Context, txs []core.Transaction) error
	UpdateRecurringRules(ctx context.Context, advances []core.RuleAdvance) error
}

// Result summarizes one materialization run.
type Result struct {
	Inserted     int                `json:"inserted"`
	Updated      int                `json:"updated"`
	Transactions []core.Transaction `json:"-"`
}

// Materializer creates the transactions owed by a user's recurring rules.
type Materializer struct {
	store  Store
	max    int
	logger *log.Logger
}

// NewMaterializer builds a Materializer. maxPerRule <= 0 uses MaxOccurrencesPerRule.
func NewMaterializer(store Store, maxPerRule int, logger *log.Logger) *Materializer {
	if maxPerRule <= 0 {
		maxPerRule = MaxOccurrencesPerRule
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Materializer{store: store, max: maxPerRule, logger: logger.WithComponent(log.ComponentRecurring)}
}

// OccurrenceID is the stable transaction id for a rule's occurrence on date. Concurrent runs
// for the same user compute the same ids and converge on one row.
func OccurrenceID(ruleID string, date core.Date) string {
	return uuid.NewSHA1(occurrenceNamespace, []byte(ruleID+"|"+date.Key())).String()
}

// Materialize emits every occurrence due on or before today for the user's active rules.
// It returns nil when no rule is due. A persistence failure aborts the run; because
// rules are only advanced after the transactions are stored, the next run resumes.
func (m *Materializer) Materialize(ctx context.Context, userID string, today core.Date) (*Result, error) {
	rules, err := m.store.ListDueRecurringRules(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("list due rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, nil
	}

	var (
		txs      []core.Transaction
		advances []core.RuleAdvance
	)
	for _, rule := range rules {
		plan, err := PlanRule(rule, today, m.max)
		if err != nil {
			m.logger.WarnContext(ctx, "Skipping recurring rule",
				log.NewFields().WithUser(userID).WithRule(rule.ID, string(rule.Cadence)).WithError(err).ToSlice()...)
			continue
		}
		if !plan.Due() {
			continue
		}
		if plan.Capped {
			m.logger.WarnContext(ctx, "Recurring rule hit occurrence cap",
				log.NewFields().WithUser(userID).WithRule(rule.ID, string(rule.Cadence)).ToSlice()...)
		}
		for _, d := range plan.Occurrences {
			txs = append(txs, occurrence(rule, d))
		}
		advances = append(advances, core.RuleAdvance{
			RuleID:  rule.ID,
			UserID:  rule.UserID,
			NextRun: plan.NextRun,
			LastRun: plan.LastRun,
			Active:  plan.Active,
		})
	}

	res := &Result{}
	if len(txs) == 0 {
		return res, nil
	}
	if err := m.store.UpsertTransactions(ctx, txs); err != nil {
		return nil, fmt.Errorf("insert recurring transactions: %w", err)
	}
	if err := m.store.UpdateRecurringRules(ctx, advances); err != nil {
		return nil, fmt.Errorf("advance recurring rules: %w", err)
	}
	res.Inserted = len(txs)
	res.Updated = len(advances)
	res.Transactions = txs
	return res, nil
}

func occurrence(rule core.RecurringRule, d core.Date) core.Transaction {
	return core.Transaction{
		ID:          OccurrenceID(rule.ID, d),
		UserID:      rule.UserID,
		Date:        d,
		AmountCents: rule.AmountCents,
		Kind:        rule.Kind,
		Currency:    rule.Currency,
		CategoryID:  rule.CategoryID,
		AccountID:   rule.AccountID,
		Merchant:    rule.Name,
		Notes:       rule.Notes,
		Tags:        slices.Clone(rule.Tags),
		RecurringID: rule.ID,
	}
}
