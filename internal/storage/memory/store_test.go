package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func TestStore_TransactionsAreCopied(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx := core.Transaction{
		ID: "t1", UserID: "u1", Date: core.NewDate(2025, 1, 2), AmountCents: 100, Kind: core.KindExpense,
		Currency: "eur", Tags: []string{"a"}, Splits: []core.Split{{ID: "s1", AmountCents: 100}},
	}
	require.NoError(t, s.CreateTransaction(ctx, tx))
	tx.Tags[0] = "mutated"

	got, err := s.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.Tags)
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, "t1", got.Splits[0].TransactionID)

	assert.Error(t, s.CreateTransaction(ctx, tx), "duplicate ids are rejected")

	_, err = s.GetTransaction(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_ListTransactionsFilter(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.UpsertTransactions(ctx, []core.Transaction{
		{ID: "b", UserID: "u1", Date: core.NewDate(2025, 2, 1)},
		{ID: "a", UserID: "u1", Date: core.NewDate(2025, 1, 1)},
		{ID: "undated", UserID: "u1"},
		{ID: "other", UserID: "u2", Date: core.NewDate(2025, 1, 1)},
	}))

	all, err := s.ListTransactions(ctx, "u1", storage.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	jan, err := s.ListTransactions(ctx, "u1", storage.TransactionFilter{To: core.NewDate(2025, 1, 31)})
	require.NoError(t, err)
	require.Len(t, jan, 1)
	assert.Equal(t, "a", jan[0].ID)
}

func TestStore_UpsertRespectsOwner(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.UpsertTransactions(ctx, []core.Transaction{{ID: "x", UserID: "u1", AmountCents: 1}}))
	require.NoError(t, s.UpsertTransactions(ctx, []core.Transaction{{ID: "x", UserID: "u2", AmountCents: 2}}))

	got, err := s.GetTransaction(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, int64(1), got.AmountCents)
}

func TestStore_RecurringRules(t *testing.T) {
	ctx := context.Background()
	s := New()
	today := core.NewDate(2025, 4, 20)
	rules := []core.RecurringRule{
		{ID: "r1", UserID: "u2", Active: true, NextRun: core.NewDate(2025, 1, 1)},
		{ID: "r2", UserID: "u1", Active: true, NextRun: core.NewDate(2025, 4, 20)},
		{ID: "r3", UserID: "u3", Active: true, NextRun: core.NewDate(2025, 4, 21)},
		{ID: "r4", UserID: "u4", Active: false, NextRun: core.NewDate(2025, 1, 1)},
	}
	for _, r := range rules {
		require.NoError(t, s.CreateRecurringRule(ctx, r))
	}

	users, err := s.ListUsersWithDueRules(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, users)

	require.NoError(t, s.UpdateRecurringRules(ctx, []core.RuleAdvance{
		{RuleID: "r2", UserID: "u1", NextRun: core.NewDate(2025, 5, 20), LastRun: today, Active: true},
		{RuleID: "r1", UserID: "intruder", NextRun: core.NewDate(2030, 1, 1), Active: false},
	}))
	due, err := s.ListDueRecurringRules(ctx, "u1", today)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = s.ListDueRecurringRules(ctx, "u2", today)
	require.NoError(t, err)
	assert.Len(t, due, 1, "advances for another user's rule are ignored")
}

func TestStore_RuleAdvanceIsMonotonic(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateRecurringRule(ctx, core.RecurringRule{ID: "r1", UserID: "u1", Active: true, NextRun: core.NewDate(2025, 1, 15)}))

	require.NoError(t, s.UpdateRecurringRules(ctx, []core.RuleAdvance{
		{RuleID: "r1", UserID: "u1", NextRun: core.NewDate(2025, 5, 15), LastRun: core.NewDate(2025, 4, 15), Active: true},
	}))
	require.NoError(t, s.UpdateRecurringRules(ctx, []core.RuleAdvance{
		{RuleID: "r1", UserID: "u1", NextRun: core.NewDate(2025, 3, 15), LastRun: core.NewDate(2025, 2, 15), Active: true},
	}))

	rules, err := s.ListRecurringRules(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "2025-05-15", rules[0].NextRun.Key())
	assert.Equal(t, "2025-04-15", rules[0].LastRun.Key())
}

func TestStore_BudgetsUnique(t *testing.T) {
	ctx := context.Background()
	s := New()
	b := core.Budget{ID: "b1", UserID: "u1", CategoryID: "c1", Month: "2025-01", Currency: "eur"}
	require.NoError(t, s.CreateBudget(ctx, b))
	b.ID = "b2"
	assert.Error(t, s.CreateBudget(ctx, b))

	budgets, err := s.ListBudgets(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Equal(t, "EUR", budgets[0].Currency)
}
