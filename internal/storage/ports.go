// Package storage persists the ledger. The SQLite repository is the production store;
// storage/memory provides the same contract for development and tests.
package storage

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

// ErrNotFound is returned when a lookup by id matches nothing.
var ErrNotFound = errors.New("not found")

// TransactionFilter narrows ListTransactions. Empty bounds are open.
type TransactionFilter struct {
	From core.Date
	To   core.Date
}

// Matches reports whether tx falls inside the filter. Undated transactions only match an
// unbounded filter.
func (f TransactionFilter) Matches(tx core.Transaction) bool {
	if f.From.IsEmpty() && f.To.IsEmpty() {
		return true
	}
	if tx.Date.IsEmpty() {
		return false
	}
	if !f.From.IsEmpty() && tx.Date.Before(f.From) {
		return false
	}
	if !f.To.IsEmpty() && tx.Date.After(f.To) {
		return false
	}
	return true
}

// AccountStore reads and writes accounts and categories.
type AccountStore interface {
	CreateAccount(ctx context.Context, a core.Account) error
	ListAccounts(ctx context.Context, userID string) ([]core.Account, error)
	CreateCategory(ctx context.Context, c core.Category) error
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
}

// TransactionStore reads and writes ledger entries with their splits.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx core.Transaction) error
	UpsertTransactions(ctx context.Context, txs []core.Transaction) error
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]core.Transaction, error)
}

// PlanningStore reads and writes budgets and goals.
type PlanningStore interface {
	CreateBudget(ctx context.Context, b core.Budget) error
	ListBudgets(ctx context.Context, userID string) ([]core.Budget, error)
	CreateGoal(ctx context.Context, g core.Goal) error
	ListGoals(ctx context.Context, userID string) ([]core.Goal, error)
}

// RecurringStore reads and advances recurring rules.
type RecurringStore interface {
	CreateRecurringRule(ctx context.Context, r core.RecurringRule) error
	ListRecurringRules(ctx context.Context, userID string) ([]core.RecurringRule, error)
	ListDueRecurringRules(ctx context.Context, userID string, today core.Date) ([]core.RecurringRule, error)
	UpdateRecurringRules(ctx context.Context, advances []core.RuleAdvance) error
	ListUsersWithDueRules(ctx context.Context, today core.Date) ([]string, error)
}

// Repository is the full persistence contract.
type Repository interface {
	AccountStore
	TransactionStore
	PlanningStore
	RecurringStore
	Close() error
}
