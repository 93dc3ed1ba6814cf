// Package memory is an in-process ledger store for development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Store keeps every record in maps guarded by one RWMutex. Values are copied on the way
// in and out so callers never share slices with the store.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]core.Account
	categories   map[string]core.Category
	transactions map[string]core.Transaction
	budgets      map[string]core.Budget
	goals        map[string]core.Goal
	rules        map[string]core.RecurringRule
}

var _ storage.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		accounts:     make(map[string]core.Account),
		categories:   make(map[string]core.Category),
		transactions: make(map[string]core.Transaction),
		budgets:      make(map[string]core.Budget),
		goals:        make(map[string]core.Goal),
		rules:        make(map[string]core.RecurringRule),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateAccount(_ context.Context, a core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; ok {
		return fmt.Errorf("account %s already exists", a.ID)
	}
	a.Currency = core.NormalizeCurrency(a.Currency)
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) ListAccounts(_ context.Context, userID string) ([]core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := collect(s.accounts, func(a core.Account) bool { return a.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return less(out[i].Name, out[j].Name, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[c.ID]; ok {
		return fmt.Errorf("category %s already exists", c.ID)
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := collect(s.categories, func(c core.Category) bool { return c.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return less(out[i].Name, out[j].Name, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[tx.ID]; ok {
		return fmt.Errorf("transaction %s already exists", tx.ID)
	}
	s.transactions[tx.ID] = cloneTransaction(tx)
	return nil
}

// UpsertTransactions replaces rows by id. A row owned by another user is left alone, as the
// SQLite store does.
func (s *Store) UpsertTransactions(_ context.Context, txs []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		if existing, ok := s.transactions[tx.ID]; ok && existing.UserID != tx.UserID {
			continue
		}
		s.transactions[tx.ID] = cloneTransaction(tx)
	}
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, storage.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, userID string, f storage.TransactionFilter) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, tx := range s.transactions {
		if tx.UserID == userID && f.Matches(tx) {
			out = append(out, cloneTransaction(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i].Date.String(), out[j].Date.String(), out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.Currency = core.NormalizeCurrency(b.Currency)
	for _, existing := range s.budgets {
		if existing.UserID == b.UserID && existing.CategoryID == b.CategoryID && existing.Month == b.Month && existing.Currency == b.Currency {
			return fmt.Errorf("budget for %s in %s already exists", b.CategoryID, b.Month)
		}
	}
	s.budgets[b.ID] = b
	return nil
}

func (s *Store) ListBudgets(_ context.Context, userID string) ([]core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := collect(s.budgets, func(b core.Budget) bool { return b.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return less(out[i].Month, out[j].Month, out[i].CategoryID, out[j].CategoryID) })
	return out, nil
}

func (s *Store) CreateGoal(_ context.Context, g core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[g.ID] = g
	return nil
}

func (s *Store) ListGoals(_ context.Context, userID string) ([]core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := collect(s.goals, func(g core.Goal) bool { return g.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return less(out[i].Name, out[j].Name, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) CreateRecurringRule(_ context.Context, r core.RecurringRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[r.ID]; ok {
		return fmt.Errorf("recurring rule %s already exists", r.ID)
	}
	r.Tags = slices.Clone(r.Tags)
	s.rules[r.ID] = r
	return nil
}

func (s *Store) ListRecurringRules(_ context.Context, userID string) ([]core.RecurringRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := collect(s.rules, func(r core.RecurringRule) bool { return r.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return less(out[i].Name, out[j].Name, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) ListDueRecurringRules(_ context.Context, userID string, today core.Date) ([]core.RecurringRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := collect(s.rules, func(r core.RecurringRule) bool { return r.UserID == userID && isDue(r, today) })
	sort.Slice(out, func(i, j int) bool { return less(out[i].NextRun.Key(), out[j].NextRun.Key(), out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) UpdateRecurringRules(_ context.Context, advances []core.RuleAdvance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range advances {
		r, ok := s.rules[a.RuleID]
		if !ok || r.UserID != a.UserID || a.NextRun.Before(r.NextRun) {
			continue
		}
		r.NextRun, r.LastRun, r.Active = a.NextRun, a.LastRun, a.Active
		s.rules[a.RuleID] = r
	}
	return nil
}

func (s *Store) ListUsersWithDueRules(_ context.Context, today core.Date) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, r := range s.rules {
		if isDue(r, today) {
			seen[r.UserID] = struct{}{}
		}
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

func isDue(r core.RecurringRule, today core.Date) bool {
	return r.Active && !r.NextRun.IsEmpty() && !r.NextRun.After(today)
}

func collect[T any](m map[string]T, keep func(T) bool) []T {
	var out []T
	for _, v := range m {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func less(a, b, tieA, tieB string) bool {
	if c := strings.Compare(a, b); c != 0 {
		return c < 0
	}
	return tieA < tieB
}

func cloneTransaction(tx core.Transaction) core.Transaction {
	tx.Currency = core.NormalizeCurrency(tx.Currency)
	tx.Tags = slices.Clone(tx.Tags)
	tx.Splits = slices.Clone(tx.Splits)
	for i := range tx.Splits {
		tx.Splits[i].TransactionID = tx.ID
	}
	return tx
}
