package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fintrack/internal/core"
	"fintrack/internal/log"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent materialization.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = log.Discard()
	}
	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) error {
	err := r.queries.CreateAccount(ctx, AccountRow{
		ID: a.ID, UserID: a.UserID, Name: a.Name, Type: string(a.Type), Class: string(a.Class),
		Currency: core.NormalizeCurrency(a.Currency),
	})
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	rows, err := r.queries.ListAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]core.Account, len(rows))
	for i, a := range rows {
		out[i] = core.Account{
			ID: a.ID, UserID: a.UserID, Name: a.Name, Type: core.AccountType(a.Type),
			Class: core.AccountClass(a.Class), Currency: a.Currency,
		}
	}
	return out, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	if err := r.queries.CreateCategory(ctx, CategoryRow{ID: c.ID, UserID: c.UserID, Name: c.Name, Direction: string(c.Direction)}); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, len(rows))
	for i, c := range rows {
		out[i] = core.Category{ID: c.ID, UserID: c.UserID, Name: c.Name, Direction: core.Kind(c.Direction)}
	}
	return out, nil
}

// CreateTransaction stores tx and its splits atomically.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) error {
	return r.inTx(ctx, func(q *Queries) error {
		row, err := toTransactionRow(tx)
		if err != nil {
			return err
		}
		if err := q.InsertTransaction(ctx, row); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return insertSplits(ctx, q, tx)
	})
}

// UpsertTransactions writes every transaction in one database transaction, replacing rows
// that share an id. Splits of replaced rows are rewritten.
func (r *SQLiteRepository) UpsertTransactions(ctx context.Context, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	return r.inTx(ctx, func(q *Queries) error {
		for _, tx := range txs {
			row, err := toTransactionRow(tx)
			if err != nil {
				return err
			}
			if err := q.UpsertTransaction(ctx, row); err != nil {
				return fmt.Errorf("upsert transaction %s: %w", tx.ID, err)
			}
			if err := q.DeleteSplits(ctx, tx.ID); err != nil {
				return fmt.Errorf("clear splits %s: %w", tx.ID, err)
			}
			if err := insertSplits(ctx, q, tx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	splits, err := r.queries.ListSplitsForTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("list splits: %w", err)
	}
	tx := r.fromTransactionRow(ctx, row)
	for _, s := range splits {
		tx.Splits = append(tx.Splits, fromSplitRow(s))
	}
	return tx, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	splits, err := r.queries.ListSplitsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list splits: %w", err)
	}
	byTx := make(map[string][]core.Split)
	for _, s := range splits {
		byTx[s.TransactionID] = append(byTx[s.TransactionID], fromSplitRow(s))
	}

	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx := r.fromTransactionRow(ctx, row)
		if !f.Matches(tx) {
			continue
		}
		tx.Splits = byTx[tx.ID]
		out = append(out, tx)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) error {
	err := r.queries.CreateBudget(ctx, BudgetRow{
		ID: b.ID, UserID: b.UserID, CategoryID: b.CategoryID, Month: b.Month, LimitCents: b.LimitCents,
		Currency: core.NormalizeCurrency(b.Currency),
	})
	if err != nil {
		return fmt.Errorf("create budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := r.queries.ListBudgets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	out := make([]core.Budget, len(rows))
	for i, b := range rows {
		out[i] = core.Budget{ID: b.ID, UserID: b.UserID, CategoryID: b.CategoryID, Month: b.Month, LimitCents: b.LimitCents, Currency: b.Currency}
	}
	return out, nil
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) error {
	err := r.queries.CreateGoal(ctx, GoalRow{
		ID: g.ID, UserID: g.UserID, Name: g.Name, TargetCents: g.TargetCents, CurrentCents: g.CurrentCents,
		Currency: core.NormalizeCurrency(g.Currency), DueDate: g.DueDate.String(),
	})
	if err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := r.queries.ListGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	out := make([]core.Goal, len(rows))
	for i, g := range rows {
		out[i] = core.Goal{
			ID: g.ID, UserID: g.UserID, Name: g.Name, TargetCents: g.TargetCents, CurrentCents: g.CurrentCents,
			Currency: g.Currency, DueDate: core.ParseDateLenient(g.DueDate),
		}
	}
	return out, nil
}

func (r *SQLiteRepository) CreateRecurringRule(ctx context.Context, rule core.RecurringRule) error {
	tags, err := encodeTags(rule.Tags)
	if err != nil {
		return err
	}
	err = r.queries.CreateRecurringRule(ctx, RecurringRuleRow{
		ID: rule.ID, UserID: rule.UserID, Name: rule.Name, AmountCents: rule.AmountCents, Type: string(rule.Kind),
		CategoryID: rule.CategoryID, AccountID: rule.AccountID, Currency: core.NormalizeCurrency(rule.Currency),
		Cadence: string(rule.Cadence), StartDate: rule.StartDate.String(), NextRun: rule.NextRun.String(),
		LastRun: rule.LastRun.String(), EndDate: rule.EndDate.String(), Active: rule.Active, Notes: rule.Notes, Tags: tags,
	})
	if err != nil {
		return fmt.Errorf("create recurring rule: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListRecurringRules(ctx context.Context, userID string) ([]core.RecurringRule, error) {
	rows, err := r.queries.ListRecurringRules(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", err)
	}
	return fromRuleRows(rows), nil
}

// ListDueRecurringRules returns active rules whose next_run is on or before today.
func (r *SQLiteRepository) ListDueRecurringRules(ctx context.Context, userID string, today core.Date) ([]core.RecurringRule, error) {
	rows, err := r.queries.ListDueRecurringRules(ctx, userID, today.Key())
	if err != nil {
		return nil, fmt.Errorf("list due recurring rules: %w", err)
	}
	return fromRuleRows(rows), nil
}

// UpdateRecurringRules persists every advance in one database transaction.
func (r *SQLiteRepository) UpdateRecurringRules(ctx context.Context, advances []core.RuleAdvance) error {
	if len(advances) == 0 {
		return nil
	}
	return r.inTx(ctx, func(q *Queries) error {
		for _, a := range advances {
			n, err := q.AdvanceRecurringRule(ctx, AdvanceRecurringRuleParams{
				NextRun: a.NextRun.String(), LastRun: a.LastRun.String(), Active: a.Active, ID: a.RuleID, UserID: a.UserID,
			})
			if err != nil {
				return fmt.Errorf("advance rule %s: %w", a.RuleID, err)
			}
			if n == 0 {
				r.logger.WarnContext(ctx, "Recurring rule advance skipped, rule missing or already further ahead",
					log.NewFields().WithUser(a.UserID).WithRule(a.RuleID, "").ToSlice()...)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) ListUsersWithDueRules(ctx context.Context, today core.Date) ([]string, error) {
	users, err := r.queries.ListUsersWithDueRules(ctx, today.Key())
	if err != nil {
		return nil, fmt.Errorf("list users with due rules: %w", err)
	}
	return users, nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertSplits(ctx context.Context, q *Queries, tx core.Transaction) error {
	for _, s := range tx.Splits {
		err := q.InsertSplit(ctx, SplitRow{
			ID: s.ID, TransactionID: tx.ID, CategoryID: s.CategoryID, AmountCents: s.AmountCents, Note: s.Note,
		})
		if err != nil {
			return fmt.Errorf("insert split %s: %w", s.ID, err)
		}
	}
	return nil
}

// toTransactionRow writes the kind to both discriminant columns so older readers of the
// legacy column keep working.
func toTransactionRow(tx core.Transaction) (TransactionRow, error) {
	tags, err := encodeTags(tx.Tags)
	if err != nil {
		return TransactionRow{}, err
	}
	return TransactionRow{
		ID: tx.ID, UserID: tx.UserID, Date: tx.Date.String(), AmountCents: tx.AmountCents,
		Type: string(tx.Kind), TransactionKind: string(tx.Kind), Currency: core.NormalizeCurrency(tx.Currency),
		CategoryID: tx.CategoryID, AccountID: tx.AccountID, FromAccountID: tx.FromAccountID,
		ToAccountID: tx.ToAccountID, Merchant: tx.Merchant, Notes: tx.Notes, Tags: tags, RecurringID: tx.RecurringID,
	}, nil
}

func (r *SQLiteRepository) fromTransactionRow(ctx context.Context, row TransactionRow) core.Transaction {
	kind, conflict := core.ResolveKind(row.TransactionKind, row.Type)
	if conflict {
		r.logger.WarnContext(ctx, "Transaction kind columns disagree",
			log.FieldTransactionID, row.ID,
			"transaction_kind", row.TransactionKind,
			"type", row.Type)
	}
	return core.Transaction{
		ID: row.ID, UserID: row.UserID, Date: core.ParseDateLenient(row.Date), AmountCents: row.AmountCents,
		Kind: kind, Currency: row.Currency, CategoryID: row.CategoryID, AccountID: row.AccountID,
		FromAccountID: row.FromAccountID, ToAccountID: row.ToAccountID, Merchant: row.Merchant,
		Notes: row.Notes, Tags: decodeTags(row.Tags), RecurringID: row.RecurringID,
	}
}

func fromSplitRow(s SplitRow) core.Split {
	return core.Split{ID: s.ID, TransactionID: s.TransactionID, CategoryID: s.CategoryID, AmountCents: s.AmountCents, Note: s.Note}
}

func fromRuleRows(rows []RecurringRuleRow) []core.RecurringRule {
	out := make([]core.RecurringRule, len(rows))
	for i, r := range rows {
		out[i] = core.RecurringRule{
			ID: r.ID, UserID: r.UserID, Name: r.Name, AmountCents: r.AmountCents, Kind: core.Kind(r.Type),
			CategoryID: r.CategoryID, AccountID: r.AccountID, Currency: r.Currency, Cadence: core.Cadence(r.Cadence),
			StartDate: core.ParseDateLenient(r.StartDate), NextRun: core.ParseDateLenient(r.NextRun),
			LastRun: core.ParseDateLenient(r.LastRun), EndDate: core.ParseDateLenient(r.EndDate),
			Active: r.Active, Notes: r.Notes, Tags: decodeTags(r.Tags),
		}
	}
	return out
}

func encodeTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

// decodeTags tolerates malformed column values.
func decodeTags(s string) []string {
	var tags []string
	if err := json.Unmarshal([]byte(s), &tags); err != nil || len(tags) == 0 {
		return nil
	}
	return tags
}
