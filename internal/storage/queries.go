package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the SQL used by the repository. Rows map one to one onto the tables in
// migrations/.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type AccountRow struct {
	ID       string
	UserID   string
	Name     string
	Type     string
	Class    string
	Currency string
}

const createAccount = `INSERT INTO accounts (id, user_id, name, type, class, currency) VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateAccount(ctx context.Context, a AccountRow) error {
	_, err := q.db.ExecContext(ctx, createAccount, a.ID, a.UserID, a.Name, a.Type, a.Class, a.Currency)
	return err
}

const listAccounts = `SELECT id, user_id, name, type, class, currency FROM accounts WHERE user_id = ? ORDER BY name, id`

func (q *Queries) ListAccounts(ctx context.Context, userID string) ([]AccountRow, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AccountRow
	for rows.Next() {
		var i AccountRow
		if err := rows.Scan(&i.ID, &i.UserID, &i.Name, &i.Type, &i.Class, &i.Currency); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type CategoryRow struct {
	ID        string
	UserID    string
	Name      string
	Direction string
}

const createCategory = `INSERT INTO categories (id, user_id, name, direction) VALUES (?, ?, ?, ?)`

func (q *Queries) CreateCategory(ctx context.Context, c CategoryRow) error {
	_, err := q.db.ExecContext(ctx, createCategory, c.ID, c.UserID, c.Name, c.Direction)
	return err
}

const listCategories = `SELECT id, user_id, name, direction FROM categories WHERE user_id = ? ORDER BY name, id`

func (q *Queries) ListCategories(ctx context.Context, userID string) ([]CategoryRow, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategoryRow
	for rows.Next() {
		var i CategoryRow
		if err := rows.Scan(&i.ID, &i.UserID, &i.Name, &i.Direction); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type TransactionRow struct {
	ID              string
	UserID          string
	Date            string
	AmountCents     int64
	Type            string
	TransactionKind string
	Currency        string
	CategoryID      string
	AccountID       string
	FromAccountID   string
	ToAccountID     string
	Merchant        string
	Notes           string
	Tags            string
	RecurringID     string
}

const transactionColumns = `id, user_id, date, amount_cents, type, transaction_kind, currency, category_id,
	account_id, from_account_id, to_account_id, merchant, notes, tags, recurring_id`

const upsertTransaction = `INSERT INTO transactions (` + transactionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	date = excluded.date,
	amount_cents = excluded.amount_cents,
	type = excluded.type,
	transaction_kind = excluded.transaction_kind,
	currency = excluded.currency,
	category_id = excluded.category_id,
	account_id = excluded.account_id,
	from_account_id = excluded.from_account_id,
	to_account_id = excluded.to_account_id,
	merchant = excluded.merchant,
	notes = excluded.notes,
	tags = excluded.tags,
	recurring_id = excluded.recurring_id,
	updated_at = CURRENT_TIMESTAMP
WHERE transactions.user_id = excluded.user_id`

func (q *Queries) UpsertTransaction(ctx context.Context, t TransactionRow) error {
	_, err := q.db.ExecContext(ctx, upsertTransaction,
		t.ID, t.UserID, t.Date, t.AmountCents, t.Type, t.TransactionKind, t.Currency, t.CategoryID,
		t.AccountID, t.FromAccountID, t.ToAccountID, t.Merchant, t.Notes, t.Tags, t.RecurringID)
	return err
}

const insertTransaction = `INSERT INTO transactions (` + transactionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertTransaction(ctx context.Context, t TransactionRow) error {
	_, err := q.db.ExecContext(ctx, insertTransaction,
		t.ID, t.UserID, t.Date, t.AmountCents, t.Type, t.TransactionKind, t.Currency, t.CategoryID,
		t.AccountID, t.FromAccountID, t.ToAccountID, t.Merchant, t.Notes, t.Tags, t.RecurringID)
	return err
}

func scanTransaction(s interface{ Scan(...any) error }) (TransactionRow, error) {
	var i TransactionRow
	err := s.Scan(&i.ID, &i.UserID, &i.Date, &i.AmountCents, &i.Type, &i.TransactionKind, &i.Currency,
		&i.CategoryID, &i.AccountID, &i.FromAccountID, &i.ToAccountID, &i.Merchant, &i.Notes, &i.Tags, &i.RecurringID)
	return i, err
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id string) (TransactionRow, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

const listTransactions = `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ? ORDER BY date, id`

func (q *Queries) ListTransactions(ctx context.Context, userID string) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		i, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type SplitRow struct {
	ID            string
	TransactionID string
	CategoryID    string
	AmountCents   int64
	Note          string
}

const deleteSplits = `DELETE FROM transaction_splits WHERE transaction_id = ?`

func (q *Queries) DeleteSplits(ctx context.Context, transactionID string) error {
	_, err := q.db.ExecContext(ctx, deleteSplits, transactionID)
	return err
}

const insertSplit = `INSERT INTO transaction_splits (id, transaction_id, category_id, amount_cents, note) VALUES (?, ?, ?, ?, ?)`

func (q *Queries) InsertSplit(ctx context.Context, s SplitRow) error {
	_, err := q.db.ExecContext(ctx, insertSplit, s.ID, s.TransactionID, s.CategoryID, s.AmountCents, s.Note)
	return err
}

const listSplitsForTransaction = `SELECT id, transaction_id, category_id, amount_cents, note
FROM transaction_splits WHERE transaction_id = ? ORDER BY rowid`

const listSplitsForUser = `SELECT s.id, s.transaction_id, s.category_id, s.amount_cents, s.note
FROM transaction_splits s JOIN transactions t ON t.id = s.transaction_id
WHERE t.user_id = ? ORDER BY s.rowid`

func (q *Queries) ListSplitsForTransaction(ctx context.Context, transactionID string) ([]SplitRow, error) {
	return q.listSplits(ctx, listSplitsForTransaction, transactionID)
}

func (q *Queries) ListSplitsForUser(ctx context.Context, userID string) ([]SplitRow, error) {
	return q.listSplits(ctx, listSplitsForUser, userID)
}

func (q *Queries) listSplits(ctx context.Context, query string, arg string) ([]SplitRow, error) {
	rows, err := q.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SplitRow
	for rows.Next() {
		var i SplitRow
		if err := rows.Scan(&i.ID, &i.TransactionID, &i.CategoryID, &i.AmountCents, &i.Note); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type BudgetRow struct {
	ID         string
	UserID     string
	CategoryID string
	Month      string
	LimitCents int64
	Currency   string
}

const createBudget = `INSERT INTO budgets (id, user_id, category_id, month, limit_cents, currency) VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateBudget(ctx context.Context, b BudgetRow) error {
	_, err := q.db.ExecContext(ctx, createBudget, b.ID, b.UserID, b.CategoryID, b.Month, b.LimitCents, b.Currency)
	return err
}

const listBudgets = `SELECT id, user_id, category_id, month, limit_cents, currency FROM budgets WHERE user_id = ? ORDER BY month, category_id`

func (q *Queries) ListBudgets(ctx context.Context, userID string) ([]BudgetRow, error) {
	rows, err := q.db.QueryContext(ctx, listBudgets, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BudgetRow
	for rows.Next() {
		var i BudgetRow
		if err := rows.Scan(&i.ID, &i.UserID, &i.CategoryID, &i.Month, &i.LimitCents, &i.Currency); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type GoalRow struct {
	ID           string
	UserID       string
	Name         string
	TargetCents  int64
	CurrentCents int64
	Currency     string
	DueDate      string
}

const createGoal = `INSERT INTO goals (id, user_id, name, target_cents, current_cents, currency, due_date) VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateGoal(ctx context.Context, g GoalRow) error {
	_, err := q.db.ExecContext(ctx, createGoal, g.ID, g.UserID, g.Name, g.TargetCents, g.CurrentCents, g.Currency, g.DueDate)
	return err
}

const listGoals = `SELECT id, user_id, name, target_cents, current_cents, currency, due_date FROM goals WHERE user_id = ? ORDER BY name, id`

func (q *Queries) ListGoals(ctx context.Context, userID string) ([]GoalRow, error) {
	rows, err := q.db.QueryContext(ctx, listGoals, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GoalRow
	for rows.Next() {
		var i GoalRow
		if err := rows.Scan(&i.ID, &i.UserID, &i.Name, &i.TargetCents, &i.CurrentCents, &i.Currency, &i.DueDate); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type RecurringRuleRow struct {
	ID          string
	UserID      string
	Name        string
	AmountCents int64
	Type        string
	CategoryID  string
	AccountID   string
	Currency    string
	Cadence     string
	StartDate   string
	NextRun     string
	LastRun     string
	EndDate     string
	Active      bool
	Notes       string
	Tags        string
}

const ruleColumns = `id, user_id, name, amount_cents, type, category_id, account_id, currency, cadence,
	start_date, next_run, last_run, end_date, active, notes, tags`

const createRecurringRule = `INSERT INTO recurring_rules (` + ruleColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateRecurringRule(ctx context.Context, r RecurringRuleRow) error {
	_, err := q.db.ExecContext(ctx, createRecurringRule,
		r.ID, r.UserID, r.Name, r.AmountCents, r.Type, r.CategoryID, r.AccountID, r.Currency, r.Cadence,
		r.StartDate, r.NextRun, r.LastRun, r.EndDate, r.Active, r.Notes, r.Tags)
	return err
}

const listRecurringRules = `SELECT ` + ruleColumns + ` FROM recurring_rules WHERE user_id = ? ORDER BY name, id`

const listDueRecurringRules = `SELECT ` + ruleColumns + ` FROM recurring_rules
WHERE user_id = ? AND active = 1 AND next_run <> '' AND next_run <= ?
ORDER BY next_run, id`

func (q *Queries) ListRecurringRules(ctx context.Context, userID string) ([]RecurringRuleRow, error) {
	return q.listRules(ctx, listRecurringRules, userID)
}

func (q *Queries) ListDueRecurringRules(ctx context.Context, userID, today string) ([]RecurringRuleRow, error) {
	return q.listRules(ctx, listDueRecurringRules, userID, today)
}

func (q *Queries) listRules(ctx context.Context, query string, args ...any) ([]RecurringRuleRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RecurringRuleRow
	for rows.Next() {
		var i RecurringRuleRow
		if err := rows.Scan(&i.ID, &i.UserID, &i.Name, &i.AmountCents, &i.Type, &i.CategoryID, &i.AccountID,
			&i.Currency, &i.Cadence, &i.StartDate, &i.NextRun, &i.LastRun, &i.EndDate, &i.Active, &i.Notes, &i.Tags); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// advanceRecurringRule never moves next_run backwards: a stale run computed from an older
// read matches no row.
const advanceRecurringRule = `UPDATE recurring_rules
SET next_run = ?, last_run = ?, active = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND user_id = ? AND next_run <= ?`

type AdvanceRecurringRuleParams struct {
	NextRun string
	LastRun string
	Active  bool
	ID      string
	UserID  string
}

func (q *Queries) AdvanceRecurringRule(ctx context.Context, p AdvanceRecurringRuleParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, advanceRecurringRule, p.NextRun, p.LastRun, p.Active, p.ID, p.UserID, p.NextRun)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listUsersWithDueRules = `SELECT DISTINCT user_id FROM recurring_rules
WHERE active = 1 AND next_run <> '' AND next_run <= ? ORDER BY user_id`

func (q *Queries) ListUsersWithDueRules(ctx context.Context, today string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listUsersWithDueRules, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	return items, rows.Err()
}
