package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerWriter mirrors ledger transactions into a spreadsheet, one row per transaction.
	LedgerWriter interface {
		AppendRow(ctx context.Context, row LedgerRow) (rowRef string, err error)
	}

	// LedgerIndex reports whether a transaction has already been mirrored. Events are delivered
	// at least once, so writers use it to keep the sheet free of duplicates.
	LedgerIndex interface {
		HasTransaction(ctx context.Context, transactionID string) (bool, error)
	}

	// Mirror is a writer that can also answer lookups.
	Mirror interface {
		LedgerWriter
		LedgerIndex
	}
)

// LedgerRow is the flattened, human-readable shape of a transaction in the sheet.
type LedgerRow struct {
	TransactionID string
	Date          string
	Kind          string
	Amount        string
	Currency      string
	Account       string
	Category      string
	Merchant      string
	Notes         string
}

// Header is the first row written to an empty ledger sheet.
var Header = []string{"ID", "Date", "Kind", "Amount", "Currency", "Account", "Category", "Merchant", "Notes"}

// Values returns the row in Header order.
func (r LedgerRow) Values() []any {
	return []any{r.TransactionID, r.Date, r.Kind, r.Amount, r.Currency, r.Account, r.Category, r.Merchant, r.Notes}
}

// RowFromTransaction resolves account and category names for display. Transfers show
// "From → To" and never carry a category.
func RowFromTransaction(tx core.Transaction, accounts []core.Account, categories []core.Category) LedgerRow {
	row := LedgerRow{
		TransactionID: tx.ID,
		Date:          tx.Date.Key(),
		Kind:          string(tx.Kind),
		Amount:        core.FormatCents(tx.AmountCents, ""),
		Currency:      core.NormalizeCurrency(tx.Currency),
		Merchant:      tx.Merchant,
		Notes:         tx.Notes,
	}
	if tx.Kind == core.KindTransfer {
		row.Account = core.AccountName(accounts, tx.FromAccountID) + " → " + core.AccountName(accounts, tx.ToAccountID)
		return row
	}
	row.Account = core.AccountName(accounts, tx.AccountID)
	if tx.CategoryID != "" {
		row.Category = core.CategoryName(categories, tx.CategoryID)
	}
	return row
}
