package worker

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
	"fintrack/internal/storage"
)

// Ledger is the read side the worker needs to render a sheet row.
type Ledger interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, userID string, f storage.TransactionFilter) ([]core.Transaction, error)
	ListAccounts(ctx context.Context, userID string) ([]core.Account, error)
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
}

// EventSource delivers ledger events. *amqp.Client satisfies it.
type EventSource interface {
	ConsumeTransactionEvents(ctx context.Context, prefetch int, handler amqp.Handler) error
}

// SyncWorker mirrors ledger transactions into a spreadsheet.
type SyncWorker struct {
	ledger    Ledger
	mirror    sheets.Mirror
	batchSize int
	logger    *log.Logger
}

func NewSyncWorker(ledger Ledger, mirror sheets.Mirror, batchSize int, logger *log.Logger) *SyncWorker {
	if batchSize < 1 {
		batchSize = 1
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		ledger:    ledger,
		mirror:    mirror,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// Run consumes events until ctx is cancelled. batchSize bounds unacknowledged deliveries.
func (w *SyncWorker) Run(ctx context.Context, source EventSource) error {
	w.logger.InfoContext(ctx, "Sync worker consuming ledger events", "prefetch", w.batchSize)
	return source.ConsumeTransactionEvents(ctx, w.batchSize, w.HandleTransactionEvent)
}

// HandleTransactionEvent appends the referenced transaction to the mirror. A transaction that
// no longer exists, belongs to another user or is already mirrored is acknowledged without
// writing. Returning an error requeues the event.
func (w *SyncWorker) HandleTransactionEvent(ctx context.Context, evt *amqp.TransactionEvent) error {
	logger := w.logger.With(log.FieldTransactionID, evt.TransactionID, log.FieldUserID, evt.UserID)
	logger.DebugContext(ctx, "Processing ledger event", "type", evt.Type, "source", evt.Source)

	tx, err := w.ledger.GetTransaction(ctx, evt.TransactionID)
	if errors.Is(err, storage.ErrNotFound) {
		logger.WarnContext(ctx, "Transaction from event no longer exists, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}
	if tx.UserID != evt.UserID {
		logger.WarnContext(ctx, "Event user does not own the transaction, skipping", "owner", tx.UserID)
		return nil
	}

	_, err = w.syncTransaction(ctx, tx)
	return err
}

// syncTransaction reports whether a row was written.
func (w *SyncWorker) syncTransaction(ctx context.Context, tx core.Transaction) (bool, error) {
	mirrored, err := w.mirror.HasTransaction(ctx, tx.ID)
	if err != nil {
		return false, fmt.Errorf("check mirror: %w", err)
	}
	if mirrored {
		w.logger.DebugContext(ctx, "Transaction already mirrored", log.FieldTransactionID, tx.ID)
		return false, nil
	}

	accounts, err := w.ledger.ListAccounts(ctx, tx.UserID)
	if err != nil {
		return false, fmt.Errorf("list accounts: %w", err)
	}
	categories, err := w.ledger.ListCategories(ctx, tx.UserID)
	if err != nil {
		return false, fmt.Errorf("list categories: %w", err)
	}

	ref, err := w.mirror.AppendRow(ctx, sheets.RowFromTransaction(tx, accounts, categories))
	if err != nil {
		return false, fmt.Errorf("append to mirror: %w", err)
	}
	w.logger.InfoContext(ctx, "Mirrored transaction",
		log.FieldTransactionID, tx.ID,
		log.FieldUserID, tx.UserID,
		log.FieldAmountCents, tx.AmountCents,
		"ref", ref)
	return true, nil
}

// ReconcileUser mirrors up to batchSize of the user's transactions that are missing from the
// sheet. It recovers from lost events or worker downtime and returns how many rows it wrote.
func (w *SyncWorker) ReconcileUser(ctx context.Context, userID string, f storage.TransactionFilter) (int, error) {
	txs, err := w.ledger.ListTransactions(ctx, userID, f)
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}

	synced, failed := 0, 0
	for _, tx := range txs {
		if synced >= w.batchSize {
			break
		}
		wrote, err := w.syncTransaction(ctx, tx)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror transaction during reconcile",
				log.FieldTransactionID, tx.ID, log.FieldError, err)
			failed++
			continue
		}
		if wrote {
			synced++
		}
	}

	w.logger.InfoContext(ctx, "Reconcile completed",
		log.FieldUserID, userID,
		"scanned", len(txs),
		"synced", synced,
		"errors", failed)
	return synced, nil
}
