package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// LedgerService validates and persists user input, then publishes change events.
type LedgerService struct {
	store       storage.Repository
	publisher   Publisher
	invalidator Invalidator
	logger      *log.Logger
	events      *log.StructuredLogger
	newID       func() string
}

// NewLedgerService wires the service. publisher and invalidator may be nil.
func NewLedgerService(store storage.Repository, publisher Publisher, invalidator Invalidator, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentLedger)
	return &LedgerService{
		store:       store,
		publisher:   publisher,
		invalidator: invalidator,
		logger:      logger,
		events:      log.NewStructuredLogger(logger),
		newID:       uuid.NewString,
	}
}

// CreateTransaction saves a transaction with its splits and publishes a created event.
// Publishing failures are logged and never fail the write.
func (s *LedgerService) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.Currency = core.NormalizeCurrency(tx.Currency)
	if tx.ID == "" {
		tx.ID = s.newID()
	}
	for i := range tx.Splits {
		if tx.Splits[i].ID == "" {
			tx.Splits[i].ID = s.newID()
		}
		tx.Splits[i].TransactionID = tx.ID
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.events.LogTransactionCreated(ctx, tx.UserID, tx.ID, string(tx.Kind), tx.AmountCents, tx.Currency)

	s.publish(ctx, tx.UserID, []string{tx.ID}, amqp.SourceAPI)
	s.invalidate(tx.UserID)
	return tx, nil
}

func (s *LedgerService) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.Currency = core.NormalizeCurrency(a.Currency)
	if a.ID == "" {
		a.ID = s.newID()
	}
	if err := a.Validate(); err != nil {
		return core.Account{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return core.Account{}, fmt.Errorf("save account: %w", err)
	}
	s.invalidate(a.UserID)
	return a, nil
}

func (s *LedgerService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.ID == "" {
		c.ID = s.newID()
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}
	s.invalidate(c.UserID)
	return c, nil
}

// CreateRecurringRule stores an active rule whose first run is its start date unless a
// later NextRun is given.
func (s *LedgerService) CreateRecurringRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	r.Currency = core.NormalizeCurrency(r.Currency)
	if r.ID == "" {
		r.ID = s.newID()
	}
	if r.NextRun.IsEmpty() || r.NextRun.Before(r.StartDate) {
		r.NextRun = r.StartDate
	}
	r.Active = true
	if err := r.Validate(); err != nil {
		return core.RecurringRule{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.store.CreateRecurringRule(ctx, r); err != nil {
		return core.RecurringRule{}, fmt.Errorf("save recurring rule: %w", err)
	}
	s.logger.InfoContext(ctx, "Recurring rule created",
		log.NewFields().WithUser(r.UserID).WithRule(r.ID, string(r.Cadence)).ToSlice()...)
	return r, nil
}

func (s *LedgerService) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.Currency = core.NormalizeCurrency(b.Currency)
	if b.ID == "" {
		b.ID = s.newID()
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.store.CreateBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}
	s.invalidate(b.UserID)
	return b, nil
}

func (s *LedgerService) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	g.Currency = core.NormalizeCurrency(g.Currency)
	if g.ID == "" {
		g.ID = s.newID()
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.store.CreateGoal(ctx, g); err != nil {
		return core.Goal{}, fmt.Errorf("save goal: %w", err)
	}
	s.invalidate(g.UserID)
	return g, nil
}

func (s *LedgerService) publish(ctx context.Context, userID string, ids []string, source string) {
	publish(ctx, s.publisher, s.logger, userID, ids, source)
}

func (s *LedgerService) invalidate(userID string) {
	if s.invalidator != nil {
		s.invalidator.InvalidateUser(userID)
	}
}

// publish sends one created event per id. It only logs failures.
func publish(ctx context.Context, p Publisher, logger *log.Logger, userID string, ids []string, source string) {
	if p == nil {
		logger.DebugContext(ctx, "No event publisher configured, skipping ledger events", log.FieldUserID, userID, "count", len(ids))
		return
	}
	for _, id := range ids {
		// The transaction is stored either way; the sync worker's reconcile pass picks it up.
		if err := p.PublishTransactionEvent(ctx, amqp.NewTransactionCreated(userID, id, source)); err != nil {
			logger.ErrorContext(ctx, "Failed to publish ledger event",
				log.FieldUserID, userID,
				log.FieldTransactionID, id,
				log.FieldError, err)
		}
	}
}
