package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/recurring"
	"fintrack/internal/storage"
)

// RecurringStore is what materialization needs from persistence.
type RecurringStore interface {
	recurring.Store
	ListUsersWithDueRules(ctx context.Context, today core.Date) ([]string, error)
}

var _ RecurringStore = (storage.Repository)(nil)

// RecurringProcessor materializes due recurring rules and announces the new transactions.
type RecurringProcessor struct {
	store        RecurringStore
	materializer *recurring.Materializer
	publisher    Publisher
	invalidator  Invalidator
	logger       *log.Logger
	events       *log.StructuredLogger
	group        singleflight.Group
}

// ProcessSummary reports one ProcessAll pass.
type ProcessSummary struct {
	Users    int `json:"users"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`
}

func NewRecurringProcessor(store RecurringStore, maxPerRule int, publisher Publisher, invalidator Invalidator, logger *log.Logger) *RecurringProcessor {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentRecurring)
	return &RecurringProcessor{
		store:        store,
		materializer: recurring.NewMaterializer(store, maxPerRule, logger),
		publisher:    publisher,
		invalidator:  invalidator,
		logger:       logger,
		events:       log.NewStructuredLogger(logger),
	}
}

// MaterializeUser runs one catch-up for userID. Concurrent calls for the same user and day
// share a single run. A nil result means no rule was due.
func (p *RecurringProcessor) MaterializeUser(ctx context.Context, userID string, today core.Date) (*recurring.Result, error) {
	v, err, shared := p.group.Do(userID+"|"+today.Key(), func() (any, error) {
		res, err := p.materializer.Materialize(ctx, userID, today)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return (*recurring.Result)(nil), nil
		}
		p.events.LogMaterialized(ctx, userID, res.Inserted, res.Updated)
		if len(res.Transactions) > 0 {
			ids := make([]string, len(res.Transactions))
			for i, tx := range res.Transactions {
				ids[i] = tx.ID
			}
			publish(ctx, p.publisher, p.logger, userID, ids, amqp.SourceRecurring)
			if p.invalidator != nil {
				p.invalidator.InvalidateUser(userID)
			}
		}
		return res, nil
	})
	if err != nil {
		return nil, fmt.Errorf("materialize recurring rules for %s: %w", userID, err)
	}
	if shared {
		p.logger.DebugContext(ctx, "Joined in-flight materialization", log.FieldUserID, userID)
	}
	return v.(*recurring.Result), nil
}

// ProcessAll materializes every user with due rules. A failing user is logged and the pass
// continues; the joined errors are returned with the summary.
func (p *RecurringProcessor) ProcessAll(ctx context.Context, today core.Date) (ProcessSummary, error) {
	users, err := p.store.ListUsersWithDueRules(ctx, today)
	if err != nil {
		return ProcessSummary{}, fmt.Errorf("list users with due rules: %w", err)
	}

	summary := ProcessSummary{Users: len(users)}
	var errs []error
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := p.MaterializeUser(ctx, userID, today)
		if err != nil {
			p.events.LogError(ctx, "Recurring materialization failed", err, log.ComponentRecurring, log.OpMaterialize,
				log.NewFields().WithUser(userID))
			summary.Failed++
			errs = append(errs, err)
			continue
		}
		if res != nil {
			summary.Inserted += res.Inserted
			summary.Updated += res.Updated
		}
	}

	p.logger.InfoContext(ctx, "Recurring pass complete",
		"date", today.Key(),
		"users", summary.Users,
		log.FieldInserted, summary.Inserted,
		log.FieldUpdated, summary.Updated,
		"failed", summary.Failed)
	return summary, errors.Join(errs...)
}

// RecurringJob adapts ProcessAll to the scheduler.
type RecurringJob struct {
	Processor *RecurringProcessor
	Today     func() core.Date
}

func (j RecurringJob) Name() string { return "recurring-materialize" }

func (j RecurringJob) Run(ctx context.Context) error {
	today := core.Today
	if j.Today != nil {
		today = j.Today
	}
	_, err := j.Processor.ProcessAll(ctx, today())
	return err
}
