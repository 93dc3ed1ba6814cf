// Package services orchestrates the ledger engines, storage and event publishing.
package services

import (
	"context"
	"errors"

	"fintrack/internal/amqp"
)

// ErrInvalidInput wraps entity validation failures so transports can answer 400.
var ErrInvalidInput = errors.New("invalid input")

// Publisher announces ledger writes. *amqp.Client satisfies it.
type Publisher interface {
	PublishTransactionEvent(ctx context.Context, event *amqp.TransactionEvent) error
}

// Invalidator drops cached read models for a user after a ledger write.
type Invalidator interface {
	InvalidateUser(userID string)
}
