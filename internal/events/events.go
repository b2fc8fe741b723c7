// Package events carries committed ledger activity to notification sinks.
// Publishing happens after commit and never changes a ledger outcome.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/treasurehunt/backend/internal/models"
)

type Type string

const (
	TransactionCompleted Type = "transaction.completed"
	GoldCollected        Type = "gold.collected"
	GoldExchanged        Type = "gold.exchanged"
	MoneySent            Type = "money.sent"
	MoneyReceived        Type = "money.received"
)

type Event struct {
	ID             string              `json:"id"`
	Type           Type                `json:"type"`
	UserID         string              `json:"user_id"`
	CounterpartyID string              `json:"counterparty_id,omitempty"`
	Transaction    *models.Transaction `json:"transaction"`
	OccurredAt     time.Time           `json:"occurred_at"`
}

func New(eventType Type, userID string, txn *models.Transaction) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		UserID:      userID,
		Transaction: txn,
		OccurredAt:  time.Now().UTC(),
	}
}

// WithCounterparty returns a copy of e naming the other user of a send.
func (e Event) WithCounterparty(userID string) Event {
	e.CounterpartyID = userID
	return e
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
