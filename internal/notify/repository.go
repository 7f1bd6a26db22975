package notify

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a subscription is not found.
var ErrNotFound = errors.New("notification subscription not found")

// ErrDeadLetterNotFound is returned when a dead letter is not found.
var ErrDeadLetterNotFound = errors.New("notification dead letter not found")

// Repository persists Subscriptions, delivery records, and dead letters
// for events that exhausted retries.
type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	ListBySubject(ctx context.Context, subject string) ([]*Subscription, error)
	ListByEvent(ctx context.Context, eventType string) ([]*Subscription, error)
	Delete(ctx context.Context, id uuid.UUID) error
	RecordDelivery(ctx context.Context, d *Delivery) error

	RecordDeadLetter(ctx context.Context, dl *DeadLetter) error
	ListDeadLetters(ctx context.Context, subscriptionID uuid.UUID) ([]*DeadLetter, error)
	GetDeadLetter(ctx context.Context, id uuid.UUID) (*DeadLetter, error)
	ResolveDeadLetter(ctx context.Context, id uuid.UUID) error
}
