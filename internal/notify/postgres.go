package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository persists Subscriptions and Deliveries to the
// `notification_subscriptions` and `notification_deliveries` tables.
// Grounded on internal/webhooks/repository.go's Repository, generalised
// from a user_id-keyed subscription to a subject(address)-keyed one.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, sub *Subscription) error {
	sub.ID = uuid.New()
	sub.CreatedAt = time.Now().UTC()
	sub.Active = true

	_, err := r.db.Exec(ctx, `
		INSERT INTO notification_subscriptions (id, subject, url, events, secret, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.Subject, sub.URL, sub.Events, sub.Secret, sub.Active, sub.CreatedAt,
	)
	return err
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	var sub Subscription
	err := r.db.QueryRow(ctx, `
		SELECT id, subject, url, events, secret, active, created_at
		FROM notification_subscriptions WHERE id = $1`, id,
	).Scan(&sub.ID, &sub.Subject, &sub.URL, &sub.Events, &sub.Secret, &sub.Active, &sub.CreatedAt)
	if err != nil {
		return nil, ErrNotFound
	}
	return &sub, nil
}

func (r *PostgresRepository) ListBySubject(ctx context.Context, subject string) ([]*Subscription, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, subject, url, events, secret, active, created_at
		FROM notification_subscriptions WHERE subject = $1 ORDER BY created_at DESC`, subject,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ID, &sub.Subject, &sub.URL, &sub.Events, &sub.Secret, &sub.Active, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, &sub)
	}
	return subs, rows.Err()
}

func (r *PostgresRepository) ListByEvent(ctx context.Context, eventType string) ([]*Subscription, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, subject, url, events, secret, active, created_at
		FROM notification_subscriptions
		WHERE active = true AND $1 = ANY(events)
		ORDER BY created_at`, eventType,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ID, &sub.Subject, &sub.URL, &sub.Events, &sub.Secret, &sub.Active, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, &sub)
	}
	return subs, rows.Err()
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM notification_subscriptions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) RecordDelivery(ctx context.Context, d *Delivery) error {
	d.ID = uuid.New()
	d.DeliveredAt = time.Now().UTC()

	payload, _ := json.Marshal(map[string]string{})
	_, err := r.db.Exec(ctx, `
		INSERT INTO notification_deliveries (id, subscription_id, event_type, payload, status_code, attempt, success, error_message, delivered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.SubscriptionID, d.EventType, payload,
		d.StatusCode, d.Attempt, d.Success, d.ErrorMessage, d.DeliveredAt,
	)
	return err
}

func (r *PostgresRepository) RecordDeadLetter(ctx context.Context, dl *DeadLetter) error {
	dl.ID = uuid.New()
	dl.FailedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx, `
		INSERT INTO notification_dead_letters (id, subscription_id, event_type, event_body, attempts, last_error, failed_at, resolved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		dl.ID, dl.SubscriptionID, dl.EventType, dl.EventBody, dl.Attempts, dl.LastError, dl.FailedAt, dl.Resolved,
	)
	return err
}

func (r *PostgresRepository) ListDeadLetters(ctx context.Context, subscriptionID uuid.UUID) ([]*DeadLetter, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, subscription_id, event_type, event_body, attempts, last_error, failed_at, resolved
		FROM notification_dead_letters WHERE subscription_id = $1 ORDER BY failed_at DESC`, subscriptionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*DeadLetter
	for rows.Next() {
		var dl DeadLetter
		if err := rows.Scan(&dl.ID, &dl.SubscriptionID, &dl.EventType, &dl.EventBody, &dl.Attempts, &dl.LastError, &dl.FailedAt, &dl.Resolved); err != nil {
			return nil, err
		}
		out = append(out, &dl)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetDeadLetter(ctx context.Context, id uuid.UUID) (*DeadLetter, error) {
	var dl DeadLetter
	err := r.db.QueryRow(ctx, `
		SELECT id, subscription_id, event_type, event_body, attempts, last_error, failed_at, resolved
		FROM notification_dead_letters WHERE id = $1`, id,
	).Scan(&dl.ID, &dl.SubscriptionID, &dl.EventType, &dl.EventBody, &dl.Attempts, &dl.LastError, &dl.FailedAt, &dl.Resolved)
	if err != nil {
		return nil, ErrDeadLetterNotFound
	}
	return &dl, nil
}

func (r *PostgresRepository) ResolveDeadLetter(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE notification_dead_letters SET resolved = true WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDeadLetterNotFound
	}
	return nil
}
