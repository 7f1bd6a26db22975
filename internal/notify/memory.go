package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository for tests and single-node
// deployments without Postgres configured.
type MemoryRepository struct {
	mu          sync.Mutex
	subs        map[uuid.UUID]*Subscription
	deliveries  []*Delivery
	deadLetters map[uuid.UUID]*DeadLetter
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		subs:        make(map[uuid.UUID]*Subscription),
		deadLetters: make(map[uuid.UUID]*DeadLetter),
	}
}

func (r *MemoryRepository) Create(_ context.Context, sub *Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub.ID = uuid.New()
	sub.CreatedAt = time.Now().UTC()
	sub.Active = true
	cp := *sub
	r.subs[sub.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *MemoryRepository) ListBySubject(_ context.Context, subject string) ([]*Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Subscription
	for _, s := range r.subs {
		if s.Subject == subject {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListByEvent(_ context.Context, eventType string) ([]*Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Subscription
	for _, s := range r.subs {
		if !s.Active {
			continue
		}
		for _, e := range s.Events {
			if e == eventType {
				cp := *s
				out = append(out, &cp)
				break
			}
		}
	}
	return out, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[id]; !ok {
		return ErrNotFound
	}
	delete(r.subs, id)
	return nil
}

func (r *MemoryRepository) RecordDelivery(_ context.Context, d *Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.ID = uuid.New()
	d.DeliveredAt = time.Now().UTC()
	cp := *d
	r.deliveries = append(r.deliveries, &cp)
	return nil
}

func (r *MemoryRepository) RecordDeadLetter(_ context.Context, dl *DeadLetter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dl.ID = uuid.New()
	dl.FailedAt = time.Now().UTC()
	cp := *dl
	r.deadLetters[dl.ID] = &cp
	return nil
}

func (r *MemoryRepository) ListDeadLetters(_ context.Context, subscriptionID uuid.UUID) ([]*DeadLetter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*DeadLetter
	for _, dl := range r.deadLetters {
		if dl.SubscriptionID == subscriptionID {
			cp := *dl
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) GetDeadLetter(_ context.Context, id uuid.UUID) (*DeadLetter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dl, ok := r.deadLetters[id]
	if !ok {
		return nil, ErrDeadLetterNotFound
	}
	cp := *dl
	return &cp, nil
}

func (r *MemoryRepository) ResolveDeadLetter(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dl, ok := r.deadLetters[id]
	if !ok {
		return ErrDeadLetterNotFound
	}
	dl.Resolved = true
	return nil
}
