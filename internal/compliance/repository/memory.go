package repository

import (
	"context"
	"sync"
	"time"

	"github.com/cardanoagents/enhanced-client/internal/compliance/model"
)

// MemoryRepository is an in-process Repository backed by a map, used in
// tests and single-node deployments without Postgres configured.
type MemoryRepository struct {
	mu       sync.RWMutex
	bindings map[string]*model.SubjectBinding
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{bindings: make(map[string]*model.SubjectBinding)}
}

func (r *MemoryRepository) Upsert(_ context.Context, b *model.SubjectBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	cp.AttributeHashes = make(map[string]string, len(b.AttributeHashes))
	for k, v := range b.AttributeHashes {
		cp.AttributeHashes[k] = v
	}
	r.bindings[b.Subject] = &cp
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, subject string) (*model.SubjectBinding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[subject]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *MemoryRepository) Forget(_ context.Context, subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[subject]
	if !ok {
		return ErrNotFound
	}
	b.AttributeHashes = nil
	b.Forgotten = true
	b.BoundAt = time.Time{}
	return nil
}
