package repository

import (
	"context"
	"sync"

	"github.com/cardanoagents/enhanced-client/internal/registry/model"
)

// MemoryRepository is an in-process, mutex-guarded AgentProfile store. It is
// the primary deployment target per spec.md §5's single-process scheduling
// model; PostgresRepository exists for deployments that need durability
// across restarts.
type MemoryRepository struct {
	mu      sync.RWMutex
	byAgent map[string]*model.AgentProfile
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byAgent: make(map[string]*model.AgentProfile)}
}

func (r *MemoryRepository) Create(_ context.Context, agent *model.AgentProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byAgent[agent.AgentID]; exists {
		return ErrAlreadyExists
	}
	cp := *agent
	r.byAgent[agent.AgentID] = &cp
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, agentID string) (*model.AgentProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byAgent[agentID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) Update(_ context.Context, agent *model.AgentProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byAgent[agent.AgentID]; !ok {
		return ErrNotFound
	}
	cp := *agent
	r.byAgent[agent.AgentID] = &cp
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byAgent[agentID]; !ok {
		return ErrNotFound
	}
	delete(r.byAgent, agentID)
	return nil
}

func (r *MemoryRepository) List(_ context.Context) ([]*model.AgentProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.AgentProfile, 0, len(r.byAgent))
	for _, a := range r.byAgent {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}
