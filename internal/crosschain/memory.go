package crosschain

import (
	"context"
	"sync"
)

// MemoryRepository is an in-process Repository for tests and single-node
// deployments without Postgres configured.
type MemoryRepository struct {
	mu    sync.Mutex
	byID  map[string]*CrossChainRegistration
	order []string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*CrossChainRegistration)}
}

func (r *MemoryRepository) Create(_ context.Context, reg *CrossChainRegistration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *reg
	r.byID[reg.CrossChainID] = &cp
	r.order = append(r.order, reg.CrossChainID)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, crossChainID string) (*CrossChainRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.byID[crossChainID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *reg
	return &cp, nil
}

func (r *MemoryRepository) ListByAgent(_ context.Context, agentID string) ([]*CrossChainRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*CrossChainRegistration
	for i := len(r.order) - 1; i >= 0; i-- {
		reg := r.byID[r.order[i]]
		if reg != nil && reg.AgentID == agentID {
			cp := *reg
			out = append(out, &cp)
		}
	}
	return out, nil
}
