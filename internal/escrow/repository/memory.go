package repository

import (
	"context"
	"sync"

	"github.com/cardanoagents/enhanced-client/internal/escrow/model"
)

// MemoryRepository is an in-process, mutex-guarded ServiceRequest store plus
// the per-agent execution-id replay set.
type MemoryRepository struct {
	mu          sync.RWMutex
	byEscrow    map[string]*model.ServiceRequest
	seenExecIDs map[string]struct{} // key: agentID + "\x00" + executionID
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byEscrow:    make(map[string]*model.ServiceRequest),
		seenExecIDs: make(map[string]struct{}),
	}
}

func replayKey(agentID, executionID string) string {
	return agentID + "\x00" + executionID
}

func (r *MemoryRepository) Create(_ context.Context, escrow *model.ServiceRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *escrow
	r.byEscrow[escrow.EscrowID] = &cp
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, escrowID string) (*model.ServiceRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byEscrow[escrowID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *MemoryRepository) Update(_ context.Context, escrow *model.ServiceRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEscrow[escrow.EscrowID]; !ok {
		return ErrNotFound
	}
	cp := *escrow
	r.byEscrow[escrow.EscrowID] = &cp
	return nil
}

func (r *MemoryRepository) ListProvenWithoutMint(_ context.Context) ([]*model.ServiceRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.ServiceRequest
	for _, e := range r.byEscrow {
		if e.Status == model.StatusProven && e.MintTxID == "" {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) SeenExecution(_ context.Context, agentID, executionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := replayKey(agentID, executionID)
	if _, ok := r.seenExecIDs[key]; ok {
		return true, nil
	}
	r.seenExecIDs[key] = struct{}{}
	return false, nil
}
