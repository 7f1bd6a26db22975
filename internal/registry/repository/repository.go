// Package repository persists AgentProfiles for the Registry (C3). It
// generalises the teacher repo's internal/registry/repository package —
// which persisted a DNS/trust-root-keyed Agent — into a store keyed by
// agent id, with the stake/reputation fields spec.md §3 requires.
package repository

import (
	"context"
	"errors"

	"github.com/cardanoagents/enhanced-client/internal/registry/model"
)

// ErrNotFound is returned when no profile exists for the requested agent id.
var ErrNotFound = errors.New("agent not found")

// ErrAlreadyExists is returned by Create when the agent id is already taken.
var ErrAlreadyExists = errors.New("agent id already registered")

// Repository is the Registry's storage boundary. Implementations must be
// safe for concurrent use; the service layer still serialises mutations
// through its own guard per spec.md §5, so implementations need not
// duplicate that discipline — they only need per-call atomicity.
type Repository interface {
	Create(ctx context.Context, agent *model.AgentProfile) error
	Get(ctx context.Context, agentID string) (*model.AgentProfile, error)
	Update(ctx context.Context, agent *model.AgentProfile) error
	Delete(ctx context.Context, agentID string) error
	// List returns every profile currently registered, in no particular
	// order; the service layer filters and sorts per find_agents semantics.
	List(ctx context.Context) ([]*model.AgentProfile, error)
}
