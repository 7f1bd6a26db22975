// Package repository persists ServiceRequests and the execution-id replay
// table for the Escrow Engine (C4).
package repository

import (
	"context"
	"errors"

	"github.com/cardanoagents/enhanced-client/internal/escrow/model"
)

// ErrNotFound is returned when no escrow exists for the requested id.
var ErrNotFound = errors.New("escrow not found")

// Repository is the Escrow Engine's storage boundary.
type Repository interface {
	Create(ctx context.Context, escrow *model.ServiceRequest) error
	Get(ctx context.Context, escrowID string) (*model.ServiceRequest, error)
	Update(ctx context.Context, escrow *model.ServiceRequest) error
	// ListProvenWithoutMint returns escrows stuck in `proven` without a
	// recorded mint transaction id — the crash-recovery scan spec.md §4.2
	// requires on restart.
	ListProvenWithoutMint(ctx context.Context) ([]*model.ServiceRequest, error)

	// SeenExecution reports whether executionID has already been used by
	// agentID (replay-protection table), and if not, atomically records it.
	// Returns true if the execution id was already present.
	SeenExecution(ctx context.Context, agentID, executionID string) (alreadySeen bool, err error)
}
