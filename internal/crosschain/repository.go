package crosschain

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no registration exists for a given
// cross_chain_id.
var ErrNotFound = errors.New("cross-chain registration not found")

// Repository is the Cross-Chain Directory's storage boundary.
type Repository interface {
	// Create persists a new CrossChainRegistration.
	Create(ctx context.Context, reg *CrossChainRegistration) error

	// Get retrieves a registration by its cross_chain_id.
	Get(ctx context.Context, crossChainID string) (*CrossChainRegistration, error)

	// ListByAgent returns every registration an agent has advertised,
	// newest first.
	ListByAgent(ctx context.Context, agentID string) ([]*CrossChainRegistration, error)
}
