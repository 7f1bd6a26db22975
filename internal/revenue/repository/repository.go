// Package repository persists RevenueShares, distribution reports (for
// per-period-id idempotency), and the system reserve account for the
// Revenue Distributor (C5).
package repository

import (
	"context"
	"errors"

	"github.com/cardanoagents/enhanced-client/internal/money"
	"github.com/cardanoagents/enhanced-client/internal/revenue/model"
)

// ErrNotFound is returned when no share exists for the requested recipient.
var ErrNotFound = errors.New("revenue share not found")

// Repository is the Revenue Distributor's storage boundary.
type Repository interface {
	// GetShare retrieves a recipient's RevenueShare.
	GetShare(ctx context.Context, recipient string) (*model.RevenueShare, error)

	// UpsertShare creates or replaces a recipient's RevenueShare (used to
	// register/adjust participation token counts; never touches
	// AccumulatedRewards directly).
	UpsertShare(ctx context.Context, share *model.RevenueShare) error

	// ListActiveShares returns every RevenueShare with Active = true, the
	// snapshot distribute_revenue works from.
	ListActiveShares(ctx context.Context) ([]*model.RevenueShare, error)

	// GetReport returns the previously-saved report for periodID, or
	// ErrNotFound if the period has not been distributed yet.
	GetReport(ctx context.Context, periodID string) (*model.DistributionReport, error)

	// SaveReport persists a distribution report and, atomically, applies
	// each award to its recipient's AccumulatedRewards plus the residue to
	// the system reserve. Must be called at most once per period_id — the
	// idempotency boundary distribute_revenue relies on.
	SaveReport(ctx context.Context, report *model.DistributionReport) error

	// ClaimAndReset atomically reads a recipient's AccumulatedRewards,
	// resets it to zero, and advances LastClaimSequence. Returns the
	// claimed amount and the new sequence number.
	ClaimAndReset(ctx context.Context, recipient string) (claimed money.Amount, sequence int64, err error)

	// RestoreClaim reverses a failed claim transfer: it restores amount to
	// AccumulatedRewards and rolls LastClaimSequence back to sequence-1,
	// making the claim all-or-nothing.
	RestoreClaim(ctx context.Context, recipient string, amount money.Amount, sequence int64) error

	// Reserve returns the system reserve account's current balance.
	Reserve(ctx context.Context) (money.Amount, error)
}
