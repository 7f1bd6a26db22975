// Package model holds the Revenue Distributor's (C5) domain types:
// RevenueShare, DistributionReport, and ClaimResult, per spec.md §4.4.
package model

import (
	"time"

	"github.com/cardanoagents/enhanced-client/internal/money"
)

// RevenueShare is a participant's position in the revenue pool.
type RevenueShare struct {
	RecipientAddress    string
	ParticipationTokens uint64
	AccumulatedRewards  money.Amount
	LastClaimSequence   int64
	ContributionScore   int64
	Active              bool
}

// RecipientAward is one recipient's award in a distribution.
type RecipientAward struct {
	RecipientAddress string
	Award            money.Amount
}

// DistributionReport is returned by distribute_revenue, per spec.md §4.4
// step 5: `{period_id, total, participants, per-recipient award, reserve
// residue}`.
type DistributionReport struct {
	PeriodID       string
	Total          money.Amount
	Participants   int
	Awards         []RecipientAward
	ReserveResidue money.Amount
	DistributedAt  time.Time
	// EmptyPool is true when the participation-token pool summed to zero;
	// the distribution was a no-op per spec.md §4.4 step 1.
	EmptyPool bool
}

// ClaimResult is returned by claim_rewards.
type ClaimResult struct {
	RecipientAddress string
	ClaimedAmount    money.Amount
	ClaimSequence    int64
}
