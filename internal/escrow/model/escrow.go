// Package model holds the Escrow Engine's (C4) domain types: ServiceRequest,
// ExecutionProof, and the escrow state machine of spec.md §4.2. Grounded on
// the status-enum-with-String() style used throughout the pack's escrow/
// milestone types (see other_examples' substrate escrow types).
package model

import (
	"time"

	"github.com/cardanoagents/enhanced-client/internal/money"
)

// Status is the escrow's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInEscrow  Status = "in_escrow"
	StatusExecuting Status = "executing"
	StatusProven    Status = "proven"
	StatusReleased  Status = "released" // terminal
	StatusRefunded  Status = "refunded" // terminal
	StatusDisputed  Status = "disputed"
)

// Terminal reports whether status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusReleased || s == StatusRefunded
}

// PricingModel enumerates how a ServiceRequest's payment is structured.
type PricingModel string

const (
	PricingPerExecution PricingModel = "per_execution"
	PricingSubscription PricingModel = "subscription"
	PricingTiered       PricingModel = "tiered"
)

// ServiceRequest is a buyer's request for an agent service, held under escrow.
type ServiceRequest struct {
	EscrowID         string
	RequesterAddress string
	AgentID          string
	ServiceHash      string // deterministic hash (C1) of the requested task
	PaymentAmount    money.Amount
	Deadline         time.Time
	TaskDescription  string
	Pricing          PricingModel
	Status           Status
	Proof            *ExecutionProof // set once proven
	CreatedAt        time.Time

	// MintTxID is set once C2 confirms the settlement NFT mint. A proven
	// escrow without a MintTxID after a crash is recoverable by retrying
	// the mint submission on restart (spec.md §4.2 failure semantics).
	MintTxID string
}

// ExecutionProof is cryptographic proof an agent completed a service.
type ExecutionProof struct {
	AgentID       string
	ExecutionID   string // unique per agent; replay-protection key
	Timestamp     time.Time
	TaskCompleted bool
	ExecutionTime time.Duration
	Result        map[string]any
	Metadata      map[string]any
	ProofHash     string // canonical hash (C1) of every other field
}

// HashableFields returns the subset of the proof's fields that feed the
// canonical hash computation — everything except ProofHash itself.
func (p *ExecutionProof) HashableFields() map[string]any {
	return map[string]any{
		"agent_id":       p.AgentID,
		"execution_id":   p.ExecutionID,
		"timestamp":      p.Timestamp,
		"task_completed": p.TaskCompleted,
		"execution_time": p.ExecutionTime.Seconds(),
		"result":         p.Result,
		"metadata":       p.Metadata,
	}
}

// Settlement is returned by release_escrow and refund_expired.
type Settlement struct {
	EscrowID string
	Status   Status
	Amount   money.Amount
	MintTxID string
}
