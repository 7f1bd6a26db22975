// Package model holds the Registry's (C3) domain types: AgentProfile, its
// derived StakeTier, and the request/view shapes the service layer accepts
// and returns.
package model

import (
	"math"
	"sort"
	"time"

	"github.com/cardanoagents/enhanced-client/internal/money"
)

// StakeTier is a function of staked amount and declared capabilities,
// recomputed on demand rather than stored.
type StakeTier string

const (
	TierBasic        StakeTier = "basic"
	TierStandard     StakeTier = "standard"
	TierProfessional StakeTier = "professional"
	TierEnterprise   StakeTier = "enterprise"
)

// tierBaseStake lists tiers from lowest to highest, each with its minimum
// base stake before capability multipliers are applied.
var tierBaseStake = []struct {
	tier StakeTier
	base int64 // whole units; converted to micro-units via money.FromMicros below
}{
	{TierBasic, 100},
	{TierStandard, 500},
	{TierProfessional, 2_000},
	{TierEnterprise, 10_000},
}

// capabilityMultipliers maps well-known capability names to their stake
// multiplier. Any capability absent from this table uses the default 1.0.
var capabilityMultipliers = map[string]float64{
	"blockchain":       2.0,
	"smart_contracts":  1.8,
	"ai_analysis":      1.5,
	"web_automation":   1.2,
}

const defaultMultiplier = 1.0

// CapabilityMultiplier returns the stake multiplier for a single capability.
func CapabilityMultiplier(capability string) float64 {
	if m, ok := capabilityMultipliers[capability]; ok {
		return m
	}
	return defaultMultiplier
}

// MaxMultiplier returns the largest multiplier across a set of capabilities.
// An empty set yields the default multiplier.
func MaxMultiplier(capabilities []string) float64 {
	max := defaultMultiplier
	for _, c := range capabilities {
		if m := CapabilityMultiplier(c); m > max {
			max = m
		}
	}
	return max
}

// RequiredStake returns the minimum stake needed to register at tier with
// the given capabilities: base_minimum(tier) * max(multipliers).
func RequiredStake(tier StakeTier, capabilities []string) money.Amount {
	mult := MaxMultiplier(capabilities)
	for _, row := range tierBaseStake {
		if row.tier == tier {
			units := float64(row.base) * mult
			return money.FromMicros(int64(units * float64(1_000_000)))
		}
	}
	return 0
}

// ComputeStakeTier returns the highest tier whose required stake is ≤ the
// offered stake, or ("", false) if even the basic tier's requirement exceeds
// it.
func ComputeStakeTier(offered money.Amount, capabilities []string) (StakeTier, bool) {
	best := StakeTier("")
	found := false
	for _, row := range tierBaseStake {
		req := RequiredStake(row.tier, capabilities)
		if req <= offered {
			best = row.tier
			found = true
		}
	}
	return best, found
}

// AgentProfile is a registered autonomous agent.
type AgentProfile struct {
	OwnerAddress         string
	AgentID              string
	MetadataURI          string
	StakedAmount         money.Amount
	Capabilities         []string // non-empty at registration
	TotalExecutions      int64
	SuccessfulExecutions int64
	FrameworkVersion     string
	CreatedAt            time.Time

	// LastExecutionAt feeds the time-decay term of the reputation formula.
	// Zero value means no executions recorded yet (decay term is 1.0).
	LastExecutionAt time.Time
}

// Tier recomputes this profile's stake tier on demand.
func (a *AgentProfile) Tier() StakeTier {
	tier, ok := ComputeStakeTier(a.StakedAmount, a.Capabilities)
	if !ok {
		return TierBasic
	}
	return tier
}

// Reputation computes the final reputation score per the base/decay/bonus
// formula, evaluated at the given instant (normally time.Now().UTC()).
func (a *AgentProfile) Reputation(at time.Time) float64 {
	total := a.TotalExecutions
	if total < 1 {
		total = 1
	}
	base := float64(a.SuccessfulExecutions) / float64(total)

	decay := 1.0
	if !a.LastExecutionAt.IsZero() {
		days := at.Sub(a.LastExecutionAt).Hours() / 24
		if days < 0 {
			days = 0
		}
		decay = math.Pow(0.95, days)
	}

	bonus := float64(a.StakedAmount.Micros()) / 1_000_000 / 1000
	if bonus > 0.1 {
		bonus = 0.1
	}

	final := base*decay + bonus
	if final > 1.0 {
		final = 1.0
	}
	return final
}

// HasCapabilities reports whether a's declared capabilities are a superset
// of requested.
func (a *AgentProfile) HasCapabilities(requested []string) bool {
	have := make(map[string]struct{}, len(a.Capabilities))
	for _, c := range a.Capabilities {
		have[c] = struct{}{}
	}
	for _, want := range requested {
		if _, ok := have[want]; !ok {
			return false
		}
	}
	return true
}

// AgentView is the read-only projection returned by find_agents and
// get_agent: derived fields (tier, reputation) are computed, not stored.
type AgentView struct {
	AgentID              string
	OwnerAddress         string
	MetadataURI          string
	StakedAmount         money.Amount
	Capabilities         []string
	Tier                 StakeTier
	Reputation           float64
	TotalExecutions      int64
	SuccessfulExecutions int64
	FrameworkVersion     string
	CreatedAt            time.Time
}

// ToView projects a profile into its AgentView at evaluation time `at`.
func (a *AgentProfile) ToView(at time.Time) AgentView {
	return AgentView{
		AgentID:              a.AgentID,
		OwnerAddress:         a.OwnerAddress,
		MetadataURI:          a.MetadataURI,
		StakedAmount:         a.StakedAmount,
		Capabilities:         append([]string(nil), a.Capabilities...),
		Tier:                 a.Tier(),
		Reputation:           a.Reputation(at),
		TotalExecutions:      a.TotalExecutions,
		SuccessfulExecutions: a.SuccessfulExecutions,
		FrameworkVersion:     a.FrameworkVersion,
		CreatedAt:            a.CreatedAt,
	}
}

// SortViews orders views by (reputation desc, stake desc, created-at asc) —
// the deterministic tie-break order find_agents must honor.
func SortViews(views []AgentView) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.Reputation != b.Reputation {
			return a.Reputation > b.Reputation
		}
		if a.StakedAmount != b.StakedAmount {
			return a.StakedAmount > b.StakedAmount
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// UpdateRequest carries the caller-supplied fields update_agent_profile may
// change. Fields left nil are untouched. The anti-tampering fields
// (staked amount, reputation, execution counters) are intentionally absent
// from this type — they cannot be set through this path at all.
type UpdateRequest struct {
	MetadataURI      *string
	Capabilities     []string
	FrameworkVersion *string
}
