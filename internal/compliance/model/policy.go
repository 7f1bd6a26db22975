// Package model holds the ABAC policy and subject types evaluated by the
// Compliance Gate (C6b): predicates over attribute hashes, never raw values.
package model

import "github.com/cardanoagents/enhanced-client/internal/money"

// Decision is the outcome of evaluate(). It never carries attribute values.
type Decision string

const (
	Allow       Decision = "allow"
	Deny        Decision = "deny"
	RequireInfo Decision = "require_info"
)

// Predicate requires that the subject has verified a named attribute whose
// off-chain value hashes to RequiredHash. An empty RequiredHash only checks
// presence — the attribute must have been bound, any value.
type Predicate struct {
	Attribute    string `yaml:"attribute" json:"attribute"`
	RequiredHash string `yaml:"required_hash,omitempty" json:"required_hash,omitempty"`
}

// PolicyRule is one ABAC rule: `(required_attribute_predicates,
// applicable_actions, minimum_stake)` per spec.md §4.6.
type PolicyRule struct {
	ID                 string       `yaml:"id" json:"id"`
	ApplicableActions  []string     `yaml:"applicable_actions" json:"applicable_actions"`
	RequiredPredicates []Predicate  `yaml:"required_predicates" json:"required_predicates"`
	MinimumStake       money.Amount `yaml:"minimum_stake" json:"minimum_stake"`
	// MaxRiskScore, when > 0, routes a match that otherwise passes to
	// RequireInfo if the caller-supplied risk report scored at or above it.
	MaxRiskScore int `yaml:"max_risk_score,omitempty" json:"max_risk_score,omitempty"`
}

// AppliesTo reports whether the rule governs the given action.
func (r PolicyRule) AppliesTo(action string) bool {
	for _, a := range r.ApplicableActions {
		if a == action || a == "*" {
			return true
		}
	}
	return false
}

// EvaluationResult is evaluate()'s return value: a decision plus the
// human-readable reasons that produced it. No attribute values appear here.
type EvaluationResult struct {
	Decision    Decision
	MatchedRule string
	Reasons     []string
}
