package service_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cardanoagents/enhanced-client/internal/audit"
	"github.com/cardanoagents/enhanced-client/internal/compliance/model"
	"github.com/cardanoagents/enhanced-client/internal/compliance/repository"
	"github.com/cardanoagents/enhanced-client/internal/compliance/service"
	"github.com/cardanoagents/enhanced-client/internal/identity"
	"github.com/cardanoagents/enhanced-client/internal/money"
)

func newTestGate(t *testing.T, rules []model.PolicyRule) *service.Gate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	issuer := identity.NewTokenIssuer(key, "https://compliance.test", time.Hour)
	return service.New(repository.NewMemoryRepository(), issuer, nil, audit.New(), rules, zap.NewNop())
}

func TestEvaluate_allowsWhenNoRuleApplies(t *testing.T) {
	gate := newTestGate(t, nil)
	result, err := gate.Evaluate(context.Background(), "subject-1", "escrow", "release_escrow", money.FromMicros(0), service.RiskContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision != model.Allow {
		t.Fatalf("expected Allow, got %v", result.Decision)
	}
}

func TestEvaluate_deniesOnMissingAttribute(t *testing.T) {
	rules := []model.PolicyRule{
		{
			ID:                 "kyc-required",
			ApplicableActions:  []string{"release_escrow"},
			RequiredPredicates: []model.Predicate{{Attribute: "kyc_tier"}},
		},
	}
	gate := newTestGate(t, rules)
	ctx := context.Background()

	result, err := gate.Evaluate(ctx, "subject-2", "escrow", "release_escrow", money.FromMicros(0), service.RiskContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision != model.Deny {
		t.Fatalf("expected Deny for unbound subject, got %v", result.Decision)
	}
}

func TestBindThenEvaluate_allowsWhenAttributeMatches(t *testing.T) {
	rules := []model.PolicyRule{
		{
			ID:                 "kyc-required",
			ApplicableActions:  []string{"release_escrow"},
			RequiredPredicates: []model.Predicate{{Attribute: "kyc_tier"}},
		},
	}
	gate := newTestGate(t, rules)
	ctx := context.Background()

	token, err := gate.Bind(ctx, "subject-3", map[string]string{"kyc_tier": "gold"})
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty binding token")
	}

	result, err := gate.Evaluate(ctx, "subject-3", "escrow", "release_escrow", money.FromMicros(0), service.RiskContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision != model.Allow {
		t.Fatalf("expected Allow after binding, got %v: %v", result.Decision, result.Reasons)
	}
}

func TestEvaluate_deniesBelowMinimumStake(t *testing.T) {
	rules := []model.PolicyRule{
		{
			ID:                "min-stake",
			ApplicableActions: []string{"register_agent"},
			MinimumStake:      money.FromMicros(1_000_000_000),
		},
	}
	gate := newTestGate(t, rules)
	ctx := context.Background()

	result, err := gate.Evaluate(ctx, "subject-4", "registry", "register_agent", money.FromMicros(500_000_000), service.RiskContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision != model.Deny {
		t.Fatalf("expected Deny for insufficient stake, got %v", result.Decision)
	}
}

func TestForget_failsClosedOnSubsequentEvaluate(t *testing.T) {
	gate := newTestGate(t, nil)
	ctx := context.Background()

	if _, err := gate.Bind(ctx, "subject-5", map[string]string{"jurisdiction": "EU"}); err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if err := gate.Forget(ctx, "subject-5"); err != nil {
		t.Fatalf("forget failed: %v", err)
	}

	result, err := gate.Evaluate(ctx, "subject-5", "registry", "register_agent", money.FromMicros(0), service.RiskContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision != model.Deny {
		t.Fatalf("expected Deny after forget, got %v", result.Decision)
	}
}
