// Package service implements the Compliance Gate (C6b): attribute-based
// access control consulted before every state-mutating operation in the
// Registry, Escrow Engine, and Cross-Chain Directory.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cardanoagents/enhanced-client/internal/audit"
	"github.com/cardanoagents/enhanced-client/internal/compliance/model"
	"github.com/cardanoagents/enhanced-client/internal/compliance/repository"
	"github.com/cardanoagents/enhanced-client/internal/hashing"
	"github.com/cardanoagents/enhanced-client/internal/identity"
	"github.com/cardanoagents/enhanced-client/internal/money"
	"github.com/cardanoagents/enhanced-client/internal/threat"
)

// RiskAssessor scores a subject for the risk predicate wired into
// evaluate(). internal/threat's RuleBasedScorer satisfies this; Evaluate
// passes it the caller-supplied RiskContext fields (name, description,
// endpoint, capabilities).
type RiskAssessor interface {
	Score(ctx context.Context, name, description, endpoint string, caps []string) (*threat.Report, error)
}

// Gate implements evaluate() and forget() from spec.md §4.6.
type Gate struct {
	repo   repository.Repository
	tokens *identity.TokenIssuer
	risk   RiskAssessor
	ledger audit.Ledger
	logger *zap.Logger
	rules  []model.PolicyRule
	now    func() time.Time
}

// New builds a Gate. risk may be nil to disable the risk predicate entirely.
func New(repo repository.Repository, tokens *identity.TokenIssuer, risk RiskAssessor, ledger audit.Ledger, rules []model.PolicyRule, logger *zap.Logger) *Gate {
	return &Gate{
		repo:   repo,
		tokens: tokens,
		risk:   risk,
		ledger: ledger,
		logger: logger,
		rules:  rules,
		now:    time.Now,
	}
}

// Bind verifies and stores a subject's off-chain attribute values as hashes
// only, and issues a short-lived attribute-binding token a caller can present
// to subsequent evaluate() calls instead of re-supplying raw attributes.
func (g *Gate) Bind(ctx context.Context, subject string, attributes map[string]string) (string, error) {
	hashes := make(map[string]string, len(attributes))
	for name, value := range attributes {
		h, err := hashing.Hash(map[string]any{"attribute": name, "value": value})
		if err != nil {
			return "", fmt.Errorf("hash attribute %q: %w", name, err)
		}
		hashes[name] = h
	}

	binding := &model.SubjectBinding{
		Subject:         subject,
		AttributeHashes: hashes,
		BoundAt:         g.now(),
	}
	if err := g.repo.Upsert(ctx, binding); err != nil {
		return "", fmt.Errorf("persist subject binding: %w", err)
	}

	token, err := g.tokens.Issue(subject, hashes)
	if err != nil {
		return "", fmt.Errorf("issue attribute binding token: %w", err)
	}

	if _, err := g.ledger.Append(ctx, subject, "compliance.bind", subject, map[string]any{
		"attributes_bound": len(hashes),
	}); err != nil {
		g.logger.Warn("audit append failed for compliance bind", zap.String("subject", subject), zap.Error(err))
	}
	return token, nil
}

// Evaluate is evaluate() from spec.md §4.6. resource/action identify the
// operation being gated (e.g. resource="escrow", action="release_escrow").
// stake is the subject's currently staked amount, used by rules with a
// minimum-stake requirement. riskContext, when non-empty, is forwarded to
// the wired RiskAssessor to compute a require_info signal.
func (g *Gate) Evaluate(ctx context.Context, subject, resource, action string, stake money.Amount, riskContext RiskContext) (*model.EvaluationResult, error) {
	binding, err := g.repo.Get(ctx, subject)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load subject binding: %w", err)
	}
	if binding != nil && binding.Forgotten {
		// fail closed: right-to-erasure means future checks cannot succeed
		return &model.EvaluationResult{
			Decision: model.Deny,
			Reasons:  []string{"subject has exercised the right to erasure"},
		}, nil
	}

	applicable := make([]model.PolicyRule, 0, len(g.rules))
	for _, r := range g.rules {
		if r.AppliesTo(action) {
			applicable = append(applicable, r)
		}
	}
	if len(applicable) == 0 {
		return &model.EvaluationResult{Decision: model.Allow, Reasons: []string{"no policy rule governs this action"}}, nil
	}

	var requireInfo bool
	var reasons []string
	for _, rule := range applicable {
		ok, why := g.matches(binding, rule, stake)
		if !ok {
			return &model.EvaluationResult{
				Decision:    model.Deny,
				MatchedRule: rule.ID,
				Reasons:     []string{why},
			}, nil
		}
		if rule.MaxRiskScore > 0 && g.risk != nil {
			report, err := g.risk.Score(ctx, riskContext.Name, riskContext.Description, riskContext.Endpoint, riskContext.Capabilities)
			if err != nil {
				g.logger.Warn("risk assessment failed, proceeding without it", zap.String("subject", subject), zap.Error(err))
			} else if report.Score >= rule.MaxRiskScore {
				requireInfo = true
				reasons = append(reasons, fmt.Sprintf("risk score %d meets threshold %d for rule %s", report.Score, rule.MaxRiskScore, rule.ID))
			}
		}
	}

	if requireInfo {
		return &model.EvaluationResult{Decision: model.RequireInfo, Reasons: reasons}, nil
	}
	return &model.EvaluationResult{Decision: model.Allow, Reasons: []string{"all applicable rules satisfied"}}, nil
}

// RiskContext carries the fields internal/threat's Scorer needs to assess
// the action requesting evaluation. Any field may be left zero-valued when
// the corresponding rule has no MaxRiskScore predicate.
type RiskContext struct {
	Name         string
	Description  string
	Endpoint     string
	Capabilities []string
}

func (g *Gate) matches(binding *model.SubjectBinding, rule model.PolicyRule, stake money.Amount) (bool, string) {
	if stake < rule.MinimumStake {
		return false, fmt.Sprintf("stake below minimum required by rule %s", rule.ID)
	}
	for _, pred := range rule.RequiredPredicates {
		if !binding.HasAttribute(pred.Attribute, pred.RequiredHash) {
			return false, fmt.Sprintf("missing or mismatched attribute %q required by rule %s", pred.Attribute, rule.ID)
		}
	}
	return true, ""
}

// Forget implements the right-to-erasure: it invalidates the subject's
// attribute hash binding so future evaluate() calls fail closed, and
// records the erasure event on the audit channel (without any attribute
// value, which was never stored).
func (g *Gate) Forget(ctx context.Context, subject string) error {
	if err := g.repo.Forget(ctx, subject); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("forget subject: %w", err)
	}
	if _, err := g.ledger.Append(ctx, subject, "compliance.forget", subject, map[string]any{"erased": true}); err != nil {
		g.logger.Warn("audit append failed for compliance forget", zap.String("subject", subject), zap.Error(err))
	}
	return nil
}
