// Package service implements the Registry's (C3) business logic:
// register_agent, update_agent_profile, record_execution_outcome,
// deregister_agent, and find_agents. It generalises the teacher repo's
// internal/registry/service.AgentService — originally keyed by a DNS
// trust-root URI — into the stake/reputation-driven model spec.md §4.3
// describes.
package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cardanoagents/enhanced-client/internal/audit"
	compliancemodel "github.com/cardanoagents/enhanced-client/internal/compliance/model"
	complianceservice "github.com/cardanoagents/enhanced-client/internal/compliance/service"
	"github.com/cardanoagents/enhanced-client/internal/coreerr"
	"github.com/cardanoagents/enhanced-client/internal/dns"
	"github.com/cardanoagents/enhanced-client/internal/health"
	"github.com/cardanoagents/enhanced-client/internal/money"
	"github.com/cardanoagents/enhanced-client/internal/registry/model"
	"github.com/cardanoagents/enhanced-client/internal/registry/repository"
)

// ComplianceGate is the Compliance Gate (C6b) boundary the Registry
// consults before every mutating operation, per spec.md §4.6. Satisfied by
// *compliance/service.Gate.
type ComplianceGate interface {
	Evaluate(ctx context.Context, subject, resource, action string, stake money.Amount, risk complianceservice.RiskContext) (*compliancemodel.EvaluationResult, error)
}

// StakeVerifier is the chain-query boundary (spec.md §6) the Registry
// consults, as an optional second opinion, during registration: the
// caller's declared stake is trusted for tier computation, but when a
// verifier is configured the owner address's on-chain balance is also
// checked so a caller can't claim a stake amount it doesn't actually hold.
// Satisfied by *chainquery.CachingClient.
type StakeVerifier interface {
	GetAddressBalance(ctx context.Context, address string) (money.Amount, error)
}

// Registration is returned by RegisterAgent.
type Registration struct {
	AgentID      string
	Tier         model.StakeTier
	StakedAmount money.Amount
	CreatedAt    time.Time
}

// StakeReturn is returned by DeregisterAgent.
type StakeReturn struct {
	AgentID  string
	Returned money.Amount
}

// RegistryService implements the Registry component. A single mutex
// serialises all repository access per spec.md §5's shared-resource
// discipline. RegisterAgent and DeregisterAgent release it before
// consulting the compliance gate and appending to the audit ledger;
// UpdateAgentProfile holds it across the compliance check, and
// RecordExecutionOutcome holds it across the audit append.
type RegistryService struct {
	mu         sync.Mutex
	repo       repository.Repository
	ledger     audit.Ledger
	logger     *zap.Logger
	compliance ComplianceGate // optional; nil disables gating (e.g. in tests)
	stakeCheck StakeVerifier  // optional; nil skips on-chain balance verification

	// now is overridable in tests; defaults to time.Now().
	now func() time.Time
}

// New creates a RegistryService.
func New(repo repository.Repository, ledger audit.Ledger, logger *zap.Logger) *RegistryService {
	return &RegistryService{repo: repo, ledger: ledger, logger: logger, now: time.Now}
}

// WithComplianceGate attaches the Compliance Gate mutating operations must
// pass before taking effect. Mirrors the teacher's UserService.SetFrontendURL
// pattern for post-construction wiring.
func (s *RegistryService) WithComplianceGate(gate ComplianceGate) *RegistryService {
	s.compliance = gate
	return s
}

// WithStakeVerifier attaches the chain-query boundary used to double-check
// a registering owner's on-chain balance. Optional: a nil verifier (the
// default) trusts the declared stake amount outright, which is the only
// option when no chain-query endpoint is configured.
func (s *RegistryService) WithStakeVerifier(verifier StakeVerifier) *RegistryService {
	s.stakeCheck = verifier
	return s
}

// checkCompliance consults the gate for subject/action before a mutation.
// A nil gate (no compliance policy configured) always allows.
func (s *RegistryService) checkCompliance(ctx context.Context, subject, action string, stake money.Amount, capabilities []string) error {
	if s.compliance == nil {
		return nil
	}
	result, err := s.compliance.Evaluate(ctx, subject, "registry", action, stake, complianceservice.RiskContext{
		Name:         subject,
		Capabilities: capabilities,
	})
	if err != nil {
		return err
	}
	switch result.Decision {
	case compliancemodel.Deny:
		return coreerr.New(coreerr.KindComplianceDenied, "compliance gate denied: "+joinReasons(result.Reasons))
	case compliancemodel.RequireInfo:
		return coreerr.New(coreerr.KindComplianceRequireInfo, "compliance gate requires additional information: "+joinReasons(result.Reasons))
	default:
		return nil
	}
}

// verifyOnChainStake confirms the owner address actually holds at least the
// declared stake, when a chain-query boundary is configured. A transport
// failure here is distinct from the address simply being under-funded: the
// former is a suspension-point timeout (spec.md §5's suspension points),
// the latter is InsufficientStake.
func (s *RegistryService) verifyOnChainStake(ctx context.Context, ownerAddress string, stake money.Amount) error {
	if s.stakeCheck == nil {
		return nil
	}
	balance, err := s.stakeCheck.GetAddressBalance(ctx, ownerAddress)
	if err != nil {
		return coreerr.Newf(coreerr.KindTransportFailed, "chain-query balance lookup failed: %v", err)
	}
	if balance < stake {
		return coreerr.Validation(coreerr.KindInsufficientStake, "stake_amount",
			"on-chain balance "+balance.String()+" is below declared stake "+stake.String(),
			"owner address "+ownerAddress+" does not hold the declared stake on-chain")
	}
	return nil
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += "; "
		}
		out += r
	}
	return out
}

// RegisterAgent validates the offered stake against the profile's declared
// capabilities, computes the highest affordable tier, and persists a new
// AgentProfile. Fails with InsufficientStake if even the basic tier's
// requirement exceeds the offered stake.
func (s *RegistryService) RegisterAgent(ctx context.Context, agentID, ownerAddress, metadataURI string, capabilities []string, stake money.Amount, frameworkVersion string) (*Registration, error) {
	if len(capabilities) == 0 {
		return nil, coreerr.New(coreerr.KindEmptyCapabilities, "at least one capability is required at registration")
	}
	if stake.Negative() {
		return nil, coreerr.New(coreerr.KindNegativeAmount, "stake must be non-negative")
	}

	tier, ok := model.ComputeStakeTier(stake, capabilities)
	if !ok {
		required := model.RequiredStake(model.TierBasic, capabilities)
		return nil, coreerr.Validation(coreerr.KindInsufficientStake, "stake_amount",
			"basic tier requires "+required.String(),
			"offered stake "+stake.String()+" is below the basic tier minimum of "+required.String())
	}

	if err := s.checkCompliance(ctx, ownerAddress, "register_agent", stake, capabilities); err != nil {
		return nil, err
	}

	if err := s.verifyOnChainStake(ctx, ownerAddress, stake); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	profile := &model.AgentProfile{
		OwnerAddress:     ownerAddress,
		AgentID:          agentID,
		MetadataURI:      metadataURI,
		StakedAmount:     stake,
		Capabilities:     capabilities,
		FrameworkVersion: frameworkVersion,
		CreatedAt:        now,
	}

	s.mu.Lock()
	err := s.repo.Create(ctx, profile)
	s.mu.Unlock()
	if err != nil {
		if err == repository.ErrAlreadyExists {
			return nil, coreerr.New(coreerr.KindAlreadyRegistered, "agent id already registered")
		}
		return nil, err
	}

	s.appendAudit(ctx, agentID, "register_agent", ownerAddress, map[string]any{
		"tier":  string(tier),
		"stake": stake.String(),
	})
	s.logger.Info("agent registered",
		zap.String("agent_id", agentID),
		zap.String("tier", string(tier)),
		zap.String("stake", stake.String()),
	)

	return &Registration{AgentID: agentID, Tier: tier, StakedAmount: stake, CreatedAt: now}, nil
}

// UpdateAgentProfile applies a caller-supplied partial update. The
// anti-tampering invariant is structural: UpdateRequest has no field capable
// of touching staked_amount, reputation, or execution counters, so there is
// nothing further to reject here beyond existence and basic validation.
func (s *RegistryService) UpdateAgentProfile(ctx context.Context, agentID string, req model.UpdateRequest) (*model.AgentView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := s.repo.Get(ctx, agentID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, coreerr.New(coreerr.KindNotFound, "agent not found")
		}
		return nil, err
	}

	if err := s.checkCompliance(ctx, profile.OwnerAddress, "update_agent_profile", profile.StakedAmount, profile.Capabilities); err != nil {
		return nil, err
	}

	if req.MetadataURI != nil {
		profile.MetadataURI = *req.MetadataURI
	}
	if req.Capabilities != nil {
		if len(req.Capabilities) == 0 {
			return nil, coreerr.New(coreerr.KindEmptyCapabilities, "capability set must remain non-empty")
		}
		profile.Capabilities = req.Capabilities
	}
	if req.FrameworkVersion != nil {
		profile.FrameworkVersion = *req.FrameworkVersion
	}

	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, err
	}
	view := profile.ToView(s.now().UTC())
	return &view, nil
}

// RecordExecutionOutcome is invoked by the Escrow Engine (C4) on proof
// settlement. It atomically increments the execution counters and updates
// the time-decay anchor; the reputation value itself is never stored, only
// recomputed from these counters at query time.
func (s *RegistryService) RecordExecutionOutcome(ctx context.Context, agentID string, success bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := s.repo.Get(ctx, agentID)
	if err != nil {
		if err == repository.ErrNotFound {
			return coreerr.New(coreerr.KindNotFound, "agent not found")
		}
		return err
	}

	profile.TotalExecutions++
	if success {
		profile.SuccessfulExecutions++
	}
	profile.LastExecutionAt = at.UTC()

	if err := s.repo.Update(ctx, profile); err != nil {
		return err
	}

	s.appendAudit(ctx, agentID, "record_execution_outcome", "escrow", map[string]any{
		"success": success,
	})
	return nil
}

// DeregisterAgent removes the agent from the registry and discovery
// indices, returning its staked amount for release.
func (s *RegistryService) DeregisterAgent(ctx context.Context, agentID string) (*StakeReturn, error) {
	s.mu.Lock()
	profile, err := s.repo.Get(ctx, agentID)
	if err != nil {
		s.mu.Unlock()
		if err == repository.ErrNotFound {
			return nil, coreerr.New(coreerr.KindNotFound, "agent not found")
		}
		return nil, err
	}
	s.mu.Unlock()

	if err := s.checkCompliance(ctx, profile.OwnerAddress, "deregister_agent", profile.StakedAmount, profile.Capabilities); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if err := s.repo.Delete(ctx, agentID); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.appendAudit(ctx, agentID, "deregister_agent", profile.OwnerAddress, map[string]any{
		"returned_stake": profile.StakedAmount.String(),
	})
	return &StakeReturn{AgentID: agentID, Returned: profile.StakedAmount}, nil
}

// GetAgent returns a single agent's current view, or NotFound.
func (s *RegistryService) GetAgent(ctx context.Context, agentID string) (*model.AgentView, error) {
	s.mu.Lock()
	profile, err := s.repo.Get(ctx, agentID)
	s.mu.Unlock()
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, coreerr.New(coreerr.KindNotFound, "agent not found")
		}
		return nil, err
	}
	view := profile.ToView(s.now().UTC())
	return &view, nil
}

// Exists reports whether agentID is currently registered, the existence
// check the Cross-Chain Directory (C6a) requires before it will advertise
// an agent on an external network.
func (s *RegistryService) Exists(ctx context.Context, agentID string) (bool, error) {
	s.mu.Lock()
	_, err := s.repo.Get(ctx, agentID)
	s.mu.Unlock()
	if err != nil {
		if err == repository.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FindAgents returns agents whose capability set is a superset of caps and
// whose computed reputation is ≥ minReputation, sorted deterministically and
// capped at maxResults (clamped to 1000 per spec).
func (s *RegistryService) FindAgents(ctx context.Context, caps []string, minReputation float64, maxResults int) ([]model.AgentView, error) {
	if maxResults <= 0 || maxResults > 1000 {
		maxResults = 1000
	}

	s.mu.Lock()
	all, err := s.repo.List(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	at := s.now().UTC()
	matches := make([]model.AgentView, 0, len(all))
	for _, a := range all {
		if !a.HasCapabilities(caps) {
			continue
		}
		view := a.ToView(at)
		if view.Reputation < minReputation {
			continue
		}
		matches = append(matches, view)
	}

	model.SortViews(matches)
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches, nil
}

// MarkLiveness records a successful endpoint health probe as of at,
// advancing LastExecutionAt when the probe is newer than the last recorded
// activity. This keeps the §4.3 time-decay term fresh for an agent that is
// reachable but has not settled an execution recently.
func (s *RegistryService) MarkLiveness(ctx context.Context, agentID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := s.repo.Get(ctx, agentID)
	if err != nil {
		if err == repository.ErrNotFound {
			return coreerr.New(coreerr.KindNotFound, "agent not found")
		}
		return err
	}

	at = at.UTC()
	if !at.After(profile.LastExecutionAt) {
		return nil
	}
	profile.LastExecutionAt = at
	return s.repo.Update(ctx, profile)
}

// ListActiveEndpoints returns every agent's metadata URI for the health
// prober to poll. A metadata URI is treated as probeable only when it is
// itself an http(s) endpoint; content-addressed schemes (ipfs://, ar://)
// have nothing to probe and are skipped.
func (s *RegistryService) ListActiveEndpoints(ctx context.Context) ([]health.EndpointAgent, error) {
	s.mu.Lock()
	all, err := s.repo.List(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]health.EndpointAgent, 0, len(all))
	for _, a := range all {
		if !isHTTPEndpoint(a.MetadataURI) {
			continue
		}
		out = append(out, health.EndpointAgent{AgentID: a.AgentID, Endpoint: a.MetadataURI})
	}
	return out, nil
}

func isHTTPEndpoint(uri string) bool {
	return len(uri) > 7 && (uri[:7] == "http://" || (len(uri) > 8 && uri[:8] == "https://"))
}

// RequestDomainChallenge issues a DNS-01 style ownership challenge for a
// domain an owner claims in an agent's metadata_uri. Verification is a
// separate, asynchronous step (ConfirmDomainChallenge) since the owner
// needs time to publish the TXT record — registration itself never blocks
// on this; it is an optional, operator-driven trust signal layered on top
// of the stake-based tier the registry already computes.
func (s *RegistryService) RequestDomainChallenge(domain string) (*dns.Challenge, error) {
	return dns.NewChallenge(domain)
}

// ConfirmDomainChallenge verifies a previously issued challenge against
// live DNS state.
func (s *RegistryService) ConfirmDomainChallenge(ctx context.Context, challenge *dns.Challenge) error {
	return challenge.Verify(ctx)
}

func (s *RegistryService) appendAudit(ctx context.Context, subject, action, actor string, payload any) {
	if s.ledger == nil {
		return
	}
	if _, err := s.ledger.Append(ctx, subject, action, actor, payload); err != nil {
		s.logger.Warn("audit append failed",
			zap.String("subject", subject),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
