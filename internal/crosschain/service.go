package crosschain

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cardanoagents/enhanced-client/internal/audit"
	compliancemodel "github.com/cardanoagents/enhanced-client/internal/compliance/model"
	complianceservice "github.com/cardanoagents/enhanced-client/internal/compliance/service"
	"github.com/cardanoagents/enhanced-client/internal/coreerr"
	"github.com/cardanoagents/enhanced-client/internal/hashing"
	"github.com/cardanoagents/enhanced-client/internal/issuer"
	"github.com/cardanoagents/enhanced-client/internal/money"
	"github.com/cardanoagents/enhanced-client/pkg/assetname"
	"github.com/cardanoagents/enhanced-client/pkg/cip25"
)

// AgentExistenceChecker is the Registry (C3) boundary: register_cross_chain_service
// requires the agent to exist locally before it will advertise it elsewhere.
type AgentExistenceChecker interface {
	Exists(ctx context.Context, agentID string) (bool, error)
}

// ComplianceGate is the Compliance Gate (C6b) boundary, identical in shape
// to the one the Registry and Escrow Engine consult.
type ComplianceGate interface {
	Evaluate(ctx context.Context, subject, resource, action string, stake money.Amount, risk complianceservice.RiskContext) (*compliancemodel.EvaluationResult, error)
}

// Config holds the policy id per-network registration tokens mint under.
type Config struct {
	PolicyID string
}

// Service implements the Cross-Chain Directory component.
// register_cross_chain_service does not itself serialise mutations behind
// a mutex: each registration is independent (a fresh cross_chain_id), so
// there is no shared index to guard beyond what Repository already
// provides per-call atomicity for.
type Service struct {
	repo       Repository
	agents     AgentExistenceChecker
	gateway    issuer.Gateway
	compliance ComplianceGate
	ledger     audit.Ledger
	logger     *zap.Logger
	cfg        Config

	now func() time.Time
}

func New(repo Repository, agents AgentExistenceChecker, gateway issuer.Gateway, ledger audit.Ledger, logger *zap.Logger, cfg Config) *Service {
	return &Service{
		repo:    repo,
		agents:  agents,
		gateway: gateway,
		ledger:  ledger,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// WithComplianceGate attaches the gate consulted before
// register_cross_chain_service.
func (s *Service) WithComplianceGate(gate ComplianceGate) *Service {
	s.compliance = gate
	return s
}

// RegisterCrossChainService implements register_cross_chain_service
// (spec.md §4.5): validates each requested network against the fixed
// enumeration, confirms the agent exists locally, derives
// `cross_chain_id = H(agent_id || sorted_networks || timestamp)` via C1,
// and mints one per-network registration token through C2 on the local
// chain — the directory only advertises the agent; it never executes a
// remote registration itself.
func (s *Service) RegisterCrossChainService(ctx context.Context, agentID string, networks []Network) (*CrossChainRegistration, error) {
	if agentID == "" {
		return nil, coreerr.Validation(coreerr.KindInvalidField, "agent_id", "must not be empty", "agent id must not be empty")
	}
	if len(networks) == 0 {
		return nil, coreerr.Validation(coreerr.KindEmptyCapabilities, "networks", "must list at least one network", "at least one network must be requested")
	}

	sorted := make([]Network, len(networks))
	copy(sorted, networks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	seen := make(map[Network]bool, len(sorted))
	for _, n := range sorted {
		if !ValidNetworks[n] {
			return nil, coreerr.Validation(coreerr.KindInvalidField, "networks", "must belong to the fixed network enumeration", fmt.Sprintf("unsupported network %q", n))
		}
		if seen[n] {
			return nil, coreerr.Validation(coreerr.KindInvalidField, "networks", "must not repeat", fmt.Sprintf("network %q requested more than once", n))
		}
		seen[n] = true
	}

	exists, err := s.agents.Exists(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("check agent existence: %w", err)
	}
	if !exists {
		return nil, coreerr.New(coreerr.KindNotFound, "agent is not registered locally")
	}

	if err := s.checkCompliance(ctx, agentID, "register_cross_chain_service", money.Zero, complianceservice.RiskContext{
		Name:         agentID,
		Capabilities: networkStrings(sorted),
	}); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	crossChainID, err := hashing.Hash(map[string]any{
		"agent_id": agentID,
		"networks": networkStrings(sorted),
		"ts":       now,
	})
	if err != nil {
		return nil, fmt.Errorf("derive cross_chain_id: %w", err)
	}

	advertisements := make([]NetworkAdvertisement, 0, len(sorted))
	for _, network := range sorted {
		assetName := assetname.ForCrossChainRegistration(agentID, string(network))
		asset := cip25.Asset{
			Name:        "Cross-Chain Advertisement " + assetName,
			Description: fmt.Sprintf("agent %s advertised on %s", agentID, network),
			Properties: map[string]any{
				"agent_id":       agentID,
				"network":        string(network),
				"cross_chain_id": crossChainID,
			},
		}
		meta := cip25.Build(s.cfg.PolicyID, assetName, asset)

		result, err := s.gateway.Mint(ctx, issuer.MintRequest{
			AssetName: assetName,
			PolicyID:  s.cfg.PolicyID,
			Metadata:  meta.ToMap(),
		})
		if err != nil {
			return nil, fmt.Errorf("mint registration token for network %s: %w", network, err)
		}
		advertisements = append(advertisements, NetworkAdvertisement{
			Network:      network,
			AssetName:    assetName,
			MintTxID:     result.TransactionID,
			RegisteredAt: now,
		})
	}

	reg := &CrossChainRegistration{
		CrossChainID:   crossChainID,
		AgentID:        agentID,
		Networks:       sorted,
		Advertisements: advertisements,
		CreatedAt:      now,
	}
	if err := s.repo.Create(ctx, reg); err != nil {
		return nil, fmt.Errorf("persist cross-chain registration: %w", err)
	}

	s.appendAudit(ctx, crossChainID, "register_cross_chain_service", agentID, map[string]any{
		"agent_id": agentID,
		"networks": networkStrings(sorted),
	})
	return reg, nil
}

// Get returns a previously-created registration by its cross_chain_id.
func (s *Service) Get(ctx context.Context, crossChainID string) (*CrossChainRegistration, error) {
	reg, err := s.repo.Get(ctx, crossChainID)
	if err != nil {
		if err == ErrNotFound {
			return nil, coreerr.New(coreerr.KindNotFound, "cross-chain registration not found")
		}
		return nil, err
	}
	return reg, nil
}

// ListByAgent returns every cross-chain registration an agent has made.
func (s *Service) ListByAgent(ctx context.Context, agentID string) ([]*CrossChainRegistration, error) {
	return s.repo.ListByAgent(ctx, agentID)
}

func (s *Service) checkCompliance(ctx context.Context, subject, action string, stake money.Amount, risk complianceservice.RiskContext) error {
	if s.compliance == nil {
		return nil
	}
	result, err := s.compliance.Evaluate(ctx, subject, "crosschain", action, stake, risk)
	if err != nil {
		return err
	}
	switch result.Decision {
	case compliancemodel.Deny:
		return coreerr.New(coreerr.KindComplianceDenied, "compliance gate denied cross-chain registration")
	case compliancemodel.RequireInfo:
		return coreerr.New(coreerr.KindComplianceRequireInfo, "compliance gate requires additional information")
	default:
		return nil
	}
}

func (s *Service) appendAudit(ctx context.Context, subject, action, actor string, payload any) {
	if s.ledger == nil {
		return
	}
	if _, err := s.ledger.Append(ctx, subject, action, actor, payload); err != nil {
		s.logger.Warn("audit append failed", zap.String("subject", subject), zap.String("action", action), zap.Error(err))
	}
}

func networkStrings(networks []Network) []string {
	out := make([]string, len(networks))
	for i, n := range networks {
		out[i] = string(n)
	}
	return out
}
