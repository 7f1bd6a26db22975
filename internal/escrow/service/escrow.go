// Package service implements the Escrow Engine (C4): create_escrow,
// release_escrow (with the full proof-verification algorithm of spec.md
// §4.2), refund_expired, get_escrow, and the dispute/arbitrate manual-
// resolution stub. Grounded on the teacher's internal/registry/service's
// mutex-guarded, audit-appending service shape, generalized from agent
// registration onto the escrow state machine.
package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cardanoagents/enhanced-client/internal/audit"
	compliancemodel "github.com/cardanoagents/enhanced-client/internal/compliance/model"
	complianceservice "github.com/cardanoagents/enhanced-client/internal/compliance/service"
	"github.com/cardanoagents/enhanced-client/internal/coreerr"
	"github.com/cardanoagents/enhanced-client/internal/escrow/model"
	"github.com/cardanoagents/enhanced-client/internal/escrow/repository"
	"github.com/cardanoagents/enhanced-client/internal/hashing"
	"github.com/cardanoagents/enhanced-client/internal/issuer"
	"github.com/cardanoagents/enhanced-client/internal/money"
	"github.com/cardanoagents/enhanced-client/pkg/assetname"
	"github.com/cardanoagents/enhanced-client/pkg/cip25"
)

// ReputationRecorder is the Registry (C3) boundary the Escrow Engine
// credits on proof settlement.
type ReputationRecorder interface {
	RecordExecutionOutcome(ctx context.Context, agentID string, success bool, at time.Time) error
}

// ComplianceGate is the Compliance Gate (C6b) boundary, identical in shape
// to the one the Registry consults.
type ComplianceGate interface {
	Evaluate(ctx context.Context, subject, resource, action string, stake money.Amount, risk complianceservice.RiskContext) (*compliancemodel.EvaluationResult, error)
}

// Config holds the tunables spec.md §5/§6 name for the settlement path.
type Config struct {
	PolicyID        string        // CIP-25 policy id settlement NFTs mint under
	MintMaxAttempts int           // default 5
	MintBaseDelay   time.Duration // default 500ms
}

func (c Config) withDefaults() Config {
	if c.MintMaxAttempts <= 0 {
		c.MintMaxAttempts = 5
	}
	if c.MintBaseDelay <= 0 {
		c.MintBaseDelay = 500 * time.Millisecond
	}
	return c
}

// EscrowService implements the Escrow Engine component. A single mutex
// serialises mutations; it is released before any cross-component call
// (reputation crediting, compliance evaluation, NFT mint submission), per
// spec.md §5's lock-ordering discipline.
type EscrowService struct {
	mu         sync.Mutex
	repo       repository.Repository
	registry   ReputationRecorder
	gateway    issuer.Gateway
	compliance ComplianceGate
	ledger     audit.Ledger
	logger     *zap.Logger
	cfg        Config

	now func() time.Time
}

// New creates an EscrowService. gateway is typically an
// *issuer.QueuedGateway wrapping an *issuer.HTTPGateway.
func New(repo repository.Repository, registry ReputationRecorder, gateway issuer.Gateway, ledger audit.Ledger, logger *zap.Logger, cfg Config) *EscrowService {
	return &EscrowService{
		repo:     repo,
		registry: registry,
		gateway:  gateway,
		ledger:   ledger,
		logger:   logger,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

// WithComplianceGate attaches the gate consulted before create_escrow and
// release_escrow.
func (s *EscrowService) WithComplianceGate(gate ComplianceGate) *EscrowService {
	s.compliance = gate
	return s
}

// CreateEscrow implements create_escrow. The escrow enters `in_escrow`
// directly per spec.md §4.2's stated initial state.
func (s *EscrowService) CreateEscrow(ctx context.Context, requesterAddress, agentID, serviceHash string, payment money.Amount, deadline time.Time, taskDescription string, pricing model.PricingModel) (*model.ServiceRequest, error) {
	if !payment.Positive() {
		return nil, coreerr.Validation(coreerr.KindNegativeAmount, "payment_amount", "must be > 0", "payment amount must be positive")
	}
	now := s.now().UTC()
	if !deadline.After(now) {
		return nil, coreerr.Validation(coreerr.KindDeadlineInPast, "deadline", "must be after creation time", "escrow deadline must be in the future")
	}

	if err := s.checkCompliance(ctx, requesterAddress, "create_escrow", money.FromMicros(0), complianceservice.RiskContext{
		Name:        requesterAddress,
		Description: taskDescription,
	}); err != nil {
		return nil, err
	}

	escrow := &model.ServiceRequest{
		EscrowID:         uuid.New().String(),
		RequesterAddress: requesterAddress,
		AgentID:          agentID,
		ServiceHash:      serviceHash,
		PaymentAmount:    payment,
		Deadline:         deadline.UTC(),
		TaskDescription:  taskDescription,
		Pricing:          pricing,
		Status:           model.StatusInEscrow,
		CreatedAt:        now,
	}

	s.mu.Lock()
	err := s.repo.Create(ctx, escrow)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("create escrow: %w", err)
	}

	s.appendAudit(ctx, escrow.EscrowID, "create_escrow", requesterAddress, map[string]any{
		"agent_id": agentID,
		"amount":   payment.String(),
	})
	return escrow, nil
}

// ReleaseEscrow implements release_escrow and its proof-verification
// algorithm (spec.md §4.2): recompute the canonical hash, constant-time
// compare, verify agent id match, check replay, then mark proven and
// settle.
func (s *EscrowService) ReleaseEscrow(ctx context.Context, escrowID string, proof model.ExecutionProof) (*model.Settlement, error) {
	s.mu.Lock()
	escrow, err := s.repo.Get(ctx, escrowID)
	if err != nil {
		s.mu.Unlock()
		if err == repository.ErrNotFound {
			return nil, coreerr.New(coreerr.KindNotFound, "escrow not found")
		}
		return nil, err
	}
	if escrow.Status.Terminal() {
		s.mu.Unlock()
		return nil, coreerr.New(coreerr.KindAlreadySettled, "escrow is already in a terminal state")
	}
	s.mu.Unlock()

	computed, err := hashing.Hash(proof.HashableFields())
	if err != nil {
		return nil, coreerr.Newf(coreerr.KindInvalidField, "recompute proof hash: %v", err)
	}
	if subtle.ConstantTimeCompare([]byte(computed), []byte(proof.ProofHash)) != 1 {
		return nil, coreerr.New(coreerr.KindInvalidProof, "proof hash does not match recomputed hash")
	}

	if proof.AgentID != escrow.AgentID {
		return nil, coreerr.New(coreerr.KindAgentMismatch, "proof agent id does not match escrow agent id")
	}

	if err := s.checkCompliance(ctx, escrow.AgentID, "release_escrow", escrow.PaymentAmount, complianceservice.RiskContext{
		Name:        escrow.AgentID,
		Description: escrow.TaskDescription,
	}); err != nil {
		return nil, err
	}

	// Replay check and the proven-write happen inside one uninterrupted
	// critical section: re-fetching the escrow here, rather than reusing
	// the copy read above, is what linearizes two concurrent callers with
	// the same proof. The race loser observes the winner's status flip
	// before it ever consults the replay table, so it reports
	// AlreadySettled instead of misreading its own proof as a replay.
	s.mu.Lock()
	current, err := s.repo.Get(ctx, escrowID)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("refetch escrow before proven-write: %w", err)
	}
	if current.Status != model.StatusInEscrow {
		s.mu.Unlock()
		return nil, coreerr.New(coreerr.KindAlreadySettled, "escrow is already in a terminal state")
	}
	alreadySeen, err := s.repo.SeenExecution(ctx, proof.AgentID, proof.ExecutionID)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("check execution replay: %w", err)
	}
	if alreadySeen {
		s.mu.Unlock()
		return nil, coreerr.New(coreerr.KindReplayedProof, "execution id already used for this agent")
	}
	current.Status = model.StatusProven
	current.Proof = &proof
	err = s.repo.Update(ctx, current)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("mark escrow proven: %w", err)
	}
	escrow = current

	if err := s.registry.RecordExecutionOutcome(ctx, proof.AgentID, proof.TaskCompleted, proof.Timestamp); err != nil {
		s.logger.Warn("reputation credit failed after proof settlement",
			zap.String("escrow_id", escrowID), zap.String("agent_id", proof.AgentID), zap.Error(err))
	}

	return s.settle(ctx, escrow)
}

// settle submits the settlement mint for a `proven` escrow and advances it
// to `released` on success. On transport failure, the escrow remains
// `proven` without a mint id — recoverable by RecoverPendingSettlements on
// restart, per spec.md §4.2's crash-recovery contract.
func (s *EscrowService) settle(ctx context.Context, escrow *model.ServiceRequest) (*model.Settlement, error) {
	asset := cip25.SettlementAsset(
		"Escrow Settlement "+escrow.EscrowID,
		escrow.TaskDescription,
		"proof_of_execution",
		fmt.Sprintf("completed=%v execution_id=%s", escrow.Proof.TaskCompleted, escrow.Proof.ExecutionID),
		escrow.Proof.ProofHash,
	)
	assetName := assetname.ForSettlement(escrow.EscrowID)
	meta := cip25.Build(s.cfg.PolicyID, assetName, asset)

	result, err := issuer.RetryMint(ctx, s.gateway, issuer.MintRequest{
		AssetName:        assetName,
		RecipientAddress: escrow.RequesterAddress,
		PolicyID:         s.cfg.PolicyID,
		Metadata:         meta.ToMap(),
	}, s.cfg.MintMaxAttempts, s.cfg.MintBaseDelay)
	if err != nil {
		s.logger.Warn("settlement mint failed, escrow remains proven pending retry",
			zap.String("escrow_id", escrow.EscrowID), zap.Error(err))
		return nil, fmt.Errorf("submit settlement mint: %w", err)
	}

	s.mu.Lock()
	escrow.Status = model.StatusReleased
	escrow.MintTxID = result.TransactionID
	updateErr := s.repo.Update(ctx, escrow)
	s.mu.Unlock()
	if updateErr != nil {
		return nil, fmt.Errorf("persist settlement: %w", updateErr)
	}

	s.appendAudit(ctx, escrow.EscrowID, "release_escrow", escrow.AgentID, map[string]any{
		"mint_tx_id": result.TransactionID,
		"amount":     escrow.PaymentAmount.String(),
	})

	return &model.Settlement{
		EscrowID: escrow.EscrowID,
		Status:   model.StatusReleased,
		Amount:   escrow.PaymentAmount,
		MintTxID: result.TransactionID,
	}, nil
}

// RecoverPendingSettlements scans escrows stuck in `proven` without a mint
// id — the restart-recovery path for a crash between marking an escrow
// proven and recording its settlement mint.
func (s *EscrowService) RecoverPendingSettlements(ctx context.Context) ([]*model.Settlement, error) {
	s.mu.Lock()
	pending, err := s.repo.ListProvenWithoutMint(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("list proven escrows without mint: %w", err)
	}

	var settlements []*model.Settlement
	for _, escrow := range pending {
		settlement, err := s.settle(ctx, escrow)
		if err != nil {
			s.logger.Warn("settlement recovery retry failed", zap.String("escrow_id", escrow.EscrowID), zap.Error(err))
			continue
		}
		settlements = append(settlements, settlement)
	}
	return settlements, nil
}

// RefundExpired implements refund_expired: requires the escrow to be
// non-terminal and past its deadline.
func (s *EscrowService) RefundExpired(ctx context.Context, escrowID string) (*model.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	escrow, err := s.repo.Get(ctx, escrowID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, coreerr.New(coreerr.KindNotFound, "escrow not found")
		}
		return nil, err
	}
	if escrow.Status.Terminal() {
		return nil, coreerr.New(coreerr.KindAlreadySettled, "escrow is already in a terminal state")
	}
	if !s.now().UTC().After(escrow.Deadline) {
		return nil, coreerr.New(coreerr.KindInvalidField, "escrow deadline has not yet passed")
	}

	escrow.Status = model.StatusRefunded
	if err := s.repo.Update(ctx, escrow); err != nil {
		return nil, fmt.Errorf("mark escrow refunded: %w", err)
	}

	s.appendAudit(ctx, escrowID, "refund_expired", escrow.RequesterAddress, map[string]any{
		"amount": escrow.PaymentAmount.String(),
	})
	return &model.Settlement{EscrowID: escrowID, Status: model.StatusRefunded, Amount: escrow.PaymentAmount}, nil
}

// GetEscrow implements get_escrow.
func (s *EscrowService) GetEscrow(ctx context.Context, escrowID string) (*model.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	escrow, err := s.repo.Get(ctx, escrowID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, coreerr.New(coreerr.KindNotFound, "escrow not found")
		}
		return nil, err
	}
	return escrow, nil
}

// Dispute moves a non-terminal escrow to `disputed`, freezing it until an
// operator resolves it via Arbitrate. This is the manual-resolution stub
// spec.md §4.2 explicitly allows in place of automated arbitration logic.
func (s *EscrowService) Dispute(ctx context.Context, escrowID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	escrow, err := s.repo.Get(ctx, escrowID)
	if err != nil {
		if err == repository.ErrNotFound {
			return coreerr.New(coreerr.KindNotFound, "escrow not found")
		}
		return err
	}
	if escrow.Status.Terminal() {
		return coreerr.New(coreerr.KindAlreadySettled, "escrow is already in a terminal state")
	}

	escrow.Status = model.StatusDisputed
	if err := s.repo.Update(ctx, escrow); err != nil {
		return fmt.Errorf("mark escrow disputed: %w", err)
	}
	s.appendAudit(ctx, escrowID, "dispute", escrow.RequesterAddress, map[string]any{"reason": reason})
	return nil
}

// Arbitrate resolves a `disputed` escrow to `released` or `refunded`,
// invoked by a single manual arbitrator (operator CLI), per spec.md §4.2's
// stated initial scope for the dispute path.
func (s *EscrowService) Arbitrate(ctx context.Context, escrowID string, resolution model.Status, arbitrator string) (*model.Settlement, error) {
	if resolution != model.StatusReleased && resolution != model.StatusRefunded {
		return nil, coreerr.New(coreerr.KindInvalidField, "arbitration resolution must be released or refunded")
	}

	s.mu.Lock()
	escrow, err := s.repo.Get(ctx, escrowID)
	if err != nil {
		s.mu.Unlock()
		if err == repository.ErrNotFound {
			return nil, coreerr.New(coreerr.KindNotFound, "escrow not found")
		}
		return nil, err
	}
	if escrow.Status != model.StatusDisputed {
		s.mu.Unlock()
		return nil, coreerr.New(coreerr.KindInvalidField, "escrow is not under dispute")
	}
	escrow.Status = resolution
	updateErr := s.repo.Update(ctx, escrow)
	s.mu.Unlock()
	if updateErr != nil {
		return nil, fmt.Errorf("resolve dispute: %w", updateErr)
	}

	s.appendAudit(ctx, escrowID, "arbitrate", arbitrator, map[string]any{"resolution": string(resolution)})
	return &model.Settlement{EscrowID: escrowID, Status: resolution, Amount: escrow.PaymentAmount}, nil
}

func (s *EscrowService) checkCompliance(ctx context.Context, subject, action string, stake money.Amount, risk complianceservice.RiskContext) error {
	if s.compliance == nil {
		return nil
	}
	result, err := s.compliance.Evaluate(ctx, subject, "escrow", action, stake, risk)
	if err != nil {
		return err
	}
	switch result.Decision {
	case compliancemodel.Deny:
		return coreerr.New(coreerr.KindComplianceDenied, "compliance gate denied "+action)
	case compliancemodel.RequireInfo:
		return coreerr.New(coreerr.KindComplianceRequireInfo, "compliance gate requires additional information")
	default:
		return nil
	}
}

func (s *EscrowService) appendAudit(ctx context.Context, subject, action, actor string, payload any) {
	if s.ledger == nil {
		return
	}
	if _, err := s.ledger.Append(ctx, subject, action, actor, payload); err != nil {
		s.logger.Warn("audit append failed", zap.String("subject", subject), zap.String("action", action), zap.Error(err))
	}
}
