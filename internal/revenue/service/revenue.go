// Package service implements the Revenue Distributor (C5): distribute_revenue,
// claim_rewards, and get_pending, per spec.md §4.4. Grounded on the
// Escrow Engine's mutex-guarded, audit-appending service shape
// (internal/escrow/service), generalized from the escrow state machine onto
// a per-period distribution pass over a snapshot of active shares.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cardanoagents/enhanced-client/internal/audit"
	"github.com/cardanoagents/enhanced-client/internal/coreerr"
	"github.com/cardanoagents/enhanced-client/internal/issuer"
	"github.com/cardanoagents/enhanced-client/internal/money"
	"github.com/cardanoagents/enhanced-client/internal/revenue/model"
	"github.com/cardanoagents/enhanced-client/internal/revenue/repository"
	"github.com/cardanoagents/enhanced-client/pkg/assetname"
	"github.com/cardanoagents/enhanced-client/pkg/cip25"
)

// Config holds the tunables for the claim transfer's retry behavior.
type Config struct {
	PolicyID            string // CIP-25 policy id claim-transfer "receipts" mint under
	TransferMaxAttempts int
	TransferBaseDelay   time.Duration
}

func (c Config) withDefaults() Config {
	if c.TransferMaxAttempts <= 0 {
		c.TransferMaxAttempts = 5
	}
	if c.TransferBaseDelay <= 0 {
		c.TransferBaseDelay = 500 * time.Millisecond
	}
	return c
}

// RevenueService implements the Revenue Distributor component. A single
// mutex serialises mutations to the share map; it is released before any
// cross-component call (the claim transfer submission), per spec.md §5's
// lock-ordering discipline.
type RevenueService struct {
	mu      sync.Mutex
	repo    repository.Repository
	gateway issuer.Gateway
	ledger  audit.Ledger
	logger  *zap.Logger
	cfg     Config

	now func() time.Time
}

// New creates a RevenueService. gateway is typically the same
// *issuer.QueuedGateway the Escrow Engine submits settlement mints through —
// claim transfers are just another request class on the same external
// issuer boundary.
func New(repo repository.Repository, gateway issuer.Gateway, ledger audit.Ledger, logger *zap.Logger, cfg Config) *RevenueService {
	return &RevenueService{
		repo:    repo,
		gateway: gateway,
		ledger:  ledger,
		logger:  logger,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
	}
}

// DistributeRevenue implements distribute_revenue. Distribution for a given
// period_id is atomic and idempotent: a second call with the same period_id
// returns the original report unchanged rather than redistributing.
func (s *RevenueService) DistributeRevenue(ctx context.Context, total money.Amount, periodID string) (*model.DistributionReport, error) {
	if periodID == "" {
		return nil, coreerr.Validation(coreerr.KindInvalidField, "period_id", "must not be empty", "period id must not be empty")
	}
	if total.Negative() {
		return nil, coreerr.Validation(coreerr.KindNegativeAmount, "total", "must be >= 0", "distribution total must not be negative")
	}

	if existing, err := s.repo.GetReport(ctx, periodID); err == nil {
		return existing, nil
	} else if err != repository.ErrNotFound {
		return nil, fmt.Errorf("check existing distribution report: %w", err)
	}

	s.mu.Lock()
	shares, err := s.repo.ListActiveShares(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("snapshot active shares: %w", err)
	}

	now := s.now().UTC()

	var tokenTotal uint64
	for _, share := range shares {
		tokenTotal += share.ParticipationTokens
	}
	if tokenTotal == 0 {
		report := &model.DistributionReport{
			PeriodID:      periodID,
			Total:         total,
			Participants:  0,
			DistributedAt: now,
			EmptyPool:     true,
		}
		if err := s.repo.SaveReport(ctx, report); err != nil {
			return nil, fmt.Errorf("save empty-pool report: %w", err)
		}
		return report, nil
	}

	awards := make([]model.RecipientAward, 0, len(shares))
	var distributed money.Amount
	for _, share := range shares {
		if share.ParticipationTokens == 0 {
			continue
		}
		award := money.Share(total, share.ParticipationTokens, tokenTotal)
		awards = append(awards, model.RecipientAward{RecipientAddress: share.RecipientAddress, Award: award})
		distributed = distributed.Add(award)
	}
	residue := total.Sub(distributed)

	report := &model.DistributionReport{
		PeriodID:       periodID,
		Total:          total,
		Participants:   len(awards),
		Awards:         awards,
		ReserveResidue: residue,
		DistributedAt:  now,
	}

	if err := s.repo.SaveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("save distribution report: %w", err)
	}

	s.appendAudit(ctx, periodID, "distribute_revenue", "system", map[string]any{
		"total":        total.String(),
		"participants": len(awards),
		"residue":      residue.String(),
	})
	return report, nil
}

// ClaimRewards implements claim_rewards: an atomic read-reset of the
// recipient's accumulated rewards, followed by a transfer submission. A
// failed transfer reverses the claim in full — claims are all-or-nothing.
func (s *RevenueService) ClaimRewards(ctx context.Context, recipient string) (*model.ClaimResult, error) {
	s.mu.Lock()
	claimed, sequence, err := s.repo.ClaimAndReset(ctx, recipient)
	s.mu.Unlock()
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, coreerr.New(coreerr.KindNotFound, "revenue share not found")
		}
		return nil, fmt.Errorf("claim and reset: %w", err)
	}
	if !claimed.Positive() {
		return &model.ClaimResult{RecipientAddress: recipient, ClaimedAmount: claimed, ClaimSequence: sequence}, nil
	}

	asset := cip25.Asset{
		Name:        "Reward Claim " + recipient,
		Description: fmt.Sprintf("revenue distribution claim, sequence=%d", sequence),
		Properties: map[string]any{
			"amount": claimed.String(),
		},
	}
	assetName := assetname.ForClaim(recipient, sequence)
	meta := cip25.Build(s.cfg.PolicyID, assetName, asset)

	_, mintErr := issuer.RetryMint(ctx, s.gateway, issuer.MintRequest{
		AssetName:        assetName,
		RecipientAddress: recipient,
		PolicyID:         s.cfg.PolicyID,
		Metadata:         meta.ToMap(),
	}, s.cfg.TransferMaxAttempts, s.cfg.TransferBaseDelay)
	if mintErr != nil {
		s.mu.Lock()
		restoreErr := s.repo.RestoreClaim(ctx, recipient, claimed, sequence)
		s.mu.Unlock()
		if restoreErr != nil {
			s.logger.Error("claim reversal failed after transfer failure; rewards may be stranded",
				zap.String("recipient", recipient), zap.Error(restoreErr))
			return nil, fmt.Errorf("transfer failed (%w) and reversal failed: %v", mintErr, restoreErr)
		}
		return nil, fmt.Errorf("claim transfer failed, claim reversed: %w", mintErr)
	}

	s.appendAudit(ctx, recipient, "claim_rewards", recipient, map[string]any{
		"amount":   claimed.String(),
		"sequence": sequence,
	})
	return &model.ClaimResult{RecipientAddress: recipient, ClaimedAmount: claimed, ClaimSequence: sequence}, nil
}

// GetPending implements get_pending.
func (s *RevenueService) GetPending(ctx context.Context, recipient string) (money.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	share, err := s.repo.GetShare(ctx, recipient)
	if err != nil {
		if err == repository.ErrNotFound {
			return 0, coreerr.New(coreerr.KindNotFound, "revenue share not found")
		}
		return 0, err
	}
	return share.AccumulatedRewards, nil
}

// RegisterShare creates or updates a recipient's participation in the
// revenue pool (token count and active flag); it never touches
// AccumulatedRewards, which only distribute_revenue and claim_rewards may
// mutate.
func (s *RevenueService) RegisterShare(ctx context.Context, recipient string, participationTokens uint64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.GetShare(ctx, recipient)
	if err != nil && err != repository.ErrNotFound {
		return fmt.Errorf("lookup existing share: %w", err)
	}
	share := &model.RevenueShare{
		RecipientAddress:    recipient,
		ParticipationTokens: participationTokens,
		Active:              active,
	}
	if existing != nil {
		share.AccumulatedRewards = existing.AccumulatedRewards
		share.LastClaimSequence = existing.LastClaimSequence
		share.ContributionScore = existing.ContributionScore
	}
	return s.repo.UpsertShare(ctx, share)
}

func (s *RevenueService) appendAudit(ctx context.Context, subject, action, actor string, payload any) {
	if s.ledger == nil {
		return
	}
	if _, err := s.ledger.Append(ctx, subject, action, actor, payload); err != nil {
		s.logger.Warn("audit append failed", zap.String("subject", subject), zap.String("action", action), zap.Error(err))
	}
}
