package repository

import (
	"context"
	"sync"

	"github.com/cardanoagents/enhanced-client/internal/money"
	"github.com/cardanoagents/enhanced-client/internal/revenue/model"
)

// MemoryRepository is an in-process Repository for tests and single-node
// deployments without Postgres configured.
type MemoryRepository struct {
	mu      sync.Mutex
	shares  map[string]*model.RevenueShare
	reports map[string]*model.DistributionReport
	reserve money.Amount
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		shares:  make(map[string]*model.RevenueShare),
		reports: make(map[string]*model.DistributionReport),
	}
}

func (r *MemoryRepository) GetShare(_ context.Context, recipient string) (*model.RevenueShare, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shares[recipient]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *MemoryRepository) UpsertShare(_ context.Context, share *model.RevenueShare) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *share
	r.shares[share.RecipientAddress] = &cp
	return nil
}

func (r *MemoryRepository) ListActiveShares(_ context.Context) ([]*model.RevenueShare, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.RevenueShare
	for _, s := range r.shares {
		if s.Active {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) GetReport(_ context.Context, periodID string) (*model.DistributionReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reports[periodID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rep
	return &cp, nil
}

func (r *MemoryRepository) SaveReport(_ context.Context, report *model.DistributionReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reports[report.PeriodID]; ok {
		return nil // idempotent: already distributed, leave state untouched
	}

	for _, award := range report.Awards {
		s, ok := r.shares[award.RecipientAddress]
		if !ok {
			continue
		}
		s.AccumulatedRewards = s.AccumulatedRewards.Add(award.Award)
	}
	r.reserve = r.reserve.Add(report.ReserveResidue)

	cp := *report
	r.reports[report.PeriodID] = &cp
	return nil
}

func (r *MemoryRepository) ClaimAndReset(_ context.Context, recipient string) (money.Amount, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shares[recipient]
	if !ok {
		return 0, 0, ErrNotFound
	}
	claimed := s.AccumulatedRewards
	s.AccumulatedRewards = 0
	s.LastClaimSequence++
	return claimed, s.LastClaimSequence, nil
}

func (r *MemoryRepository) RestoreClaim(_ context.Context, recipient string, amount money.Amount, sequence int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shares[recipient]
	if !ok {
		return ErrNotFound
	}
	s.AccumulatedRewards = s.AccumulatedRewards.Add(amount)
	if s.LastClaimSequence == sequence {
		s.LastClaimSequence--
	}
	return nil
}

func (r *MemoryRepository) Reserve(_ context.Context) (money.Amount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reserve, nil
}
