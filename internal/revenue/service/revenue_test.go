package service_test

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/cardanoagents/enhanced-client/internal/audit"
	"github.com/cardanoagents/enhanced-client/internal/coreerr"
	"github.com/cardanoagents/enhanced-client/internal/issuer"
	"github.com/cardanoagents/enhanced-client/internal/money"
	"github.com/cardanoagents/enhanced-client/internal/revenue/repository"
	"github.com/cardanoagents/enhanced-client/internal/revenue/service"
)

type fakeGateway struct {
	fail  bool
	calls int
}

func (g *fakeGateway) Mint(_ context.Context, req issuer.MintRequest) (*issuer.MintResult, error) {
	g.calls++
	if g.fail {
		return nil, coreerr.New(coreerr.KindTransportFailed, "simulated transport failure")
	}
	return &issuer.MintResult{TransactionID: "tx_" + req.AssetName, AssetID: "asset_" + req.AssetName}, nil
}

func newTestService(gateway issuer.Gateway) (*service.RevenueService, repository.Repository) {
	repo := repository.NewMemoryRepository()
	svc := service.New(repo, gateway, audit.New(), zap.NewNop(), service.Config{
		PolicyID:            "policy123",
		TransferMaxAttempts: 1,
	})
	return svc, repo
}

func mustRegister(t *testing.T, svc *service.RevenueService, recipient string, tokens uint64) {
	t.Helper()
	if err := svc.RegisterShare(context.Background(), recipient, tokens, true); err != nil {
		t.Fatalf("RegisterShare(%s): %v", recipient, err)
	}
}

func TestDistributeRevenue_splitsProportionallyAndFloors(t *testing.T) {
	svc, _ := newTestService(&fakeGateway{})
	ctx := context.Background()
	mustRegister(t, svc, "addr1", 1000)
	mustRegister(t, svc, "addr2", 2000)

	total, _ := money.Parse("10.000000")
	report, err := svc.DistributeRevenue(ctx, total, "period-1")
	if err != nil {
		t.Fatalf("DistributeRevenue: %v", err)
	}
	if report.EmptyPool {
		t.Fatal("expected non-empty distribution")
	}
	if report.Participants != 2 {
		t.Fatalf("expected 2 participants, got %d", report.Participants)
	}

	var distributed money.Amount
	for _, award := range report.Awards {
		distributed = distributed.Add(award.Award)
	}
	if distributed.Add(report.ReserveResidue) != total {
		t.Fatalf("awards + residue must equal total: got %s + %s != %s",
			distributed, report.ReserveResidue, total)
	}

	pending, err := svc.GetPending(ctx, "addr1")
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if !pending.Positive() {
		t.Fatal("expected addr1 to have pending rewards after distribution")
	}
}

func TestDistributeRevenue_emptyPoolIsNoOp(t *testing.T) {
	svc, _ := newTestService(&fakeGateway{})
	ctx := context.Background()

	total, _ := money.Parse("5.000000")
	report, err := svc.DistributeRevenue(ctx, total, "period-empty")
	if err != nil {
		t.Fatalf("DistributeRevenue: %v", err)
	}
	if !report.EmptyPool {
		t.Fatal("expected EmptyPool report when no active shares exist")
	}
	if report.Participants != 0 {
		t.Fatalf("expected 0 participants, got %d", report.Participants)
	}
}

func TestDistributeRevenue_idempotentByPeriodID(t *testing.T) {
	svc, _ := newTestService(&fakeGateway{})
	ctx := context.Background()
	mustRegister(t, svc, "addr1", 100)

	total, _ := money.Parse("1.000000")
	first, err := svc.DistributeRevenue(ctx, total, "period-repeat")
	if err != nil {
		t.Fatalf("first DistributeRevenue: %v", err)
	}

	second, err := svc.DistributeRevenue(ctx, total, "period-repeat")
	if err != nil {
		t.Fatalf("second DistributeRevenue: %v", err)
	}
	if second.DistributedAt != first.DistributedAt || len(second.Awards) != len(first.Awards) {
		t.Fatal("expected second call to return the original report unchanged")
	}

	pendingAfterBoth, err := svc.GetPending(ctx, "addr1")
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if pendingAfterBoth != first.Awards[0].Award {
		t.Fatal("expected repeat distribution call not to double-credit the recipient")
	}
}

func TestClaimRewards_resetsPendingAndSubmitsTransfer(t *testing.T) {
	gateway := &fakeGateway{}
	svc, _ := newTestService(gateway)
	ctx := context.Background()
	mustRegister(t, svc, "addr1", 100)

	total, _ := money.Parse("3.000000")
	if _, err := svc.DistributeRevenue(ctx, total, "period-claim"); err != nil {
		t.Fatalf("DistributeRevenue: %v", err)
	}

	result, err := svc.ClaimRewards(ctx, "addr1")
	if err != nil {
		t.Fatalf("ClaimRewards: %v", err)
	}
	if !result.ClaimedAmount.Positive() {
		t.Fatal("expected a positive claimed amount")
	}
	if gateway.calls != 1 {
		t.Fatalf("expected exactly one transfer submission, got %d", gateway.calls)
	}

	pending, err := svc.GetPending(ctx, "addr1")
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if pending != money.Zero {
		t.Fatal("expected pending rewards to be reset to zero after claim")
	}
}

func TestClaimRewards_reversesOnTransferFailure(t *testing.T) {
	gateway := &fakeGateway{fail: true}
	svc, _ := newTestService(gateway)
	ctx := context.Background()
	mustRegister(t, svc, "addr1", 100)

	total, _ := money.Parse("3.000000")
	if _, err := svc.DistributeRevenue(ctx, total, "period-claim-fail"); err != nil {
		t.Fatalf("DistributeRevenue: %v", err)
	}

	pendingBefore, err := svc.GetPending(ctx, "addr1")
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}

	if _, err := svc.ClaimRewards(ctx, "addr1"); err == nil {
		t.Fatal("expected claim to fail when the transfer fails")
	}

	pendingAfter, err := svc.GetPending(ctx, "addr1")
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if pendingAfter != pendingBefore {
		t.Fatalf("expected reversed claim to restore pending rewards: before=%s after=%s", pendingBefore, pendingAfter)
	}
}

func TestClaimRewards_unknownRecipientReturnsNotFound(t *testing.T) {
	svc, _ := newTestService(&fakeGateway{})
	_, err := svc.ClaimRewards(context.Background(), "nobody")
	if kind, ok := coreerr.KindOf(err); !ok || kind != coreerr.KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}
