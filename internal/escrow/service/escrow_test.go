package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cardanoagents/enhanced-client/internal/audit"
	"github.com/cardanoagents/enhanced-client/internal/coreerr"
	"github.com/cardanoagents/enhanced-client/internal/escrow/model"
	"github.com/cardanoagents/enhanced-client/internal/escrow/repository"
	"github.com/cardanoagents/enhanced-client/internal/escrow/service"
	"github.com/cardanoagents/enhanced-client/internal/hashing"
	"github.com/cardanoagents/enhanced-client/internal/issuer"
	"github.com/cardanoagents/enhanced-client/internal/money"
)

type fakeRecorder struct {
	calls int
}

func (f *fakeRecorder) RecordExecutionOutcome(_ context.Context, _ string, _ bool, _ time.Time) error {
	f.calls++
	return nil
}

type fakeGateway struct {
	fail bool
}

func (g *fakeGateway) Mint(_ context.Context, req issuer.MintRequest) (*issuer.MintResult, error) {
	if g.fail {
		return nil, coreerr.New(coreerr.KindTransportFailed, "simulated transport failure")
	}
	return &issuer.MintResult{TransactionID: "tx_" + req.AssetName, AssetID: "asset_" + req.AssetName}, nil
}

func newTestService(gateway issuer.Gateway, recorder *fakeRecorder) *service.EscrowService {
	return service.New(repository.NewMemoryRepository(), recorder, gateway, audit.New(), zap.NewNop(), service.Config{
		PolicyID:        "policy123",
		MintMaxAttempts: 1,
	})
}

func buildProof(agentID, executionID string, at time.Time) model.ExecutionProof {
	proof := model.ExecutionProof{
		AgentID:       agentID,
		ExecutionID:   executionID,
		Timestamp:     at,
		TaskCompleted: true,
		ExecutionTime: 2 * time.Second,
		Result:        map[string]any{"output": "ok"},
		Metadata:      map[string]any{"attempt": 1},
	}
	proof.ProofHash = hashing.MustHash(proof.HashableFields())
	return proof
}

func TestReleaseEscrow_validProofReleasesAndMints(t *testing.T) {
	ctx := context.Background()
	recorder := &fakeRecorder{}
	svc := newTestService(&fakeGateway{}, recorder)

	escrow, err := svc.CreateEscrow(ctx, "addr-requester", "agent-1", "hash123",
		money.FromMicros(10_000_000), time.Now().Add(time.Hour), "do the task", model.PricingPerExecution)
	if err != nil {
		t.Fatalf("create escrow: %v", err)
	}

	proof := buildProof("agent-1", "exec-1", time.Now())
	settlement, err := svc.ReleaseEscrow(ctx, escrow.EscrowID, proof)
	if err != nil {
		t.Fatalf("release escrow: %v", err)
	}
	if settlement.Status != model.StatusReleased {
		t.Fatalf("expected released, got %v", settlement.Status)
	}
	if settlement.MintTxID == "" {
		t.Fatal("expected mint tx id")
	}
	if recorder.calls != 1 {
		t.Fatalf("expected reputation credit to be called once, got %d", recorder.calls)
	}
}

func TestReleaseEscrow_rejectsTamperedProof(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakeGateway{}, &fakeRecorder{})

	escrow, err := svc.CreateEscrow(ctx, "addr-requester", "agent-1", "hash123",
		money.FromMicros(10_000_000), time.Now().Add(time.Hour), "do the task", model.PricingPerExecution)
	if err != nil {
		t.Fatalf("create escrow: %v", err)
	}

	proof := buildProof("agent-1", "exec-1", time.Now())
	proof.TaskCompleted = false // mutate after hashing -> hash mismatch

	_, err = svc.ReleaseEscrow(ctx, escrow.EscrowID, proof)
	kind, ok := coreerr.KindOf(err)
	if !ok || kind != coreerr.KindInvalidProof {
		t.Fatalf("expected InvalidProof, got %v", err)
	}
}

func TestReleaseEscrow_rejectsAgentMismatch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakeGateway{}, &fakeRecorder{})

	escrow, err := svc.CreateEscrow(ctx, "addr-requester", "agent-1", "hash123",
		money.FromMicros(10_000_000), time.Now().Add(time.Hour), "do the task", model.PricingPerExecution)
	if err != nil {
		t.Fatalf("create escrow: %v", err)
	}

	proof := buildProof("agent-2", "exec-1", time.Now())
	_, err = svc.ReleaseEscrow(ctx, escrow.EscrowID, proof)
	kind, ok := coreerr.KindOf(err)
	if !ok || kind != coreerr.KindAgentMismatch {
		t.Fatalf("expected AgentMismatch, got %v", err)
	}
}

func TestReleaseEscrow_rejectsReplayedExecutionID(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakeGateway{}, &fakeRecorder{})

	e1, _ := svc.CreateEscrow(ctx, "addr-requester", "agent-1", "hash123",
		money.FromMicros(10_000_000), time.Now().Add(time.Hour), "task one", model.PricingPerExecution)
	e2, _ := svc.CreateEscrow(ctx, "addr-requester", "agent-1", "hash456",
		money.FromMicros(10_000_000), time.Now().Add(time.Hour), "task two", model.PricingPerExecution)

	proof1 := buildProof("agent-1", "exec-shared", time.Now())
	if _, err := svc.ReleaseEscrow(ctx, e1.EscrowID, proof1); err != nil {
		t.Fatalf("first release: %v", err)
	}

	proof2 := buildProof("agent-1", "exec-shared", time.Now())
	_, err := svc.ReleaseEscrow(ctx, e2.EscrowID, proof2)
	kind, ok := coreerr.KindOf(err)
	if !ok || kind != coreerr.KindReplayedProof {
		t.Fatalf("expected ReplayedProof, got %v", err)
	}
}

func TestReleaseEscrow_alreadyTerminalReturnsAlreadySettled(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakeGateway{}, &fakeRecorder{})

	escrow, _ := svc.CreateEscrow(ctx, "addr-requester", "agent-1", "hash123",
		money.FromMicros(10_000_000), time.Now().Add(time.Hour), "task", model.PricingPerExecution)

	proof := buildProof("agent-1", "exec-1", time.Now())
	if _, err := svc.ReleaseEscrow(ctx, escrow.EscrowID, proof); err != nil {
		t.Fatalf("first release: %v", err)
	}

	proof2 := buildProof("agent-1", "exec-2", time.Now())
	_, err := svc.ReleaseEscrow(ctx, escrow.EscrowID, proof2)
	kind, ok := coreerr.KindOf(err)
	if !ok || kind != coreerr.KindAlreadySettled {
		t.Fatalf("expected AlreadySettled, got %v", err)
	}
}

func TestReleaseEscrow_concurrentIdenticalProofsSettleExactlyOnce(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakeGateway{}, &fakeRecorder{})

	escrow, _ := svc.CreateEscrow(ctx, "addr-requester", "agent-1", "hash123",
		money.FromMicros(10_000_000), time.Now().Add(time.Hour), "task", model.PricingPerExecution)
	proof := buildProof("agent-1", "exec-1", time.Now())

	const racers = 8
	results := make(chan error, racers)
	var wg sync.WaitGroup
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.ReleaseEscrow(ctx, escrow.EscrowID, proof)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var released, alreadySettled, other int
	for err := range results {
		if err == nil {
			released++
			continue
		}
		if kind, ok := coreerr.KindOf(err); ok && kind == coreerr.KindAlreadySettled {
			alreadySettled++
			continue
		}
		other++
	}

	if released != 1 {
		t.Fatalf("expected exactly one released, got %d (already_settled=%d other=%d)", released, alreadySettled, other)
	}
	if other != 0 {
		t.Fatalf("expected every other racer to see AlreadySettled, got %d with a different error kind", other)
	}
	if alreadySettled != racers-1 {
		t.Fatalf("expected %d AlreadySettled results, got %d", racers-1, alreadySettled)
	}
}

func TestReleaseEscrow_transportFailureLeavesEscrowProven(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakeGateway{fail: true}, &fakeRecorder{})

	escrow, _ := svc.CreateEscrow(ctx, "addr-requester", "agent-1", "hash123",
		money.FromMicros(10_000_000), time.Now().Add(time.Hour), "task", model.PricingPerExecution)

	proof := buildProof("agent-1", "exec-1", time.Now())
	_, err := svc.ReleaseEscrow(ctx, escrow.EscrowID, proof)
	if err == nil {
		t.Fatal("expected transport error from mint submission")
	}

	got, getErr := svc.GetEscrow(ctx, escrow.EscrowID)
	if getErr != nil {
		t.Fatalf("get escrow: %v", getErr)
	}
	if got.Status != model.StatusProven {
		t.Fatalf("expected escrow to remain proven after mint failure, got %v", got.Status)
	}
	if got.MintTxID != "" {
		t.Fatalf("expected no mint tx id recorded, got %q", got.MintTxID)
	}
}

func TestRecoverPendingSettlements_retriesProvenEscrows(t *testing.T) {
	ctx := context.Background()
	gateway := &fakeGateway{fail: true}
	svc := newTestService(gateway, &fakeRecorder{})

	escrow, _ := svc.CreateEscrow(ctx, "addr-requester", "agent-1", "hash123",
		money.FromMicros(10_000_000), time.Now().Add(time.Hour), "task", model.PricingPerExecution)
	proof := buildProof("agent-1", "exec-1", time.Now())
	if _, err := svc.ReleaseEscrow(ctx, escrow.EscrowID, proof); err == nil {
		t.Fatal("expected first mint attempt to fail")
	}

	gateway.fail = false
	settlements, err := svc.RecoverPendingSettlements(ctx)
	if err != nil {
		t.Fatalf("recover pending settlements: %v", err)
	}
	if len(settlements) != 1 || settlements[0].Status != model.StatusReleased {
		t.Fatalf("expected one recovered settlement, got %+v", settlements)
	}
}

func TestRefundExpired_requiresPastDeadline(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakeGateway{}, &fakeRecorder{})

	escrow, _ := svc.CreateEscrow(ctx, "addr-requester", "agent-1", "hash123",
		money.FromMicros(10_000_000), time.Now().Add(time.Hour), "task", model.PricingPerExecution)

	_, err := svc.RefundExpired(ctx, escrow.EscrowID)
	if err == nil {
		t.Fatal("expected error refunding an escrow before its deadline")
	}
}

func TestDisputeThenArbitrate_resolvesToRefunded(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakeGateway{}, &fakeRecorder{})

	escrow, _ := svc.CreateEscrow(ctx, "addr-requester", "agent-1", "hash123",
		money.FromMicros(10_000_000), time.Now().Add(time.Hour), "task", model.PricingPerExecution)

	if err := svc.Dispute(ctx, escrow.EscrowID, "agent unresponsive"); err != nil {
		t.Fatalf("dispute: %v", err)
	}

	settlement, err := svc.Arbitrate(ctx, escrow.EscrowID, model.StatusRefunded, "operator-1")
	if err != nil {
		t.Fatalf("arbitrate: %v", err)
	}
	if settlement.Status != model.StatusRefunded {
		t.Fatalf("expected refunded, got %v", settlement.Status)
	}
}
