package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cardanoagents/enhanced-client/internal/audit"
	"github.com/cardanoagents/enhanced-client/internal/coreerr"
	"github.com/cardanoagents/enhanced-client/internal/money"
	"github.com/cardanoagents/enhanced-client/internal/registry/model"
	"github.com/cardanoagents/enhanced-client/internal/registry/repository"
	"github.com/cardanoagents/enhanced-client/internal/registry/service"
)

var errChainQueryDown = errors.New("chain-query: connection refused")

func newTestService() *service.RegistryService {
	return service.New(repository.NewMemoryRepository(), audit.New(), zap.NewNop())
}

func TestRegisterAgent_insufficientStake(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	// "blockchain" carries a 2.0 multiplier, so the basic tier requires
	// 100*2.0=200 ADA; 50 ADA is genuinely short of that.
	_, err := svc.RegisterAgent(ctx, "agent-1", "addr1", "ipfs://meta", []string{"blockchain"}, money.FromMicros(50_000_000), "1.0")
	if err == nil {
		t.Fatal("expected InsufficientStake error")
	}
	kind, ok := coreerr.KindOf(err)
	if !ok || kind != coreerr.KindInsufficientStake {
		t.Fatalf("expected InsufficientStake, got %v", err)
	}
}

func TestRegisterAgent_professionalTier(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	reg, err := svc.RegisterAgent(ctx, "agent-1", "addr1", "ipfs://meta", []string{"blockchain"}, money.FromMicros(4_000_000_000), "1.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Tier != model.TierProfessional {
		t.Errorf("expected professional tier, got %s", reg.Tier)
	}
}

func TestRegisterAgent_emptyCapabilities(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.RegisterAgent(ctx, "agent-1", "addr1", "ipfs://meta", nil, money.FromMicros(1_000_000), "1.0")
	kind, ok := coreerr.KindOf(err)
	if !ok || kind != coreerr.KindEmptyCapabilities {
		t.Fatalf("expected EmptyCapabilities, got %v", err)
	}
}

func TestRegisterAgent_duplicateID(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.RegisterAgent(ctx, "agent-1", "addr1", "ipfs://meta", []string{"other"}, money.FromMicros(100_000_000), "1.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = svc.RegisterAgent(ctx, "agent-1", "addr2", "ipfs://meta2", []string{"other"}, money.FromMicros(100_000_000), "1.0")
	kind, ok := coreerr.KindOf(err)
	if !ok || kind != coreerr.KindAlreadyRegistered {
		t.Fatalf("expected AlreadyRegistered, got %v", err)
	}
}

func TestUpdateAgentProfile_cannotTamperWithStake(t *testing.T) {
	// Structural guarantee: UpdateRequest has no field capable of touching
	// staked_amount, reputation, or execution counters at all.
	req := model.UpdateRequest{}
	if req.MetadataURI != nil || req.Capabilities != nil || req.FrameworkVersion != nil {
		t.Fatal("zero-value UpdateRequest should touch nothing")
	}
}

func TestRecordExecutionOutcome_updatesReputation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.RegisterAgent(ctx, "agent-1", "addr1", "ipfs://meta", []string{"other"}, money.FromMicros(100_000_000), "1.0")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if err := svc.RecordExecutionOutcome(ctx, "agent-1", true, now); err != nil {
			t.Fatalf("record outcome: %v", err)
		}
	}
	if err := svc.RecordExecutionOutcome(ctx, "agent-1", false, now); err != nil {
		t.Fatalf("record outcome: %v", err)
	}

	view, err := svc.GetAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if view.TotalExecutions != 4 || view.SuccessfulExecutions != 3 {
		t.Fatalf("unexpected counters: total=%d successful=%d", view.TotalExecutions, view.SuccessfulExecutions)
	}
	if view.Reputation <= 0 || view.Reputation > 1.0 {
		t.Fatalf("reputation out of bounds: %f", view.Reputation)
	}
}

func TestDeregisterAgent_returnsStakeAndRemovesFromDiscovery(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	stake := money.FromMicros(100_000_000)
	_, err := svc.RegisterAgent(ctx, "agent-1", "addr1", "ipfs://meta", []string{"other"}, stake, "1.0")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	ret, err := svc.DeregisterAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("deregister: %v", err)
	}
	if ret.Returned != stake {
		t.Errorf("expected returned stake %s, got %s", stake, ret.Returned)
	}

	if _, err := svc.GetAgent(ctx, "agent-1"); err == nil {
		t.Fatal("expected agent to be gone after deregistration")
	}

	results, err := svc.FindAgents(ctx, []string{"other"}, 0, 10)
	if err != nil {
		t.Fatalf("find agents: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no discoverable agents, got %d", len(results))
	}
}

func TestFindAgents_capabilitySupersetAndDeterministicOrder(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	mustRegister := func(id string, caps []string, stake int64) {
		if _, err := svc.RegisterAgent(ctx, id, "addr", "ipfs://meta", caps, money.FromMicros(stake), "1.0"); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}

	mustRegister("agent-a", []string{"ai_analysis"}, 200_000_000)
	mustRegister("agent-b", []string{"ai_analysis", "web_automation"}, 300_000_000)
	mustRegister("agent-c", []string{"web_automation"}, 150_000_000)

	results, err := svc.FindAgents(ctx, []string{"ai_analysis"}, 0, 10)
	if err != nil {
		t.Fatalf("find agents: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(results))
	}
	for _, r := range results {
		if r.AgentID == "agent-c" {
			t.Fatal("agent-c lacks ai_analysis and should not match")
		}
	}
}

func TestFindAgents_maxResultsClampedTo1000(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	_, err := svc.RegisterAgent(ctx, "agent-1", "addr1", "ipfs://meta", []string{"other"}, money.FromMicros(100_000_000), "1.0")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	results, err := svc.FindAgents(ctx, nil, 0, 5000)
	if err != nil {
		t.Fatalf("find agents: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestListActiveEndpoints_skipsNonHTTPMetadataURIs(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	if _, err := svc.RegisterAgent(ctx, "agent-http", "addr", "https://agent.example.com/meta", []string{"web_automation"}, money.FromMicros(200_000_000), "1.0"); err != nil {
		t.Fatalf("register agent-http: %v", err)
	}
	if _, err := svc.RegisterAgent(ctx, "agent-ipfs", "addr", "ipfs://Qm123", []string{"web_automation"}, money.FromMicros(200_000_000), "1.0"); err != nil {
		t.Fatalf("register agent-ipfs: %v", err)
	}

	endpoints, err := svc.ListActiveEndpoints(ctx)
	if err != nil {
		t.Fatalf("list active endpoints: %v", err)
	}
	if len(endpoints) != 1 {
		t.Fatalf("expected exactly 1 probeable endpoint, got %d", len(endpoints))
	}
	if endpoints[0].AgentID != "agent-http" {
		t.Fatalf("expected agent-http to be probeable, got %q", endpoints[0].AgentID)
	}
}

func TestMarkLiveness_advancesDecayAnchorButNeverRewindsIt(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	if _, err := svc.RegisterAgent(ctx, "agent-1", "addr", "https://agent.example.com/meta", []string{"web_automation"}, money.FromMicros(200_000_000), "1.0"); err != nil {
		t.Fatalf("register: %v", err)
	}

	before, err := svc.GetAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}

	future := time.Now().UTC().Add(time.Hour)
	if err := svc.MarkLiveness(ctx, "agent-1", future); err != nil {
		t.Fatalf("mark liveness: %v", err)
	}
	afterAdvance, err := svc.GetAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if afterAdvance.Reputation < before.Reputation {
		t.Fatalf("reputation should not drop after a more recent liveness mark")
	}

	stale := future.Add(-2 * time.Hour)
	if err := svc.MarkLiveness(ctx, "agent-1", stale); err != nil {
		t.Fatalf("mark liveness (stale): %v", err)
	}
	afterStale, err := svc.GetAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if afterStale.Reputation != afterAdvance.Reputation {
		t.Fatalf("an older liveness timestamp must not rewind the decay anchor")
	}
}

type stubStakeVerifier struct {
	balance money.Amount
	err     error
}

func (v *stubStakeVerifier) GetAddressBalance(_ context.Context, _ string) (money.Amount, error) {
	return v.balance, v.err
}

func TestRegisterAgent_stakeVerifierRejectsUnderfundedAddress(t *testing.T) {
	ctx := context.Background()
	svc := newTestService().WithStakeVerifier(&stubStakeVerifier{balance: money.FromMicros(10_000_000)})

	_, err := svc.RegisterAgent(ctx, "agent-1", "addr1", "ipfs://meta", []string{"other"}, money.FromMicros(200_000_000), "1.0")
	if err == nil {
		t.Fatal("expected InsufficientStake error from stake verifier")
	}
	kind, ok := coreerr.KindOf(err)
	if !ok || kind != coreerr.KindInsufficientStake {
		t.Fatalf("expected InsufficientStake, got %v", err)
	}
}

func TestRegisterAgent_stakeVerifierAllowsFundedAddress(t *testing.T) {
	ctx := context.Background()
	svc := newTestService().WithStakeVerifier(&stubStakeVerifier{balance: money.FromMicros(500_000_000)})

	reg, err := svc.RegisterAgent(ctx, "agent-1", "addr1", "ipfs://meta", []string{"other"}, money.FromMicros(200_000_000), "1.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.AgentID != "agent-1" {
		t.Fatalf("expected agent-1, got %s", reg.AgentID)
	}
}

func TestRegisterAgent_stakeVerifierTransportErrorMapsToTransportFailed(t *testing.T) {
	ctx := context.Background()
	svc := newTestService().WithStakeVerifier(&stubStakeVerifier{err: errChainQueryDown})

	_, err := svc.RegisterAgent(ctx, "agent-1", "addr1", "ipfs://meta", []string{"other"}, money.FromMicros(200_000_000), "1.0")
	if err == nil {
		t.Fatal("expected TransportFailed error")
	}
	kind, ok := coreerr.KindOf(err)
	if !ok || kind != coreerr.KindTransportFailed {
		t.Fatalf("expected TransportFailed, got %v", err)
	}
}

func TestMarkLiveness_unknownAgentReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	err := svc.MarkLiveness(ctx, "ghost", time.Now().UTC())
	if err == nil {
		t.Fatal("expected NotFound error")
	}
	if kind, ok := coreerr.KindOf(err); !ok || kind != coreerr.KindNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
