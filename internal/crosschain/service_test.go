package crosschain_test

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/cardanoagents/enhanced-client/internal/audit"
	"github.com/cardanoagents/enhanced-client/internal/coreerr"
	"github.com/cardanoagents/enhanced-client/internal/crosschain"
	"github.com/cardanoagents/enhanced-client/internal/issuer"
)

type fakeChecker struct {
	known map[string]bool
}

func (c *fakeChecker) Exists(_ context.Context, agentID string) (bool, error) {
	return c.known[agentID], nil
}

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

func newTestService(checker *fakeChecker, gateway *fakeGateway) *crosschain.Service {
	return crosschain.New(crosschain.NewMemoryRepository(), checker, gateway, audit.New(), zap.NewNop(), crosschain.Config{PolicyID: "policy123"})
}

func TestRegisterCrossChainService_mintsOnePerNetwork(t *testing.T) {
	checker := &fakeChecker{known: map[string]bool{"agent-1": true}}
	gateway := &fakeGateway{}
	svc := newTestService(checker, gateway)

	reg, err := svc.RegisterCrossChainService(context.Background(), "agent-1", []crosschain.Network{crosschain.NetworkEthereum, crosschain.NetworkPolygon})
	if err != nil {
		t.Fatalf("RegisterCrossChainService: %v", err)
	}
	if len(reg.Advertisements) != 2 {
		t.Fatalf("expected 2 advertisements, got %d", len(reg.Advertisements))
	}
	if gateway.calls != 2 {
		t.Fatalf("expected 2 mint submissions, got %d", gateway.calls)
	}
	if reg.CrossChainID == "" {
		t.Fatal("expected a non-empty cross_chain_id")
	}
}

func TestRegisterCrossChainService_storedRegistrationIsRetrievable(t *testing.T) {
	checker := &fakeChecker{known: map[string]bool{"agent-1": true}}
	svc := newTestService(checker, &fakeGateway{})

	first, err := svc.RegisterCrossChainService(context.Background(), "agent-1", []crosschain.Network{crosschain.NetworkCardano})
	if err != nil {
		t.Fatalf("first registration: %v", err)
	}
	stored, err := svc.Get(context.Background(), first.CrossChainID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.AgentID != "agent-1" {
		t.Fatalf("expected stored registration for agent-1, got %s", stored.AgentID)
	}
}

func TestRegisterCrossChainService_rejectsUnknownNetwork(t *testing.T) {
	checker := &fakeChecker{known: map[string]bool{"agent-1": true}}
	svc := newTestService(checker, &fakeGateway{})

	_, err := svc.RegisterCrossChainService(context.Background(), "agent-1", []crosschain.Network{"not-a-real-chain"})
	kind, ok := coreerr.KindOf(err)
	if !ok || kind != coreerr.KindInvalidField {
		t.Fatalf("expected KindInvalidField, got %v", err)
	}
}

func TestRegisterCrossChainService_rejectsUnknownAgent(t *testing.T) {
	checker := &fakeChecker{known: map[string]bool{}}
	svc := newTestService(checker, &fakeGateway{})

	_, err := svc.RegisterCrossChainService(context.Background(), "ghost-agent", []crosschain.Network{crosschain.NetworkCardano})
	kind, ok := coreerr.KindOf(err)
	if !ok || kind != coreerr.KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}

func TestRegisterCrossChainService_rejectsDuplicateNetwork(t *testing.T) {
	checker := &fakeChecker{known: map[string]bool{"agent-1": true}}
	svc := newTestService(checker, &fakeGateway{})

	_, err := svc.RegisterCrossChainService(context.Background(), "agent-1", []crosschain.Network{crosschain.NetworkCardano, crosschain.NetworkCardano})
	kind, ok := coreerr.KindOf(err)
	if !ok || kind != coreerr.KindInvalidField {
		t.Fatalf("expected KindInvalidField for duplicate network, got %v", err)
	}
}
