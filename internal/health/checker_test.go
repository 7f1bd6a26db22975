package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// ── Stubs ────────────────────────────────────────────────────────────────

type stubLister struct {
	agents []EndpointAgent
}

func (s *stubLister) ListActiveEndpoints(_ context.Context) ([]EndpointAgent, error) {
	return s.agents, nil
}

type stubRecorder struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func newStubRecorder() *stubRecorder {
	return &stubRecorder{lastSeen: make(map[string]time.Time)}
}

func (s *stubRecorder) MarkLiveness(_ context.Context, agentID string, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen[agentID] = seenAt
	return nil
}

func (s *stubRecorder) get(agentID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lastSeen[agentID]
	return t, ok
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestProbeEndpoint_success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	checker := New(nil, nil, Config{ProbeTimeout: 5 * time.Second}, zap.NewNop())
	if !checker.probeEndpoint(context.Background(), srv.URL) {
		t.Error("expected probe to succeed")
	}
}

func TestProbeEndpoint_failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	checker := New(nil, nil, Config{ProbeTimeout: 5 * time.Second}, zap.NewNop())
	if checker.probeEndpoint(context.Background(), srv.URL) {
		t.Error("expected probe to fail")
	}
}

func TestCheckAll_degradesAfterThresholdAndFiresWebhook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	lister := &stubLister{agents: []EndpointAgent{
		{AgentID: "agent_tax-advisor", Endpoint: srv.URL},
	}}
	recorder := newStubRecorder()

	checker := New(lister, recorder, Config{
		ProbeTimeout:  5 * time.Second,
		FailThreshold: 3,
	}, zap.NewNop())

	var fired map[string]string
	checker.SetWebhookDispatch(func(_ context.Context, eventType string, payload map[string]string) {
		if eventType == "agent.health_degraded" {
			fired = payload
		}
	})

	// Run 3 times to hit the threshold.
	for i := 0; i < 3; i++ {
		checker.CheckAll(context.Background())
	}

	if fired == nil {
		t.Fatal("expected agent.health_degraded webhook to fire")
	}
	if fired["agent_id"] != "agent_tax-advisor" {
		t.Errorf("unexpected agent_id in webhook payload: %q", fired["agent_id"])
	}
	if _, seen := recorder.get("agent_tax-advisor"); seen {
		t.Error("liveness should not be recorded while every probe fails")
	}
}

func TestCheckAll_recoversOnSuccessAdvancesLiveness(t *testing.T) {
	failCount := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failCount < 3 {
			failCount++
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	lister := &stubLister{agents: []EndpointAgent{
		{AgentID: "agent_checkout-bot", Endpoint: srv.URL},
	}}
	recorder := newStubRecorder()

	checker := New(lister, recorder, Config{
		ProbeTimeout:  5 * time.Second,
		FailThreshold: 3,
	}, zap.NewNop())

	// Fail 3 times, then succeed.
	for i := 0; i < 4; i++ {
		checker.CheckAll(context.Background())
	}

	seenAt, ok := recorder.get("agent_checkout-bot")
	if !ok {
		t.Fatal("expected liveness to be recorded after recovery")
	}
	if time.Since(seenAt) > time.Minute {
		t.Errorf("recorded liveness timestamp looks stale: %s", seenAt)
	}
}
