package facade_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/cardanoagents/enhanced-client/internal/audit"
	"github.com/cardanoagents/enhanced-client/internal/facade"
	registryrepository "github.com/cardanoagents/enhanced-client/internal/registry/repository"
	registryservice "github.com/cardanoagents/enhanced-client/internal/registry/service"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	registrySvc := registryservice.New(registryrepository.NewMemoryRepository(), audit.New(), zap.NewNop())
	return facade.NewRouter(facade.Config{RateLimitRPS: 0}, facade.Components{
		Registry: registrySvc,
	}, zap.NewNop())
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(raw)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterAgent_badStakeFormatReturns400(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/agents", map[string]any{
		"agent_id":      "agent-1",
		"owner_address": "addr1",
		"capabilities":  []string{"web_automation"},
		"stake":         "not-a-number",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterAgent_insufficientStakeMapsTo400WithKind(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/agents", map[string]any{
		"agent_id":      "agent-1",
		"owner_address": "addr1",
		"capabilities":  []string{"web_automation"},
		"stake":         "50",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["kind"] != "InsufficientStake" {
		t.Fatalf("expected kind=InsufficientStake, got %v", body["kind"])
	}
}

func TestRegisterAgent_thenGetAgent_roundTrips(t *testing.T) {
	router := newTestRouter(t)

	createRec := doJSON(t, router, http.MethodPost, "/api/v1/agents", map[string]any{
		"agent_id":      "agent-1",
		"owner_address": "addr1",
		"metadata_uri":  "https://agent.example.com/meta",
		"capabilities":  []string{"web_automation"},
		"stake":         "200000000",
	})
	if createRec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", createRec.Code, createRec.Body.String())
	}

	getRec := doJSON(t, router, http.MethodGet, "/api/v1/agents/agent-1", nil)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", getRec.Code, getRec.Body.String())
	}

	var view map[string]any
	if err := json.Unmarshal(getRec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode agent view: %v", err)
	}
	if view["AgentID"] != "agent-1" {
		t.Fatalf("expected AgentID agent-1, got %v", view["AgentID"])
	}
}

func TestGetAgent_unknownIDReturns404(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/agents/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRequestDomainChallenge_returnsTXTRecordDetails(t *testing.T) {
	router := newTestRouter(t)

	createRec := doJSON(t, router, http.MethodPost, "/api/v1/agents", map[string]any{
		"agent_id":      "agent-1",
		"owner_address": "addr1",
		"metadata_uri":  "https://agent.example.com/meta",
		"capabilities":  []string{"web_automation"},
		"stake":         "200000000",
	})
	if createRec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", createRec.Code, createRec.Body.String())
	}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/agents/agent-1/domain-challenge", map[string]any{
		"domain": "agent.example.com",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode challenge body: %v", err)
	}
	if body["domain"] != "agent.example.com" {
		t.Fatalf("expected domain echoed back, got %v", body["domain"])
	}
	if body["txt_host"] == "" || body["txt_record"] == "" {
		t.Fatal("expected non-empty txt_host and txt_record")
	}
}

func TestConfirmDomainChallenge_expiredChallengeReturns422(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/agents/agent-1/domain-challenge/confirm", map[string]any{
		"domain":     "agent.example.com",
		"txt_record": "agentcore-challenge=deadbeef",
		"expires_at": "2000-01-01T00:00:00Z",
	})

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}
