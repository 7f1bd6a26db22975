package notify_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cardanoagents/enhanced-client/internal/notify"
)

func newTestService() (*notify.Service, *notify.MemoryRepository) {
	repo := notify.NewMemoryRepository()
	return notify.NewService(repo, zap.NewNop()), repo
}

func TestSubscribe_generatesSecretAndPersists(t *testing.T) {
	svc, _ := newTestService()

	sub, err := svc.Subscribe(context.Background(), "addr1agent", &notify.SubscribeRequest{
		URL:    "https://example.com/hook",
		Events: []string{notify.EventEscrowReleased},
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if sub.Secret == "" {
		t.Fatal("expected a generated secret")
	}
	if !sub.Active {
		t.Fatal("expected new subscription to be active")
	}
}

func TestUnsubscribe_rejectsWrongSubject(t *testing.T) {
	svc, _ := newTestService()
	sub, err := svc.Subscribe(context.Background(), "addr1agent", &notify.SubscribeRequest{
		URL:    "https://example.com/hook",
		Events: []string{notify.EventEscrowReleased},
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := svc.Unsubscribe(context.Background(), "addr1someoneelse", sub.ID); err == nil {
		t.Fatal("expected unauthorized error")
	}
	if err := svc.Unsubscribe(context.Background(), "addr1agent", sub.ID); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
}

func TestDispatch_deliversSignedPayload(t *testing.T) {
	var (
		mu        sync.Mutex
		gotBody   []byte
		gotSig    string
		delivered = make(chan struct{}, 1)
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Enhanced-Client-Signature")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		delivered <- struct{}{}
	}))
	defer server.Close()

	svc, repo := newTestService()
	sub, err := svc.Subscribe(context.Background(), "addr1agent", &notify.SubscribeRequest{
		URL:    server.URL,
		Events: []string{notify.EventRevenueDistributed},
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	svc.Dispatch(context.Background(), notify.EventRevenueDistributed, map[string]string{"period_id": "2026-q1"})

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotSig == "" {
		t.Fatal("expected a signature header")
	}
	mac := hmac.New(sha256.New, []byte(sub.Secret))
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSig != want {
		t.Fatalf("signature mismatch: got %s want %s", gotSig, want)
	}

	var evt notify.Event
	if err := json.Unmarshal(gotBody, &evt); err != nil {
		t.Fatalf("unmarshal delivered event: %v", err)
	}
	if evt.Type != notify.EventRevenueDistributed {
		t.Fatalf("unexpected event type: %s", evt.Type)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		deliveries, _ := repo.ListBySubject(context.Background(), "addr1agent")
		if len(deliveries) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestReplayDeadLetter_resendsAndResolves(t *testing.T) {
	var delivered int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&delivered, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc, repo := newTestService()
	sub, err := svc.Subscribe(context.Background(), "addr1agent", &notify.SubscribeRequest{
		URL:    server.URL,
		Events: []string{notify.EventEscrowReleased},
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	body, _ := json.Marshal(notify.Event{Type: notify.EventEscrowReleased, Timestamp: time.Now().UTC(), Payload: map[string]string{"escrow_id": "e1"}})
	dl := &notify.DeadLetter{SubscriptionID: sub.ID, EventType: notify.EventEscrowReleased, EventBody: body, Attempts: 3, LastError: "HTTP 500"}
	if err := repo.RecordDeadLetter(context.Background(), dl); err != nil {
		t.Fatalf("record dead letter: %v", err)
	}

	if err := svc.ReplayDeadLetter(context.Background(), dl.ID); err != nil {
		t.Fatalf("replay dead letter: %v", err)
	}
	if atomic.LoadInt32(&delivered) != 1 {
		t.Fatalf("expected one redelivery attempt, got %d", delivered)
	}

	letters, err := svc.ListDeadLetters(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("list dead letters: %v", err)
	}
	if len(letters) != 1 || !letters[0].Resolved {
		t.Fatalf("expected the dead letter to be marked resolved, got %+v", letters)
	}
}

func TestReplayDeadLetter_alreadyResolvedReturnsError(t *testing.T) {
	svc, repo := newTestService()
	sub, err := svc.Subscribe(context.Background(), "addr1agent", &notify.SubscribeRequest{
		URL:    "https://example.com/hook",
		Events: []string{notify.EventEscrowReleased},
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	dl := &notify.DeadLetter{SubscriptionID: sub.ID, EventType: notify.EventEscrowReleased, EventBody: []byte(`{}`), Resolved: true}
	if err := repo.RecordDeadLetter(context.Background(), dl); err != nil {
		t.Fatalf("record dead letter: %v", err)
	}

	if err := svc.ReplayDeadLetter(context.Background(), dl.ID); err == nil {
		t.Fatal("expected error replaying an already-resolved dead letter")
	}
}

func TestDispatch_skipsSubscriptionsNotMatchingEvent(t *testing.T) {
	called := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc, _ := newTestService()
	_, err := svc.Subscribe(context.Background(), "addr1agent", &notify.SubscribeRequest{
		URL:    server.URL,
		Events: []string{notify.EventEscrowReleased},
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	svc.Dispatch(context.Background(), notify.EventCrossChainRegistered, map[string]string{})

	select {
	case <-called:
		t.Fatal("delivery should not have fired for a non-subscribed event")
	case <-time.After(200 * time.Millisecond):
	}
}
