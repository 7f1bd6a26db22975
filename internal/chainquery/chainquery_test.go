package chainquery_test

import (
	"context"
	"testing"
	"time"

	"github.com/cardanoagents/enhanced-client/internal/chainquery"
	"github.com/cardanoagents/enhanced-client/internal/money"
)

type fakeQuerier struct {
	balanceCalls int
	heightCalls  int
	balance      money.Amount
	height       int64
}

func (f *fakeQuerier) GetAddressBalance(_ context.Context, _ string) (money.Amount, error) {
	f.balanceCalls++
	return f.balance, nil
}

func (f *fakeQuerier) GetCurrentBlockHeight(_ context.Context) (int64, error) {
	f.heightCalls++
	return f.height, nil
}

func TestGetAddressBalance_cachesWithinTTL(t *testing.T) {
	fake := &fakeQuerier{balance: money.FromMicros(5_000_000)}
	c := chainquery.New(fake, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		bal, err := c.GetAddressBalance(ctx, "addr1")
		if err != nil {
			t.Fatalf("GetAddressBalance: %v", err)
		}
		if bal != fake.balance {
			t.Fatalf("expected %s, got %s", fake.balance, bal)
		}
	}
	if fake.balanceCalls != 1 {
		t.Fatalf("expected exactly 1 underlying call, got %d", fake.balanceCalls)
	}
}

func TestGetAddressBalance_refetchesAfterExpiry(t *testing.T) {
	fake := &fakeQuerier{balance: money.FromMicros(1_000_000)}
	c := chainquery.New(fake, time.Millisecond)
	ctx := context.Background()

	if _, err := c.GetAddressBalance(ctx, "addr1"); err != nil {
		t.Fatalf("GetAddressBalance: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := c.GetAddressBalance(ctx, "addr1"); err != nil {
		t.Fatalf("GetAddressBalance: %v", err)
	}
	if fake.balanceCalls != 2 {
		t.Fatalf("expected 2 underlying calls after expiry, got %d", fake.balanceCalls)
	}
}

func TestGetCurrentBlockHeight_cachesWithinTTL(t *testing.T) {
	fake := &fakeQuerier{height: 100}
	c := chainquery.New(fake, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		h, err := c.GetCurrentBlockHeight(ctx)
		if err != nil {
			t.Fatalf("GetCurrentBlockHeight: %v", err)
		}
		if h != 100 {
			t.Fatalf("expected height 100, got %d", h)
		}
	}
	if fake.heightCalls != 1 {
		t.Fatalf("expected exactly 1 underlying call, got %d", fake.heightCalls)
	}
}

func TestEvict_removesExpiredEntries(t *testing.T) {
	fake := &fakeQuerier{balance: money.FromMicros(1), height: 1}
	c := chainquery.New(fake, time.Millisecond)
	ctx := context.Background()

	if _, err := c.GetAddressBalance(ctx, "addr1"); err != nil {
		t.Fatalf("GetAddressBalance: %v", err)
	}
	if _, err := c.GetCurrentBlockHeight(ctx); err != nil {
		t.Fatalf("GetCurrentBlockHeight: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if n := c.Evict(); n != 2 {
		t.Fatalf("expected 2 entries evicted, got %d", n)
	}
}
