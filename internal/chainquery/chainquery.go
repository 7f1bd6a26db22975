// Package chainquery wraps the blockchain-query boundary client
// (pkg/client) with a short-TTL cache, per spec.md §6: "opaque; exposes
// get_address_balance(address) → Decimal and get_current_block_height() →
// integer." Both are suspension points during stake verification
// (spec.md §5), so cutting repeat lookups to the external Blockfrost-class
// API matters for the Registry's stake-checking hot path.
//
// Adapted from the teacher's internal/resolver cache: the same
// entry/expiresAt/TTL-eviction shape, generalised from caching resolved
// agent endpoints to caching chain-query results.
package chainquery

import (
	"context"
	"sync"
	"time"

	"github.com/cardanoagents/enhanced-client/internal/money"
)

// Querier is the underlying chain-query API boundary; satisfied by
// *pkg/client.Client.
type Querier interface {
	GetAddressBalance(ctx context.Context, address string) (money.Amount, error)
	GetCurrentBlockHeight(ctx context.Context) (int64, error)
}

type balanceEntry struct {
	balance   money.Amount
	expiresAt time.Time
}

type heightEntry struct {
	height    int64
	expiresAt time.Time
}

// CachingClient caches get_address_balance results per-address and
// get_current_block_height results globally, both for ttl.
type CachingClient struct {
	inner Querier
	ttl   time.Duration

	mu       sync.Mutex
	balances map[string]balanceEntry
	height   *heightEntry
}

// New wraps inner with a cache of the given TTL (configured by
// chainquery.cache_ttl in cmd/agentcore; default 10s).
func New(inner Querier, ttl time.Duration) *CachingClient {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &CachingClient{
		inner:    inner,
		ttl:      ttl,
		balances: make(map[string]balanceEntry),
	}
}

// GetAddressBalance returns the cached balance for address if still fresh,
// otherwise queries the underlying client and caches the result.
func (c *CachingClient) GetAddressBalance(ctx context.Context, address string) (money.Amount, error) {
	now := time.Now()

	c.mu.Lock()
	if entry, ok := c.balances[address]; ok && now.Before(entry.expiresAt) {
		c.mu.Unlock()
		return entry.balance, nil
	}
	c.mu.Unlock()

	balance, err := c.inner.GetAddressBalance(ctx, address)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.balances[address] = balanceEntry{balance: balance, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()
	return balance, nil
}

// GetCurrentBlockHeight returns the cached block height if still fresh,
// otherwise queries the underlying client and caches the result.
func (c *CachingClient) GetCurrentBlockHeight(ctx context.Context) (int64, error) {
	now := time.Now()

	c.mu.Lock()
	if c.height != nil && now.Before(c.height.expiresAt) {
		h := c.height.height
		c.mu.Unlock()
		return h, nil
	}
	c.mu.Unlock()

	height, err := c.inner.GetCurrentBlockHeight(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.height = &heightEntry{height: height, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()
	return height, nil
}

// Evict removes every expired entry from the balance cache and clears the
// block-height entry if expired, reclaiming memory from addresses that are
// no longer queried. Intended to run on a periodic background tick.
func (c *CachingClient) Evict() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for addr, entry := range c.balances {
		if !now.Before(entry.expiresAt) {
			delete(c.balances, addr)
			n++
		}
	}
	if c.height != nil && !now.Before(c.height.expiresAt) {
		c.height = nil
		n++
	}
	return n
}
