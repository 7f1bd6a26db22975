package audit

import "context"

// Ledger is the append-only Merkle-chain audit interface. Both MemoryLedger
// and PostgresLedger implement it.
type Ledger interface {
	// Append adds a new entry chained to the previous one. payload is
	// canonically hashed via C1 and the digest is stored as DataHash.
	Append(ctx context.Context, subject, action, actor string, payload any) (*Entry, error)

	// Get returns the entry at the given zero-based index.
	Get(ctx context.Context, index int) (*Entry, error)

	// Len returns the total number of entries (including genesis).
	Len(ctx context.Context) (int, error)

	// Verify walks the entire chain and checks hash consistency.
	Verify(ctx context.Context) error

	// Root returns the hash of the chain tip.
	Root(ctx context.Context) (string, error)
}
