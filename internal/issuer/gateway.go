// Package issuer implements the NFT Issuer Gateway (C2): it builds CIP-25
// metadata, submits mint requests to an external NMKR-class issuer, and
// returns transaction identifiers. Callers depend on the Gateway interface,
// never a concrete HTTP client directly, so the facade can inject a test
// double (spec.md §9's redesign flag against package-level singleton
// clients).
package issuer

import "context"

// MintRequest is submitted to the external issuer.
type MintRequest struct {
	AssetName        string
	RecipientAddress string
	PolicyID         string
	Metadata         map[string]any // CIP-25-style, built by pkg/cip25
}

// MintResult is returned by a successful mint submission.
type MintResult struct {
	TransactionID string
	AssetID       string
}

// Gateway is the C2 boundary. Implementations must suspend (not block)
// callers at this call per spec.md §5's scheduling model.
type Gateway interface {
	Mint(ctx context.Context, req MintRequest) (*MintResult, error)
}
