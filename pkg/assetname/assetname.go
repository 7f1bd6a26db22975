// Package assetname derives CIP-25 asset names and policy ids for the
// objects the NFT Issuer Gateway (C2) mints: escrow settlements,
// cross-chain service advertisements, and revenue reward claims. Asset
// names must be short, stable,
// and collision-resistant across the object's identifier space.
//
// Generalised from the teacher's pkg/uri, which parsed and validated the
// agent:// URI scheme with the same "fixed prefix + validated segments"
// discipline applied here to asset names instead of URIs.
package assetname

import (
	"fmt"
	"strings"
)

const (
	settlementPrefix = "settlement_"
	crosschainPrefix = "xchain_"
	claimPrefix      = "claim_"

	maxAssetNameLen = 64 // CIP-25 asset names are bounded; stay well under chain limits
)

// ForSettlement derives the asset name minted when an escrow settles.
func ForSettlement(escrowID string) string {
	return truncate(settlementPrefix + sanitize(escrowID))
}

// ForCrossChainRegistration derives the asset name minted for a
// cross-chain service advertisement.
func ForCrossChainRegistration(agentID, network string) string {
	return truncate(crosschainPrefix + sanitize(agentID) + "_" + sanitize(network))
}

// ForClaim derives the asset name for a revenue-distribution reward claim
// transfer, keyed by recipient and claim sequence so repeated claims by the
// same recipient never collide.
func ForClaim(recipient string, sequence int64) string {
	return truncate(fmt.Sprintf("%s%s_%d", claimPrefix, sanitize(recipient), sequence))
}

// Validate checks that name is non-empty, within length bounds, and free of
// characters CIP-25 asset names must not contain.
func Validate(name string) error {
	if name == "" {
		return fmt.Errorf("asset name must not be empty")
	}
	if len(name) > maxAssetNameLen {
		return fmt.Errorf("asset name %q exceeds %d characters", name, maxAssetNameLen)
	}
	if strings.ContainsAny(name, " \t\n/\\?#") {
		return fmt.Errorf("asset name %q contains invalid characters", name)
	}
	return nil
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func truncate(s string) string {
	if len(s) <= maxAssetNameLen {
		return s
	}
	return s[:maxAssetNameLen]
}
