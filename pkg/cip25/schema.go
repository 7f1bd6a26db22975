// Package cip25 builds CIP-25-style NFT metadata: a nested map keyed by
// policy id then asset name, carrying name/description/image and a
// properties sub-map for domain attributes (methodology, results,
// verification) — the schema the NFT Issuer Gateway (C2) submits to the
// external issuer per spec.md §6.
//
// Generalised from the teacher's pkg/agentcard, which built a different
// nested-map-of-metadata JSON document (the .well-known agent card) with
// the same Validate-before-use discipline.
package cip25

import "fmt"

// Asset is a single CIP-25 asset entry: name, description, image, and a
// free-form properties map for domain attributes.
type Asset struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Image       string         `json:"image,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// Metadata is the full CIP-25 document: policy id → asset name → Asset.
type Metadata map[string]map[string]Asset

// Build constructs a single-asset CIP-25 metadata document for one mint
// request. This is the common case the Escrow Engine and Cross-Chain
// Directory both use: one settlement or registration, one asset.
func Build(policyID, assetName string, asset Asset) Metadata {
	return Metadata{
		policyID: {
			assetName: asset,
		},
	}
}

// ToMap renders the metadata as a plain nested map[string]any, the shape
// the issuer.Gateway interface's MintRequest.Metadata field expects.
func (m Metadata) ToMap() map[string]any {
	out := make(map[string]any, len(m))
	for policyID, assets := range m {
		assetMap := make(map[string]any, len(assets))
		for name, a := range assets {
			entry := map[string]any{"name": a.Name}
			if a.Description != "" {
				entry["description"] = a.Description
			}
			if a.Image != "" {
				entry["image"] = a.Image
			}
			if len(a.Properties) > 0 {
				entry["properties"] = a.Properties
			}
			assetMap[name] = entry
		}
		out[policyID] = assetMap
	}
	return out
}

// Validate checks that every asset entry carries the required fields.
func (m Metadata) Validate() error {
	if len(m) == 0 {
		return fmt.Errorf("cip25: metadata must declare at least one policy id")
	}
	for policyID, assets := range m {
		if policyID == "" {
			return fmt.Errorf("cip25: policy id must not be empty")
		}
		if len(assets) == 0 {
			return fmt.Errorf("cip25: policy %q declares no assets", policyID)
		}
		for assetName, a := range assets {
			if assetName == "" {
				return fmt.Errorf("cip25: asset name under policy %q must not be empty", policyID)
			}
			if a.Name == "" {
				return fmt.Errorf("cip25: asset %q/%q requires a name", policyID, assetName)
			}
		}
	}
	return nil
}

// SettlementAsset builds the CIP-25 properties sub-map for an escrow
// settlement: methodology, results, and verification fields per spec.md's
// proof-of-execution model.
func SettlementAsset(name, description string, methodology string, resultSummary string, verificationHash string) Asset {
	return Asset{
		Name:        name,
		Description: description,
		Properties: map[string]any{
			"methodology":  methodology,
			"results":      resultSummary,
			"verification": verificationHash,
		},
	}
}
