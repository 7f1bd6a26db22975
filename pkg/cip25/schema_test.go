package cip25_test

import (
	"testing"

	"github.com/cardanoagents/enhanced-client/pkg/cip25"
)

func TestBuild_validRoundTrip(t *testing.T) {
	meta := cip25.Build("policy123", "settlement_escrow_1", cip25.SettlementAsset(
		"Escrow Settlement", "proof of execution", "rule_based_scoring", "task completed", "abc123",
	))
	if err := meta.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	m := meta.ToMap()
	policy, ok := m["policy123"].(map[string]any)
	if !ok {
		t.Fatalf("expected policy123 key, got %+v", m)
	}
	asset, ok := policy["settlement_escrow_1"].(map[string]any)
	if !ok {
		t.Fatalf("expected asset entry, got %+v", policy)
	}
	if asset["name"] != "Escrow Settlement" {
		t.Errorf("unexpected name: %v", asset["name"])
	}
	props, ok := asset["properties"].(map[string]any)
	if !ok || props["verification"] != "abc123" {
		t.Errorf("unexpected properties: %+v", asset["properties"])
	}
}

func TestValidate_rejectsEmptyMetadata(t *testing.T) {
	var meta cip25.Metadata
	if err := meta.Validate(); err == nil {
		t.Fatal("expected error for empty metadata")
	}
}

func TestValidate_rejectsMissingAssetName(t *testing.T) {
	meta := cip25.Metadata{
		"policy": {
			"asset1": cip25.Asset{}, // missing Name
		},
	}
	if err := meta.Validate(); err == nil {
		t.Fatal("expected error for asset missing a name")
	}
}
