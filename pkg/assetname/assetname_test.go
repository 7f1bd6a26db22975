package assetname_test

import (
	"strings"
	"testing"

	"github.com/cardanoagents/enhanced-client/pkg/assetname"
)

func TestForSettlement_isStableAndValid(t *testing.T) {
	name := assetname.ForSettlement("escrow-abc-123")
	if !strings.HasPrefix(name, "settlement_") {
		t.Errorf("expected settlement_ prefix, got %q", name)
	}
	if err := assetname.Validate(name); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
	if assetname.ForSettlement("escrow-abc-123") != name {
		t.Error("expected deterministic output for same input")
	}
}

func TestForCrossChainRegistration_includesNetwork(t *testing.T) {
	name := assetname.ForCrossChainRegistration("agent-1", "ethereum")
	if !strings.Contains(name, "ethereum") {
		t.Errorf("expected network in asset name, got %q", name)
	}
}

func TestValidate_rejectsInvalidCharacters(t *testing.T) {
	if err := assetname.Validate("has space"); err == nil {
		t.Fatal("expected error for space in asset name")
	}
	if err := assetname.Validate(""); err == nil {
		t.Fatal("expected error for empty asset name")
	}
}
