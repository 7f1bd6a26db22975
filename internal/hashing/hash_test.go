package hashing

import "testing"

func TestHashDeterministicRegardlessOfKeyOrder(t *testing.T) {
	a := map[string]any{"b": 2, "a": 1, "c": map[string]any{"y": "2", "x": "1"}}
	b := map[string]any{"c": map[string]any{"x": "1", "y": "2"}, "a": 1, "b": 2}

	ha, err := Hash(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := Hash(b)
	if err != nil {
		t.Fatal(err)
	}
	if ha != hb {
		t.Fatalf("hashes differ for deeply equal records: %s != %s", ha, hb)
	}
	if len(ha) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(ha))
	}
}

func TestHashRejectsNonFiniteNumbers(t *testing.T) {
	_, err := Hash(map[string]any{"x": "ok"})
	if err != nil {
		t.Fatalf("unexpected error on valid input: %v", err)
	}
	var nan float64
	nan = nan / nan
	if _, err := Hash(map[string]any{"x": nan}); err == nil {
		t.Fatal("expected error for NaN")
	}
}

func TestHashDiffersForDifferentContent(t *testing.T) {
	h1, _ := Hash(map[string]any{"a": 1})
	h2, _ := Hash(map[string]any{"a": 2})
	if h1 == h2 {
		t.Fatal("expected different hashes for different content")
	}
}
