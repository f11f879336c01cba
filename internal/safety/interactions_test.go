package safety

import (
	"strings"
	"testing"
)

func TestCheckInteractionsFlagsKnownPair(t *testing.T) {
	warnings := CheckInteractions("Warfarin 2mg evening", []string{"Aspirin 81mg daily"})
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d: %+v", len(warnings), warnings)
	}
	w := warnings[0]
	if w.NewDrug != "warfarin" || w.ExistingDrug != "aspirin" {
		t.Errorf("unexpected pair: %s vs %s", w.NewDrug, w.ExistingDrug)
	}
	if w.ExistingTitle != "Aspirin 81mg daily" {
		t.Errorf("unexpected existing title %q", w.ExistingTitle)
	}
	if !strings.Contains(w.Message, "warfarin") || !strings.Contains(w.Message, "aspirin") {
		t.Errorf("message does not name both drugs: %q", w.Message)
	}
}

func TestCheckInteractionsCaseAndPunctuationInsensitive(t *testing.T) {
	warnings := CheckInteractions("WARFARIN, 2mg", []string{"aspirin; 81mg"})
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
}

func TestCheckInteractionsNoMatchNoWarnings(t *testing.T) {
	if warnings := CheckInteractions("Paracetamol 500mg", []string{"Warfarin 2mg"}); len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %+v", warnings)
	}
	if warnings := CheckInteractions("Warfarin 2mg", nil); len(warnings) != 0 {
		t.Fatalf("expected no warnings against empty list, got %+v", warnings)
	}
}

func TestCheckInteractionsDedupsRepeatedPairs(t *testing.T) {
	warnings := CheckInteractions("Warfarin 2mg", []string{"Aspirin 81mg", "Aspirin 325mg"})
	if len(warnings) != 1 {
		t.Fatalf("expected the warfarin/aspirin pair once, got %d: %+v", len(warnings), warnings)
	}
}

func TestCheckInteractionsMultipleDistinctPairs(t *testing.T) {
	warnings := CheckInteractions("Ibuprofen 400mg", []string{"Warfarin 2mg", "Lithium 300mg"})
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d: %+v", len(warnings), warnings)
	}
	pairs := make(map[string]bool)
	for _, w := range warnings {
		pairs[w.NewDrug+"/"+w.ExistingDrug] = true
	}
	if !pairs["ibuprofen/warfarin"] || !pairs["ibuprofen/lithium"] {
		t.Errorf("unexpected pairs: %v", pairs)
	}
}
