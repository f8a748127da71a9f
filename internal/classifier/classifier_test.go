package classifier

import (
	"testing"

	"github.com/atlasbio/atlas-search/pkg/types"
)

func TestClassifySequenceDefaultThreshold(t *testing.T) {
	typed, residual, ok := Classify(types.RawQuery{Text: "GTCAGTCCGTTTGTT"})
	if !ok {
		t.Fatal("expected sequence to classify")
	}
	if typed.Type != types.QueryTypeSequence {
		t.Fatalf("expected sequence type, got %s", typed.Type)
	}
	if typed.Sequence.Sequence != "GTCAGTCCGTTTGTT" {
		t.Errorf("unexpected sequence %q", typed.Sequence.Sequence)
	}
	if typed.Sequence.Threshold != 100 {
		t.Errorf("expected default threshold 100, got %d", typed.Sequence.Threshold)
	}
	if residual.Text != "" {
		t.Errorf("text should be consumed, got %q", residual.Text)
	}
}

func TestClassifySequenceExplicitThreshold(t *testing.T) {
	raw := types.RawQuery{
		Text:   "ACGTACGT",
		Fields: map[string]any{"threshold": 90, "site": "lab-3"},
	}
	typed, residual, ok := Classify(raw)
	if !ok {
		t.Fatal("expected sequence to classify")
	}
	if typed.Sequence.Threshold != 90 {
		t.Errorf("expected threshold 90, got %d", typed.Sequence.Threshold)
	}
	if _, present := residual.Fields["threshold"]; present {
		t.Error("threshold should be consumed from residual")
	}
	if residual.Fields["site"] != "lab-3" {
		t.Error("unconsumed fields must survive in residual")
	}
	// JSON-decoded numbers arrive as float64
	typed, _, _ = Classify(types.RawQuery{Text: "ACGT", Fields: map[string]any{"threshold": float64(75)}})
	if typed.Sequence.Threshold != 75 {
		t.Errorf("expected threshold 75 from float64, got %d", typed.Sequence.Threshold)
	}
}

func TestClassifyProteinVariant(t *testing.T) {
	typed, _, ok := Classify(types.RawQuery{Text: "rpoB_S450L"})
	if !ok {
		t.Fatal("expected protein variant to classify")
	}
	if typed.Type != types.QueryTypeProteinVariant {
		t.Fatalf("expected protein-variant type, got %s", typed.Type)
	}
	pv := typed.ProteinVariant
	if pv.Gene != "rpoB" || pv.Ref != "S" || pv.Pos != 450 || pv.Alt != "L" {
		t.Errorf("unexpected parse: %+v", pv)
	}
}

func TestClassifyProteinVariantStructuredOverride(t *testing.T) {
	raw := types.RawQuery{
		Text:   "rpoB_S450L",
		Fields: map[string]any{"gene": "rpoB2"},
	}
	typed, residual, ok := Classify(raw)
	if !ok {
		t.Fatal("expected protein variant to classify")
	}
	if typed.ProteinVariant.Gene != "rpoB2" {
		t.Errorf("structured gene must win over parsed text, got %q", typed.ProteinVariant.Gene)
	}
	if _, present := residual.Fields["gene"]; present {
		t.Error("gene should be consumed from residual")
	}
	// the input raw query must not be mutated
	if raw.Fields["gene"] != "rpoB2" {
		t.Error("input raw query was mutated")
	}
}

func TestClassifyDNAVariant(t *testing.T) {
	typed, _, ok := Classify(types.RawQuery{Text: "C761T"})
	if !ok {
		t.Fatal("expected dna variant to classify")
	}
	if typed.Type != types.QueryTypeDNAVariant {
		t.Fatalf("expected dna-variant type, got %s", typed.Type)
	}
	dv := typed.DNAVariant
	if dv.Ref != "C" || dv.Pos != 761 || dv.Alt != "T" {
		t.Errorf("unexpected parse: %+v", dv)
	}

	typed, _, ok = Classify(types.RawQuery{Text: "XX100ACG"})
	if !ok || typed.DNAVariant.Ref != "XX" || typed.DNAVariant.Pos != 100 || typed.DNAVariant.Alt != "ACG" {
		t.Errorf("wildcard variant parse failed: %+v ok=%v", typed.DNAVariant, ok)
	}
}

func TestClassifyPrecedence(t *testing.T) {
	// pure A/C/G/T text is a sequence even though single bases are also valid
	// amino-acid letters or variant fragments
	typed, _, ok := Classify(types.RawQuery{Text: "ACGT"})
	if !ok || typed.Type != types.QueryTypeSequence {
		t.Fatalf("ambiguous text must resolve to sequence, got %v ok=%v", typed.Type, ok)
	}
}

func TestClassifyMiss(t *testing.T) {
	for _, text := range []string{"", "resistant samples", "acgt", "rpoB_", "123", "S450L_rpoB"} {
		if _, _, ok := Classify(types.RawQuery{Text: text}); ok {
			t.Errorf("%q should not classify", text)
		}
	}
	// a miss keeps the raw query intact for the fallback filter path
	raw := types.RawQuery{Text: "phenotype:resistant", Fields: map[string]any{"site": "lab-1"}}
	_, residual, _ := Classify(raw)
	if residual.Text != raw.Text || residual.Fields["site"] != "lab-1" {
		t.Error("residual must carry the full raw query on a miss")
	}
}
