package rerank

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/clweng/plaintgen/internal/model"
)

type fakeParagraphs struct {
	vectors map[string][][]float32
	err     error
	calls   int
}

func (f *fakeParagraphs) ParagraphVectors(ctx context.Context, caseID, label string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[caseID], nil
}

func records(ids ...string) []model.CaseRecord {
	out := make([]model.CaseRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.CaseRecord{CaseID: id, Source: model.SourceVector})
	}
	return out
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0.0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0.0},
		{"empty", nil, nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRerank_OrderAndThreshold(t *testing.T) {
	query := []float32{1, 0}
	source := &fakeParagraphs{vectors: map[string][][]float32{
		"case-high": {{1, 0.1}},          // ~0.995
		"case-mid":  {{1, 1}},            // ~0.707
		"case-low":  {{0.1, 1}},          // ~0.0995, below threshold
		"case-best": {{0, 1}, {1, 0.05}}, // max-pool picks the second paragraph
	}}
	r := New(source, nil, nil)

	set, err := r.Rerank(context.Background(), query, records("case-mid", "case-low", "case-high", "case-best"), 0.5)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}

	ids := set.CaseIDs()
	if len(ids) != 3 {
		t.Fatalf("Expected 3 survivors, got %v", ids)
	}
	// Max-pool rewards case-best's second paragraph over case-high's only one.
	if ids[0] != "case-best" {
		t.Errorf("Best paragraph match should lead: %v", ids)
	}
	for i := 1; i < len(set.Cases); i++ {
		if set.Cases[i].ParagraphScore > set.Cases[i-1].ParagraphScore {
			t.Errorf("Scores must be non-increasing: %+v", set.Cases)
		}
	}
	for _, id := range ids {
		if id == "case-low" {
			t.Error("Below-threshold case must be dropped")
		}
	}
	if set.MinScore != 0.5 {
		t.Errorf("Expected recorded threshold 0.5, got %v", set.MinScore)
	}
}

func TestRerank_SubsetProperty(t *testing.T) {
	query := []float32{1, 0}
	source := &fakeParagraphs{vectors: map[string][][]float32{
		"case-1": {{1, 0}},
		"case-2": {{0.9, 0.1}},
	}}
	r := New(source, nil, nil)

	input := records("case-1", "case-2", "case-unknown")
	set, err := r.Rerank(context.Background(), query, input, 0)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}

	inputIDs := make(map[string]bool)
	for _, c := range input {
		inputIDs[c.CaseID] = true
	}
	for _, c := range set.Cases {
		if !inputIDs[c.CaseID] {
			t.Errorf("Output case %s not in input", c.CaseID)
		}
	}
	if len(set.Cases) > len(input) {
		t.Error("Output larger than input")
	}
}

func TestRerank_SkipsMissingParagraphs(t *testing.T) {
	query := []float32{1, 0}
	source := &fakeParagraphs{vectors: map[string][][]float32{
		"case-1": {{1, 0}},
		// case-2 has no indexed paragraphs
	}}
	r := New(source, nil, nil)

	set, err := r.Rerank(context.Background(), query, records("case-1", "case-2"), 0)
	if err != nil {
		t.Fatalf("Missing paragraphs must not fail the rerank: %v", err)
	}
	if len(set.Cases) != 1 || set.Cases[0].CaseID != "case-1" {
		t.Errorf("Expected only the indexed case, got %v", set.CaseIDs())
	}
}

func TestRerank_Deterministic(t *testing.T) {
	query := []float32{1, 0.2}
	source := &fakeParagraphs{vectors: map[string][][]float32{
		"case-1": {{1, 0}},
		"case-2": {{1, 0}}, // identical score, retrieval order must hold
		"case-3": {{0.8, 0.6}},
	}}
	r := New(source, nil, nil)

	first, err := r.Rerank(context.Background(), query, records("case-2", "case-1", "case-3"), 0)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}
	second, err := r.Rerank(context.Background(), query, records("case-2", "case-1", "case-3"), 0)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}

	firstIDs := first.CaseIDs()
	secondIDs := second.CaseIDs()
	for i := range firstIDs {
		if firstIDs[i] != secondIDs[i] {
			t.Fatalf("Order changed between runs: %v vs %v", firstIDs, secondIDs)
		}
	}

	// Equal scores keep input order.
	if firstIDs[0] != "case-2" || firstIDs[1] != "case-1" {
		t.Errorf("Ties must keep retrieval order, got %v", firstIDs)
	}
}

func TestRerank_SourceError(t *testing.T) {
	r := New(&fakeParagraphs{err: errors.New("index unavailable")}, nil, nil)

	_, err := r.Rerank(context.Background(), []float32{1}, records("case-1"), 0)
	if err == nil {
		t.Fatal("Expected transport error to surface")
	}
}
