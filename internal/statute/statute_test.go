package statute

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/clweng/plaintgen/internal/graph"
	"github.com/clweng/plaintgen/internal/llm"
	"github.com/clweng/plaintgen/internal/model"
	"github.com/clweng/plaintgen/internal/parse"
)

type fakeSource struct {
	cited []graph.CaseStatutes
	err   error
	calls int
}

func (f *fakeSource) CitedStatutes(ctx context.Context, caseIDs []string) ([]graph.CaseStatutes, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.cited, nil
}

type fakeProvider struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeProvider) Name() string                          { return "fake" }
func (f *fakeProvider) IsAvailable(ctx context.Context) bool  { return true }
func (f *fakeProvider) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	f.prompts = append(f.prompts, req.Prompt)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.GenerateResponse{Text: f.response}, nil
}

func TestCompareIDs(t *testing.T) {
	ordered := []string{
		"民法第184條第1項前段",
		"民法第185條",
		"民法第187條",
		"民法第190條",
		"民法第191-2條",
		"民法第193條第1項",
		"民法第195條第1項前段",
		"民法第213條",
	}

	for i := 0; i < len(ordered)-1; i++ {
		a, b := ordered[i], ordered[i+1]
		if CompareIDs(a, b) != -1 {
			t.Errorf("CompareIDs(%q, %q) should be -1", a, b)
		}
		if CompareIDs(b, a) != 1 {
			t.Errorf("CompareIDs(%q, %q) should be 1", b, a)
		}
	}
	if CompareIDs("民法第185條", "民法第185條") != 0 {
		t.Error("Identical IDs should compare equal")
	}
}

func TestMatchKeywords(t *testing.T) {
	got := MatchKeywords(
		"被告騎乘機車沿市區道路行駛，因過失撞擊原告",
		"原告受有骨折，精神上痛苦非輕",
		"支出醫療費用50,000元",
	)
	want := []string{
		"民法第184條第1項前段", // 過失
		"民法第191-2條",      // 機車
		"民法第193條第1項",    // 醫療費用
		"民法第195條第1項前段", // 精神
	}
	if len(got) != len(want) {
		t.Fatalf("MatchKeywords = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MatchKeywords[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if got := MatchKeywords("", "", ""); got != nil {
		t.Errorf("Empty narrative should match nothing, got %v", got)
	}
}

func TestDescriptionFor(t *testing.T) {
	text, ok := DescriptionFor("民法第191-2條")
	if !ok || !strings.Contains(text, "動力車輛") {
		t.Errorf("DescriptionFor(191-2) = (%q, %v)", text, ok)
	}
	if _, ok := DescriptionFor("民法第999條"); ok {
		t.Error("Unknown statute should not resolve")
	}
}

func TestResolve_GraphTally(t *testing.T) {
	source := &fakeSource{cited: []graph.CaseStatutes{
		{
			CaseID: "case-1",
			Names:  []string{"民法第184條第1項前段", "民法第191-2條"},
			Texts:  []string{"過失侵權responsibility文字", ""},
		},
		{
			CaseID: "case-2",
			Names:  []string{"民法第184條第1項前段", "民法第193條第1項"},
			Texts:  []string{"重複的184文字", "身體健康侵害文字"},
		},
		{
			CaseID: "case-3",
			Names:  []string{"民法第184條第1項前段"},
			Texts:  []string{""},
		},
	}}
	r := NewResolver(source, nil, nil, model.StatuteConfig{KeywordCrossCheck: true}, nil)

	set, err := r.Resolve(context.Background(), []string{"case-1", "case-2", "case-3"}, parse.Narrative{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if set.Flagged {
		t.Error("Set with statutes should not be flagged")
	}
	if source.calls != 1 {
		t.Errorf("Expected one graph query, got %d", source.calls)
	}

	wantIDs := []string{"民法第184條第1項前段", "民法第191-2條", "民法第193條第1項"}
	gotIDs := set.IDs()
	if len(gotIDs) != len(wantIDs) {
		t.Fatalf("IDs = %v, want %v", gotIDs, wantIDs)
	}
	for i := range wantIDs {
		if gotIDs[i] != wantIDs[i] {
			t.Errorf("IDs[%d] = %q, want %q", i, gotIDs[i], wantIDs[i])
		}
	}

	if set.Statutes[0].Support != 3 {
		t.Errorf("184 cited by all three cases, support = %d", set.Statutes[0].Support)
	}
	if set.Statutes[0].Text != "過失侵權responsibility文字" {
		t.Errorf("First non-empty graph text should win, got %q", set.Statutes[0].Text)
	}
	if set.Statutes[1].Support != 1 || set.Statutes[2].Support != 1 {
		t.Errorf("Single citations should have support 1, got %d and %d",
			set.Statutes[1].Support, set.Statutes[2].Support)
	}
	if !strings.Contains(set.Statutes[1].Text, "動力車輛") {
		t.Errorf("Statute without graph text should fall back to catalog, got %q", set.Statutes[1].Text)
	}
}

func TestResolve_KeywordCrossCheck(t *testing.T) {
	source := &fakeSource{cited: []graph.CaseStatutes{
		{CaseID: "case-1", Names: []string{"民法第191-2條"}, Texts: []string{""}},
	}}
	r := NewResolver(source, nil, nil, model.StatuteConfig{KeywordCrossCheck: true}, nil)

	narrative := parse.Narrative{
		AccidentFacts: "被告騎乘機車未注意車前狀況",
		InjuryDetails: "原告精神上受有極大痛苦",
	}
	set, err := r.Resolve(context.Background(), []string{"case-1"}, narrative)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// 191-2 comes from the graph; 184 and 195-1 only from keywords.
	wantIDs := []string{"民法第191-2條", "民法第184條第1項前段", "民法第195條第1項前段"}
	gotIDs := set.IDs()
	if len(gotIDs) != len(wantIDs) {
		t.Fatalf("IDs = %v, want %v", gotIDs, wantIDs)
	}
	for i := range wantIDs {
		if gotIDs[i] != wantIDs[i] {
			t.Errorf("IDs[%d] = %q, want %q", i, gotIDs[i], wantIDs[i])
		}
	}
	for _, s := range set.Statutes {
		if s.Support != 1 {
			t.Errorf("Support for %s = %d, want 1", s.ID, s.Support)
		}
		if s.Text == "" {
			t.Errorf("Statute %s should carry catalog text", s.ID)
		}
	}
}

func TestResolve_GraphErrorDegrades(t *testing.T) {
	source := &fakeSource{err: errors.New("connection refused")}
	r := NewResolver(source, nil, nil, model.StatuteConfig{KeywordCrossCheck: true}, nil)

	narrative := parse.Narrative{AccidentFacts: "被告駕駛汽車因過失肇事"}
	set, err := r.Resolve(context.Background(), []string{"case-1"}, narrative)
	if err != nil {
		t.Fatalf("Graph failure must not abort resolution: %v", err)
	}
	if !set.Flagged {
		t.Error("Graph failure should flag the set as degraded")
	}
	if set.Empty() {
		t.Error("Keyword lane should still produce statutes")
	}
}

func TestResolve_ApplicabilityGate(t *testing.T) {
	cfg := model.StatuteConfig{KeywordCrossCheck: true, ApplicabilityCheck: true}
	narrative := parse.Narrative{AccidentFacts: "被告駕駛動力車輛撞擊原告"}

	failing := &fakeProvider{response: "[結果]: fail\n[理由]: 與本案事實無關"}
	r := NewResolver(nil, failing, nil, cfg, nil)
	set, err := r.Resolve(context.Background(), nil, narrative)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !set.Empty() || !set.Flagged {
		t.Errorf("Gate rejecting every statute should leave a flagged empty set, got %v", set.IDs())
	}
	if len(failing.prompts) == 0 {
		t.Fatal("Gate should have consulted the provider")
	}
	if !strings.Contains(failing.prompts[0], "民法第191-2條") || !strings.Contains(failing.prompts[0], narrative.AccidentFacts) {
		t.Error("Check prompt should carry the statute and the narrative")
	}

	passing := &fakeProvider{response: "[結果]: pass\n[理由]: 屬動力車輛事故"}
	r = NewResolver(nil, passing, nil, cfg, nil)
	set, err = r.Resolve(context.Background(), nil, narrative)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if set.Empty() {
		t.Error("Gate passing should keep the keyword statutes")
	}

	broken := &fakeProvider{err: errors.New("model not loaded")}
	r = NewResolver(nil, broken, nil, cfg, nil)
	set, err = r.Resolve(context.Background(), nil, narrative)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if set.Empty() {
		t.Error("Provider failure should fail open and keep the statutes")
	}
}

func TestResolve_NothingFound(t *testing.T) {
	r := NewResolver(nil, nil, nil, model.StatuteConfig{KeywordCrossCheck: true}, nil)

	set, err := r.Resolve(context.Background(), nil, parse.Narrative{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !set.Empty() {
		t.Errorf("Expected empty set, got %v", set.IDs())
	}
	if !set.Flagged {
		t.Error("Empty resolution must be flagged so generation can degrade")
	}
}
