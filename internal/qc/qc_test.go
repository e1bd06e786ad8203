package qc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/clweng/plaintgen/internal/generate"
	"github.com/clweng/plaintgen/internal/llm"
	"github.com/clweng/plaintgen/internal/logger"
	"github.com/clweng/plaintgen/internal/model"
)

// fakeStrategy serves scripted per-section results in call order and
// records every task handed to it. The last script entry repeats.
type fakeStrategy struct {
	name    string
	scripts map[model.SectionName][]*generate.Result
	calls   map[model.SectionName]int
	tasks   []*generate.Task
}

func newFakeStrategy(name string) *fakeStrategy {
	return &fakeStrategy{
		name:    name,
		scripts: make(map[model.SectionName][]*generate.Result),
		calls:   make(map[model.SectionName]int),
	}
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Generate(_ context.Context, task *generate.Task) (*generate.Result, error) {
	f.tasks = append(f.tasks, task)
	script := f.scripts[task.Section]
	if len(script) == 0 {
		return nil, fmt.Errorf("no scripted result for section %s", task.Section)
	}
	i := f.calls[task.Section]
	f.calls[task.Section]++
	if i >= len(script) {
		i = len(script) - 1
	}
	res := script[i]
	return &generate.Result{Text: res.Text, Totals: res.Totals, Strategy: f.name}, nil
}

func fakeRegistry(t *testing.T, direct, chain *fakeStrategy) *generate.Registry {
	t.Helper()
	reg := generate.NewRegistry(nil, nil, logger.NewNop())
	reg.Register(direct)
	reg.Register(chain)
	if err := reg.LoadTable(model.DefaultStrategyTable()); err != nil {
		t.Fatalf("load table: %v", err)
	}
	return reg
}

// reviewProvider scripts the review verdicts and records prompts.
type reviewProvider struct {
	responses []string
	prompts   []string
}

func (p *reviewProvider) Name() string { return "review" }

func (p *reviewProvider) IsAvailable(ctx context.Context) bool { return true }

func (p *reviewProvider) Generate(_ context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	p.prompts = append(p.prompts, req.Prompt)
	i := len(p.prompts) - 1
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	return &llm.GenerateResponse{Text: p.responses[i], Model: "review"}, nil
}

// failingProvider refuses every call.
type failingProvider struct {
	calls int
}

func (p *failingProvider) Name() string { return "down" }

func (p *failingProvider) IsAvailable(ctx context.Context) bool { return false }

func (p *failingProvider) Generate(_ context.Context, _ llm.GenerateRequest) (*llm.GenerateResponse, error) {
	p.calls++
	return nil, errors.New("connection refused")
}

func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	restore := qcSleep
	qcSleep = func(d time.Duration) { slept = append(slept, d) }
	t.Cleanup(func() { qcSleep = restore })
	return &slept
}

func acceptableDraft() (*model.DocumentDraft, *Request) {
	draft := &model.DocumentDraft{
		CaseType:  model.CaseTypeSingle,
		RequestID: "req-test",
		Totals:    map[string]int64{model.DefaultPlaintiffKey: 180000},
	}
	draft.SetSection(&model.SectionDraft{
		Section:  model.SectionFacts,
		Text:     "緣被告駕駛自小客車未注意車前狀況，撞擊原告所騎機車，致原告人車倒地受傷。",
		Strategy: model.StrategyDirectTemplate,
		Attempts: 1,
	})
	draft.SetSection(&model.SectionDraft{
		Section:  model.SectionLegalBasis,
		Text:     "按「因故意或過失，不法侵害他人之權利者，負損害賠償責任。」，民法第184條第1項前段定有明文。",
		Strategy: model.StrategyDirectTemplate,
		Attempts: 1,
	})
	draft.SetSection(&model.SectionDraft{
		Section:  model.SectionDamages,
		Text:     "（一）醫療費用：50000元\n（二）工作損失：30000元\n（三）精神慰撫金：100000元",
		Strategy: model.StrategyReasoningChain,
		Attempts: 1,
	})
	draft.SetSection(&model.SectionDraft{
		Section:  model.SectionConclusion,
		Text:     "綜上所陳，原告受有醫療費用50000元、工作損失30000元、精神慰撫金100000元之損害，總計180000元。",
		Strategy: model.StrategyReasoningChain,
		Attempts: 1,
	})

	req := &Request{
		Input: &model.ParsedInput{
			AccidentFacts:     "被告駕車未注意車前狀況，撞擊原告機車。",
			InjuryDescription: "原告受有右腿骨折之傷害。",
			DamageClaims: []model.DamageClaim{
				{Label: "醫療費用", Amount: 50000},
				{Label: "工作損失", Amount: 30000},
				{Label: "精神慰撫金", Amount: 100000},
			},
		},
	}
	return draft, req
}

func TestRunAcceptsValidDraft(t *testing.T) {
	direct := newFakeStrategy(model.StrategyDirectTemplate)
	chain := newFakeStrategy(model.StrategyReasoningChain)
	runner := NewRunner(fakeRegistry(t, direct, chain), nil, nil,
		model.QCConfig{RetryBudget: 3}, logger.NewNop())

	draft, req := acceptableDraft()
	if err := runner.Run(context.Background(), draft, req); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !draft.Complete() {
		t.Error("draft not complete after run")
	}
	if n := len(direct.tasks) + len(chain.tasks); n != 0 {
		t.Errorf("regenerated %d times, want 0", n)
	}
	for _, name := range model.SectionOrder {
		if sec := draft.Section(name); sec.Attempts != 1 {
			t.Errorf("%s attempts = %d, want 1", name, sec.Attempts)
		}
	}
}

func TestRunRegeneratesConclusionOnAmountMismatch(t *testing.T) {
	direct := newFakeStrategy(model.StrategyDirectTemplate)
	chain := newFakeStrategy(model.StrategyReasoningChain)
	chain.scripts[model.SectionConclusion] = []*generate.Result{
		{Text: "綜上所陳，原告受有上列損害，總計180000元。"},
	}
	runner := NewRunner(fakeRegistry(t, direct, chain), nil, nil,
		model.QCConfig{RetryBudget: 3}, logger.NewNop())
	slept := stubSleep(t)

	draft, req := acceptableDraft()
	draft.Section(model.SectionConclusion).Text = "綜上所陳，原告受有上列損害，總計170000元。"

	if err := runner.Run(context.Background(), draft, req); err != nil {
		t.Fatalf("Run: %v", err)
	}

	sec := draft.Section(model.SectionConclusion)
	if !sec.Accepted || sec.Attempts != 2 {
		t.Errorf("conclusion accepted=%v attempts=%d, want accepted on attempt 2", sec.Accepted, sec.Attempts)
	}
	if len(chain.tasks) != 1 {
		t.Fatalf("chain calls = %d, want 1", len(chain.tasks))
	}
	task := chain.tasks[0]
	if !strings.Contains(task.Feedback, "總結中缺少以下賠償金額: 180000") {
		t.Errorf("feedback = %q", task.Feedback)
	}
	if task.Attempt != 2 {
		t.Errorf("task attempt = %d, want 2", task.Attempt)
	}
	if task.DamagesText == "" || task.Totals[model.DefaultPlaintiffKey] != 180000 {
		t.Error("conclusion task missing damages context")
	}
	if len(*slept) != 1 || (*slept)[0] != time.Second {
		t.Errorf("backoff = %v, want [1s]", *slept)
	}
}

func TestRunAbandonsWhenBudgetExhausted(t *testing.T) {
	direct := newFakeStrategy(model.StrategyDirectTemplate)
	chain := newFakeStrategy(model.StrategyReasoningChain)
	chain.scripts[model.SectionConclusion] = []*generate.Result{
		{Text: "綜上所陳，原告受有上列損害，總計170000元。"},
	}
	runner := NewRunner(fakeRegistry(t, direct, chain), nil, nil,
		model.QCConfig{RetryBudget: 3, MaxBackoff: 2 * time.Second}, logger.NewNop())
	slept := stubSleep(t)

	draft, req := acceptableDraft()
	draft.Section(model.SectionConclusion).Text = "綜上所陳，原告受有上列損害，總計160000元。"

	err := runner.Run(context.Background(), draft, req)
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("error = %v, want ErrBudgetExhausted", err)
	}
	var abandoned *AbandonedError
	if !errors.As(err, &abandoned) {
		t.Fatalf("error %T carries no diagnostic", err)
	}
	diag := abandoned.Diagnostic
	if diag.Section != model.SectionConclusion || diag.State != string(StateAbandoned) {
		t.Errorf("diagnostic = %+v", diag)
	}
	if diag.Attempts != 4 {
		t.Errorf("attempts = %d, want 4 (initial + 3 regenerations)", diag.Attempts)
	}
	if abandoned.Draft != draft {
		t.Error("abandoned error must carry the last draft for inspection")
	}
	if !strings.Contains(abandoned.Draft.Section(model.SectionConclusion).Text, "170000") {
		t.Error("attached draft missing the last regenerated conclusion")
	}
	if len(diag.Reasons) != 4 {
		t.Errorf("reasons = %v, want 4 rejections", diag.Reasons)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 2 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("backoffs = %v, want %v", *slept, want)
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Errorf("backoff[%d] = %v, want %v", i, (*slept)[i], d)
		}
	}
	if !draft.Section(model.SectionFacts).Accepted {
		t.Error("earlier accepted sections must stay accepted")
	}
}

func TestRunBudgetZeroAbandonsImmediately(t *testing.T) {
	direct := newFakeStrategy(model.StrategyDirectTemplate)
	chain := newFakeStrategy(model.StrategyReasoningChain)
	runner := NewRunner(fakeRegistry(t, direct, chain), nil, nil,
		model.QCConfig{RetryBudget: 0}, logger.NewNop())
	slept := stubSleep(t)

	draft, req := acceptableDraft()
	draft.Section(model.SectionConclusion).Text = "綜上所陳，原告受有上列損害。"

	err := runner.Run(context.Background(), draft, req)
	var abandoned *AbandonedError
	if !errors.As(err, &abandoned) {
		t.Fatalf("error = %v, want AbandonedError", err)
	}
	if abandoned.Diagnostic.Attempts != 1 || len(abandoned.Diagnostic.Reasons) != 1 {
		t.Errorf("diagnostic = %+v, want one attempt, one reason", abandoned.Diagnostic)
	}
	if len(chain.tasks) != 0 {
		t.Errorf("regenerations = %d, want 0", len(chain.tasks))
	}
	if len(*slept) != 0 {
		t.Errorf("backoffs = %v, want none", *slept)
	}
}

func TestRunDamagesRegenInvalidatesConclusion(t *testing.T) {
	direct := newFakeStrategy(model.StrategyDirectTemplate)
	chain := newFakeStrategy(model.StrategyReasoningChain)
	chain.scripts[model.SectionDamages] = []*generate.Result{
		{
			Text:   "（一）醫療費用：50000元\n（二）工作損失：30000元\n（三）精神慰撫金：100000元",
			Totals: map[string]int64{model.DefaultPlaintiffKey: 180000},
		},
	}
	chain.scripts[model.SectionConclusion] = []*generate.Result{
		{Text: "綜上所陳，原告受有上列損害，總計180000元。"},
	}
	runner := NewRunner(fakeRegistry(t, direct, chain), nil, nil,
		model.QCConfig{RetryBudget: 3}, logger.NewNop())
	stubSleep(t)

	draft, req := acceptableDraft()
	draft.Totals = nil // calculation tags never parsed on the initial draft

	if err := runner.Run(context.Background(), draft, req); err != nil {
		t.Fatalf("Run: %v", err)
	}

	damages := draft.Section(model.SectionDamages)
	if !damages.Accepted || damages.Attempts != 2 {
		t.Errorf("damages accepted=%v attempts=%d, want accepted on attempt 2", damages.Accepted, damages.Attempts)
	}
	if draft.Totals[model.DefaultPlaintiffKey] != 180000 {
		t.Errorf("draft totals = %v", draft.Totals)
	}

	conclusion := draft.Section(model.SectionConclusion)
	if !conclusion.Accepted || conclusion.Attempts != 2 {
		t.Errorf("conclusion accepted=%v attempts=%d, want redraft after damages change", conclusion.Accepted, conclusion.Attempts)
	}
	last := chain.tasks[len(chain.tasks)-1]
	if last.Section != model.SectionConclusion {
		t.Fatalf("last regenerated section = %s, want conclusion", last.Section)
	}
	if last.Totals[model.DefaultPlaintiffKey] != 180000 || last.DamagesText == "" {
		t.Error("conclusion redraft not handed the new damages context")
	}
	if last.Feedback != "" {
		t.Errorf("fresh redraft carries feedback %q, want none", last.Feedback)
	}
}

func TestRunFactsReview(t *testing.T) {
	direct := newFakeStrategy(model.StrategyDirectTemplate)
	chain := newFakeStrategy(model.StrategyReasoningChain)
	direct.scripts[model.SectionFacts] = []*generate.Result{
		{Text: "緣被告駕駛自小客車未注意車前狀況，撞擊原告機車，致原告受有右腿骨折之傷害。"},
	}
	reviewer := &reviewProvider{responses: []string{
		"[結果]: fail\n[理由]: 遺漏原告受傷情形",
		"[結果]: pass\n[理由]: 內容與摘要一致",
		"[結果]: pass\n[理由]: 項目完整",
	}}
	runner := NewRunner(fakeRegistry(t, direct, chain), reviewer, nil,
		model.QCConfig{RetryBudget: 3, FactCheck: true}, logger.NewNop())
	stubSleep(t)

	draft, req := acceptableDraft()
	req.Summary = "[事故緣由]: 被告駕車撞擊原告機車\n[傷勢情形]: 右腿骨折"

	if err := runner.Run(context.Background(), draft, req); err != nil {
		t.Fatalf("Run: %v", err)
	}

	facts := draft.Section(model.SectionFacts)
	if !facts.Accepted || facts.Attempts != 2 {
		t.Errorf("facts accepted=%v attempts=%d, want accepted on attempt 2", facts.Accepted, facts.Attempts)
	}
	if len(direct.tasks) != 1 || !strings.Contains(direct.tasks[0].Feedback, "遺漏原告受傷情形") {
		t.Errorf("facts redraft tasks = %+v", direct.tasks)
	}
	if len(reviewer.prompts) != 3 {
		t.Fatalf("review calls = %d, want 3 (facts twice, damages once)", len(reviewer.prompts))
	}
	if !strings.Contains(reviewer.prompts[0], req.Summary) {
		t.Error("facts review prompt missing the case summary")
	}
	if !strings.Contains(reviewer.prompts[2], "賠償請求第一部分") ||
		!strings.Contains(reviewer.prompts[2], "（一）醫療費用：50000元") {
		t.Error("damages review prompt missing the itemization")
	}
}

func TestRunSkipsReviewsWithoutProvider(t *testing.T) {
	direct := newFakeStrategy(model.StrategyDirectTemplate)
	chain := newFakeStrategy(model.StrategyReasoningChain)
	runner := NewRunner(fakeRegistry(t, direct, chain), nil, nil,
		model.QCConfig{RetryBudget: 3, FactCheck: true}, logger.NewNop())

	draft, req := acceptableDraft()
	req.Summary = "[事故緣由]: 被告駕車撞擊原告機車"

	if err := runner.Run(context.Background(), draft, req); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !draft.Complete() {
		t.Error("draft not complete")
	}
	if n := len(direct.tasks) + len(chain.tasks); n != 0 {
		t.Errorf("regenerated %d times, want 0", n)
	}
}

func TestRunReviewFailureKeepsDraft(t *testing.T) {
	direct := newFakeStrategy(model.StrategyDirectTemplate)
	chain := newFakeStrategy(model.StrategyReasoningChain)
	provider := &failingProvider{}
	runner := NewRunner(fakeRegistry(t, direct, chain), provider, nil,
		model.QCConfig{RetryBudget: 3, FactCheck: true}, logger.NewNop())

	draft, req := acceptableDraft()
	req.Summary = "[事故緣由]: 被告駕車撞擊原告機車"

	if err := runner.Run(context.Background(), draft, req); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !draft.Complete() {
		t.Error("draft not complete: a dead review backend must not reject drafts")
	}
	if provider.calls != 2 {
		t.Errorf("review attempts = %d, want 2 (facts and damages)", provider.calls)
	}
	for _, name := range model.SectionOrder {
		if sec := draft.Section(name); sec.Attempts != 1 {
			t.Errorf("%s attempts = %d, want 1", name, sec.Attempts)
		}
	}
}
