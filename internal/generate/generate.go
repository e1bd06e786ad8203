// Package generate drafts the four complaint sections. Section text comes
// from strategies dispatched on the {case type, section} pair: the
// citation-bound sections go through directTemplate, the computed ones
// through reasoningChain. Prompt scaffolds mirror the drafting templates
// of the precedent corpus.
package generate

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/clweng/plaintgen/internal/llm"
	"github.com/clweng/plaintgen/internal/model"
	"github.com/clweng/plaintgen/internal/worker"
)

var (
	// ErrNoStrategy means lookup found no strategy for a pair even after
	// base-type and default-type fallback.
	ErrNoStrategy = errors.New("no generation strategy for section")

	// ErrUnknownCaseType rejects a dispatch table keyed by a case type
	// outside the known party structures.
	ErrUnknownCaseType = errors.New("unknown case type")

	// ErrEmptyDraft means the model returned nothing usable.
	ErrEmptyDraft = errors.New("empty draft")
)

// Task carries everything the strategies need to draft one section.
type Task struct {
	Section  model.SectionName
	CaseType model.CaseType
	Input    *model.ParsedInput

	// Retrieval context.
	Statutes             *model.StatuteSet
	ExemplarFacts        string   // facts section of the best precedent
	ExemplarCompensation []string // compensation detail lines from precedents
	AverageAward         int64    // mean precedent award, 0 when unknown

	// PlaintiffsInfo is the party list in 原告:甲,乙 form.
	PlaintiffsInfo string

	// Conclusion inputs, filled once a damages draft exists.
	DamagesText string
	Totals      map[string]int64

	// Feedback is the previous rejection reason, injected on regeneration.
	Feedback string
	Attempt  int
}

// Result is one drafted section. Totals is filled only by the damages
// strategy: the per-plaintiff sums parsed from its calculation tags.
// Strategy records which strategy produced the text.
type Result struct {
	Text     string
	Totals   map[string]int64
	Strategy string
}

// Strategy drafts one section of a complaint.
type Strategy interface {
	Name() string
	Generate(ctx context.Context, task *Task) (*Result, error)
}

// PlaintiffsInfo renders the party list in the 原告:甲,乙 form the
// drafting prompts expect. Empty when no plaintiff is named.
func PlaintiffsInfo(input *model.ParsedInput) string {
	if input == nil || len(input.Plaintiffs) == 0 {
		return ""
	}
	return "原告:" + strings.Join(input.Plaintiffs, ",")
}

// ClaimFacts renders the structured claims back into the 損失情況 block
// the drafting and review prompts expect, one item per line.
func ClaimFacts(input *model.ParsedInput) string {
	var b strings.Builder
	for i, c := range input.DamageClaims {
		if i > 0 {
			b.WriteByte('\n')
		}
		if c.Plaintiff != "" {
			b.WriteString("原告")
			b.WriteString(c.Plaintiff)
			b.WriteString("之")
		}
		b.WriteString(c.Label)
		b.WriteString("：")
		b.WriteString(strconv.FormatInt(c.Amount, 10))
		b.WriteString("元")
	}
	return b.String()
}

// llmText runs one drafting call through the backend limiter and returns
// the trimmed response text.
func llmText(ctx context.Context, provider llm.Provider, limiter *worker.Limiter, prompt string) (string, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx, worker.BackendLLM); err != nil {
			return "", err
		}
	}
	resp, err := provider.Generate(ctx, llm.GenerateRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyDraft
	}
	return text, nil
}

// withFeedback appends the previous rejection reason so a regeneration
// knows what to fix.
func withFeedback(prompt, feedback string) string {
	if feedback == "" {
		return prompt
	}
	return prompt + "\n\n前次生成未通過審核，原因：" + feedback + "。請修正上述問題後重新生成。"
}
