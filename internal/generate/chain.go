package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/clweng/plaintgen/internal/llm"
	"github.com/clweng/plaintgen/internal/logger"
	"github.com/clweng/plaintgen/internal/model"
	"github.com/clweng/plaintgen/internal/parse"
	"github.com/clweng/plaintgen/internal/worker"
)

// reasoningChain drafts the computed sections through staged calls:
// damages itemizes then rewrites into calculation tags, conclusion
// restates the tag totals in the 綜上所陳 paragraph.
type reasoningChain struct {
	provider llm.Provider
	limiter  *worker.Limiter
	log      *logger.Logger
}

func newReasoningChain(provider llm.Provider, limiter *worker.Limiter, log *logger.Logger) *reasoningChain {
	return &reasoningChain{provider: provider, limiter: limiter, log: log}
}

func (s *reasoningChain) Name() string { return model.StrategyReasoningChain }

func (s *reasoningChain) Generate(ctx context.Context, task *Task) (*Result, error) {
	switch task.Section {
	case model.SectionDamages:
		return s.damages(ctx, task)
	case model.SectionConclusion:
		return s.conclusion(ctx, task)
	default:
		return nil, fmt.Errorf("generate: %s strategy cannot draft section %q", s.Name(), task.Section)
	}
}

func (s *reasoningChain) damages(ctx context.Context, task *Task) (*Result, error) {
	if task.Input == nil {
		return nil, fmt.Errorf("generate: damages task carries no parsed input")
	}

	multi := strings.Contains(string(task.CaseType), string(model.CaseTypeMultiPlaintiff)) ||
		strings.Contains(string(task.CaseType), string(model.CaseTypeMultiBoth))
	prompt := DamagesPrompt(
		task.Input.InjuryDescription,
		ClaimFacts(task.Input),
		multi,
		task.AverageAward,
		task.PlaintiffsInfo,
		task.ExemplarCompensation,
	)
	prompt = withFeedback(prompt, task.Feedback)

	itemization, err := llmText(ctx, s.provider, s.limiter, prompt)
	if err != nil {
		return nil, err
	}
	itemization = CleanDamages(itemization)
	if itemization == "" {
		return nil, ErrEmptyDraft
	}

	totals, err := s.calculateTags(ctx, itemization, task.PlaintiffsInfo)
	if err != nil {
		return nil, err
	}
	return &Result{Text: itemization, Totals: totals}, nil
}

// calculateTags runs the tag stage, once more when the first response
// parses to nothing. A still-empty map goes back as-is; validation
// rejects it and regeneration starts over with that feedback.
func (s *reasoningChain) calculateTags(ctx context.Context, itemization, plaintiffsInfo string) (map[string]int64, error) {
	prompt := CalculateTagsPrompt(itemization, plaintiffsInfo)
	for attempt := 1; attempt <= 2; attempt++ {
		text, err := llmText(ctx, s.provider, s.limiter, prompt)
		if err != nil {
			return nil, err
		}
		if sums := parse.ExtractCalculateTags(text); len(sums) > 0 {
			return sums, nil
		}
		s.log.Warn("calculation tag stage produced no parsable tag", "attempt", attempt)
	}
	return map[string]int64{}, nil
}

func (s *reasoningChain) conclusion(ctx context.Context, task *Task) (*Result, error) {
	if task.DamagesText == "" {
		return nil, fmt.Errorf("generate: conclusion task carries no damages text")
	}
	prompt := ConclusionPrompt(task.DamagesText, SummaryFormat(task.Totals), task.PlaintiffsInfo)
	prompt = withFeedback(prompt, task.Feedback)

	text, err := llmText(ctx, s.provider, s.limiter, prompt)
	if err != nil {
		return nil, err
	}
	text = CleanConclusion(text)
	if text == "" {
		return nil, ErrEmptyDraft
	}
	return &Result{Text: text}, nil
}
