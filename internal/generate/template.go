package generate

import (
	"context"
	"fmt"

	"github.com/clweng/plaintgen/internal/llm"
	"github.com/clweng/plaintgen/internal/logger"
	"github.com/clweng/plaintgen/internal/model"
	"github.com/clweng/plaintgen/internal/worker"
)

// directTemplate drafts the citation-bound sections: facts by prompting
// with the narrative and a precedent exemplar, legal basis by filling the
// statutory boilerplate from the resolved statutes without a model call.
type directTemplate struct {
	provider llm.Provider
	limiter  *worker.Limiter
	log      *logger.Logger
}

func newDirectTemplate(provider llm.Provider, limiter *worker.Limiter, log *logger.Logger) *directTemplate {
	return &directTemplate{provider: provider, limiter: limiter, log: log}
}

func (s *directTemplate) Name() string { return model.StrategyDirectTemplate }

func (s *directTemplate) Generate(ctx context.Context, task *Task) (*Result, error) {
	switch task.Section {
	case model.SectionFacts:
		return s.facts(ctx, task)
	case model.SectionLegalBasis:
		return s.legalBasis(task)
	default:
		return nil, fmt.Errorf("generate: %s strategy cannot draft section %q", s.Name(), task.Section)
	}
}

func (s *directTemplate) facts(ctx context.Context, task *Task) (*Result, error) {
	if task.Input == nil {
		return nil, fmt.Errorf("generate: facts task carries no parsed input")
	}
	prompt := withFeedback(FactsPrompt(task.Input.AccidentFacts, task.ExemplarFacts), task.Feedback)
	text, err := llmText(ctx, s.provider, s.limiter, prompt)
	if err != nil {
		return nil, err
	}
	text = CleanFacts(text)
	if text == "" {
		return nil, ErrEmptyDraft
	}
	return &Result{Text: text}, nil
}

// legalBasis is deterministic: the statutes are already resolved and the
// boilerplate leaves the model nothing to decide. An empty set renders
// the flagged no-statute marker instead of an invented citation.
func (s *directTemplate) legalBasis(task *Task) (*Result, error) {
	if task.Statutes == nil || task.Statutes.Empty() {
		s.log.Warn("legal basis drafted without statutes, emitting marker")
		return &Result{Text: NoStatuteMarker}, nil
	}
	return &Result{Text: LegalBasisText(task.Statutes.Statutes)}, nil
}
