package generate

import (
	"context"
	"fmt"
	"sort"

	"github.com/clweng/plaintgen/internal/llm"
	"github.com/clweng/plaintgen/internal/logger"
	"github.com/clweng/plaintgen/internal/model"
	"github.com/clweng/plaintgen/internal/worker"
)

// Registry resolves the strategy for a {case type, section} pair. Pairs
// are bound by a dispatch table; lookup falls back from the exact label to
// its base party structure and then to the default case type, so a
// modifier label never strands a section.
type Registry struct {
	strategies map[string]Strategy
	table      map[dispatchKey]Strategy
}

type dispatchKey struct {
	caseType model.CaseType
	section  model.SectionName
}

// NewRegistry registers the built-in strategies against provider and
// limiter and binds the default dispatch table. LoadTable replaces the
// bindings when a config table is present.
func NewRegistry(provider llm.Provider, limiter *worker.Limiter, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNop()
	}
	r := &Registry{
		strategies: make(map[string]Strategy),
		table:      make(map[dispatchKey]Strategy),
	}
	r.Register(newDirectTemplate(provider, limiter, log))
	r.Register(newReasoningChain(provider, limiter, log))

	for ctKey, sections := range model.DefaultStrategyTable() {
		for sectionKey, name := range sections {
			key := dispatchKey{model.CaseType(ctKey), model.SectionName(sectionKey)}
			r.table[key] = r.strategies[name]
		}
	}
	return r
}

// Register adds a strategy under its name, replacing any previous one.
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Names lists the registered strategy names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves the strategy for a pair: exact label, then the base
// party structure, then the default case type.
func (r *Registry) Lookup(ct model.CaseType, section model.SectionName) (Strategy, error) {
	if s, ok := r.table[dispatchKey{ct, section}]; ok {
		return s, nil
	}
	if base := model.BaseCaseType(ct); base != ct {
		if s, ok := r.table[dispatchKey{base, section}]; ok {
			return s, nil
		}
	}
	if s, ok := r.table[dispatchKey{model.CaseTypeSingle, section}]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: {%s, %s}", ErrNoStrategy, ct, section)
}

// Generate drafts one section by dispatching on the task's pair. The
// result records the strategy that produced it.
func (r *Registry) Generate(ctx context.Context, task *Task) (*Result, error) {
	strat, err := r.Lookup(task.CaseType, task.Section)
	if err != nil {
		return nil, err
	}
	res, err := strat.Generate(ctx, task)
	if err != nil {
		return nil, err
	}
	res.Strategy = strat.Name()
	return res, nil
}

// LoadTable replaces the dispatch bindings with a config table, checking
// that every named strategy is registered, every section is real, every
// case type resolves to a known party structure, and the default case
// type covers all four sections (the final fallback of Lookup).
func (r *Registry) LoadTable(table map[string]map[string]string) error {
	bound := make(map[dispatchKey]Strategy, len(table)*len(model.SectionOrder))
	for ctKey, sections := range table {
		ct := model.CaseType(ctKey)
		if !knownBase(model.BaseCaseType(ct)) {
			return fmt.Errorf("%w: %q", ErrUnknownCaseType, ctKey)
		}
		for sectionKey, name := range sections {
			section := model.SectionName(sectionKey)
			if !knownSection(section) {
				return fmt.Errorf("generate: case type %q binds unknown section %q", ctKey, sectionKey)
			}
			strat, ok := r.strategies[name]
			if !ok {
				return fmt.Errorf("generate: {%s, %s} names unregistered strategy %q", ctKey, sectionKey, name)
			}
			bound[dispatchKey{ct, section}] = strat
		}
	}
	for _, section := range model.SectionOrder {
		if _, ok := bound[dispatchKey{model.CaseTypeSingle, section}]; !ok {
			return fmt.Errorf("generate: dispatch table leaves {%s, %s} uncovered", model.CaseTypeSingle, section)
		}
	}
	r.table = bound
	return nil
}

func knownBase(ct model.CaseType) bool {
	switch ct {
	case model.CaseTypeSingle, model.CaseTypeMultiPlaintiff, model.CaseTypeMultiDefendant, model.CaseTypeMultiBoth:
		return true
	}
	return false
}

func knownSection(name model.SectionName) bool {
	for _, s := range model.SectionOrder {
		if s == name {
			return true
		}
	}
	return false
}
