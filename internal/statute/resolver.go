package statute

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/clweng/plaintgen/internal/graph"
	"github.com/clweng/plaintgen/internal/llm"
	"github.com/clweng/plaintgen/internal/logger"
	"github.com/clweng/plaintgen/internal/model"
	"github.com/clweng/plaintgen/internal/parse"
	"github.com/clweng/plaintgen/internal/worker"
)

// CitationSource is the slice of the graph surface the resolver needs.
// *graph.Client satisfies it, including as a nil pointer.
type CitationSource interface {
	CitedStatutes(ctx context.Context, caseIDs []string) ([]graph.CaseStatutes, error)
}

// Resolver builds the statute set backing the legal-basis section.
type Resolver struct {
	source   CitationSource
	provider llm.Provider
	limiter  *worker.Limiter
	cfg      model.StatuteConfig
	log      *logger.Logger
}

// NewResolver wires a resolver. source may be nil (no graph configured) and
// provider may be nil (no applicability gate); resolution then degrades to
// keyword matching alone.
func NewResolver(source CitationSource, provider llm.Provider, limiter *worker.Limiter, cfg model.StatuteConfig, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewNop()
	}
	return &Resolver{
		source:   source,
		provider: provider,
		limiter:  limiter,
		cfg:      cfg,
		log:      log,
	}
}

// Resolve tallies the statutes the retrieved cases invoked, cross-checks the
// narrative for statutes the graph missed, and returns the set ordered by
// support count then article number. Support counts cases, not citations: a
// statute cited by three of five retrieved cases has support 3. Graph
// failure does not abort the request; the set comes back flagged and
// generation proceeds without statute context.
func (r *Resolver) Resolve(ctx context.Context, caseIDs []string, narrative parse.Narrative) (*model.StatuteSet, error) {
	set := &model.StatuteSet{}
	support := make(map[string]int)
	texts := make(map[string]string)

	if r.source != nil {
		if err := r.wait(ctx, worker.BackendGraph); err != nil {
			return nil, err
		}
		cited, err := r.source.CitedStatutes(ctx, caseIDs)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			r.log.Warn("statute graph query failed, continuing without graph support", "error", err)
			set.Flagged = true
		default:
			for _, cs := range cited {
				for i, name := range cs.Names {
					support[name]++
					if _, seen := texts[name]; !seen && i < len(cs.Texts) && cs.Texts[i] != "" {
						texts[name] = cs.Texts[i]
					}
				}
			}
		}
	}

	if r.cfg.KeywordCrossCheck {
		matched := MatchKeywords(narrative.AccidentFacts, narrative.InjuryDetails, narrative.CompensationFacts)
		for _, id := range matched {
			if _, cited := support[id]; cited {
				continue
			}
			if !r.applicable(ctx, id, narrative) {
				continue
			}
			support[id] = 1
			r.log.Debug("keyword match added statute the graph missed", "statute", id)
		}
	}

	for id, count := range support {
		text := texts[id]
		if text == "" {
			text, _ = DescriptionFor(id)
		}
		set.Statutes = append(set.Statutes, model.Statute{ID: id, Text: text, Support: count})
	}

	sort.SliceStable(set.Statutes, func(i, j int) bool {
		a, b := set.Statutes[i], set.Statutes[j]
		if a.Support != b.Support {
			return a.Support > b.Support
		}
		return CompareIDs(a.ID, b.ID) < 0
	})

	if len(set.Statutes) == 0 {
		r.log.Warn("no statutes resolved for case set", "cases", len(caseIDs))
		set.Flagged = true
	}
	return set, nil
}

// applicable gates keyword-added statutes through the provider when
// configured. Fails open: with no provider, or on a provider error, the
// statute stays in rather than emptying the backup lane.
func (r *Resolver) applicable(ctx context.Context, id string, narrative parse.Narrative) bool {
	if !r.cfg.ApplicabilityCheck || r.provider == nil {
		return true
	}
	text, ok := DescriptionFor(id)
	if !ok {
		return true
	}
	if err := r.wait(ctx, worker.BackendLLM); err != nil {
		return true
	}
	resp, err := r.provider.Generate(ctx, llm.GenerateRequest{Prompt: applicabilityPrompt(id, text, narrative)})
	if err != nil {
		r.log.Debug("applicability check failed open", "statute", id, "error", err)
		return true
	}
	return strings.Contains(strings.ToLower(resp.Text), "pass")
}

func (r *Resolver) wait(ctx context.Context, backend string) error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx, backend)
}

func applicabilityPrompt(id, text string, n parse.Narrative) string {
	return fmt.Sprintf(`請評估以下法條是否適用於給定的案件事實與受傷情形。

案件事實：
%s

受傷情形：
%s

法條：
%s：%s

評估標準：
1. 法條內容是否與案件事實相關
2. 法條是否適用於描述的侵權行為或受傷情形
3. 是否有明確的法律適用基礎

請僅回答 "pass" 或 "fail"，並提供簡短的理由。格式：
[結果]: [pass/fail]
[理由]: [簡短說明為何通過或失敗]
`, n.AccidentFacts, n.InjuryDetails, id, text)
}
