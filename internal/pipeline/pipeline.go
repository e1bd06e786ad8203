// Package pipeline orchestrates complaint generation end to end: input
// parsing, case-type classification, precedent retrieval and reranking,
// statute resolution, section drafting, quality control, and assembly.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/clweng/plaintgen/internal/assemble"
	"github.com/clweng/plaintgen/internal/cache"
	"github.com/clweng/plaintgen/internal/classify"
	"github.com/clweng/plaintgen/internal/embed"
	"github.com/clweng/plaintgen/internal/generate"
	"github.com/clweng/plaintgen/internal/graph"
	"github.com/clweng/plaintgen/internal/llm"
	"github.com/clweng/plaintgen/internal/logger"
	"github.com/clweng/plaintgen/internal/model"
	"github.com/clweng/plaintgen/internal/parse"
	"github.com/clweng/plaintgen/internal/qc"
	"github.com/clweng/plaintgen/internal/rerank"
	"github.com/clweng/plaintgen/internal/retrieve"
	"github.com/clweng/plaintgen/internal/search"
	"github.com/clweng/plaintgen/internal/statute"
	"github.com/clweng/plaintgen/internal/worker"
)

// ErrBackendUnavailable means a backend the request needs is not
// configured or not reachable.
var ErrBackendUnavailable = errors.New("backend unavailable")

// Request is one complaint-generation request. RequestID is assigned
// when empty; Overrides layers per-request knobs over the configuration.
type Request struct {
	RequestID string             `json:"request_id,omitempty"`
	Input     *model.ParsedInput `json:"input"`
	Overrides *model.Overrides   `json:"overrides,omitempty"`
}

// ExemplarSource is the slice of the graph surface the pipeline reads
// for generation exemplars. *graph.Client satisfies it, including as a
// nil pointer.
type ExemplarSource interface {
	CaseSections(ctx context.Context, caseID string) (graph.Sections, error)
	CompensationDetails(ctx context.Context, caseIDs []string) (map[string][]string, error)
	ConclusionAverage(ctx context.Context, caseIDs []string) (map[string]int64, int64, error)
}

// Pipeline wires the generation stages together. Build it with New;
// Close releases backend connections.
type Pipeline struct {
	cfg       *model.Config
	provider  llm.Provider
	embedder  embed.Embedder
	searcher  *search.Client
	graphc    *graph.Client
	exemplars ExemplarSource
	retriever *retrieve.Retriever
	reranker  *rerank.Reranker
	resolver  *statute.Resolver
	registry  *generate.Registry
	limiter   *worker.Limiter
	log       *logger.Logger
}

// New builds a pipeline from the configuration. The embedding, search,
// and graph backends are optional and degrade per stage; the LLM
// provider is required for generation but a pipeline without one still
// serves Probe.
func New(ctx context.Context, cfg *model.Config, log *logger.Logger) (*Pipeline, error) {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	if log == nil {
		log = logger.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider, err := llm.NewProvider(ctx, llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return nil, fmt.Errorf("init llm provider: %w", err)
	}

	embedder, err := embed.NewEmbedder(embed.ConfigFromModel(cfg.Embedding, cfg.HTTP))
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	graphc, err := graph.New(cfg.Graph, log)
	if err != nil {
		// Statute resolution and exemplars degrade without the graph.
		log.Warn("graph unavailable, continuing without statute support", "error", err)
		graphc = nil
	}

	store := cache.FromConfig(cfg.Cache)
	embedder = embed.NewCached(embedder, store, cfg.Embedding.Model, cfg.Cache.TTL)

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	searcher := search.NewClient(cfg.Search, cfg.HTTP, log)

	registry := generate.NewRegistry(provider, limiter, log)
	if len(cfg.Generation.Strategies) > 0 {
		if err := registry.LoadTable(cfg.Generation.Strategies); err != nil {
			return nil, fmt.Errorf("generation strategies: %w", err)
		}
	}

	return &Pipeline{
		cfg:       cfg,
		provider:  provider,
		embedder:  embedder,
		searcher:  searcher,
		graphc:    graphc,
		exemplars: graphc,
		retriever: retrieve.New(embedder, searcher, store, limiter, log, cfg.Retrieval.CacheTTL),
		reranker:  rerank.New(searcher, limiter, log),
		resolver:  statute.NewResolver(graphc, provider, limiter, cfg.Statute, log),
		registry:  registry,
		limiter:   limiter,
		log:       log,
	}, nil
}

// Generate produces one assembled complaint.
func (p *Pipeline) Generate(ctx context.Context, req *Request) (*model.Document, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", model.ErrInvalidInput)
	}
	if p.provider == nil {
		return nil, fmt.Errorf("%w: no LLM provider configured", ErrBackendUnavailable)
	}

	start := time.Now()
	id := req.RequestID
	if id == "" {
		id = uuid.NewString()
	}
	log := p.log.With("request_id", id)
	cfg := req.Overrides.Apply(p.cfg)

	input, narrative, err := normalizeInput(req.Input)
	if err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	override := model.CaseType("")
	if req.Overrides != nil {
		override = req.Overrides.CaseType
	}
	ct := classify.Classify(input, override)
	log.Info("generating complaint", "case_type", ct, "claims", len(input.DamageClaims))

	ret, err := p.retriever.Retrieve(ctx, input.AccidentFacts, ct, cfg.Retrieval.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	log.Info("precedents retrieved",
		"cases", len(ret.Cases), "fallback", ret.UsedFallback, "relaxed", ret.FilterRelaxed)

	// Reranking, statute resolution, and the precedent figures all
	// depend only on the retrieval output.
	var (
		reranked *model.RerankedSet
		statutes *model.StatuteSet
		details  map[string][]string
		average  int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		set, err := p.rerankCases(gctx, input.AccidentFacts, ret.Cases, cfg.Retrieval.MinScore)
		if err != nil {
			return err
		}
		reranked = set
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		set, err := p.resolver.Resolve(gctx, ret.CaseIDs(), narrative)
		if err != nil {
			return fmt.Errorf("resolve statutes: %w", err)
		}
		statutes = set
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		details, average = p.precedentFigures(gctx, ret.CaseIDs())
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	orderedIDs := ret.CaseIDs()
	if reranked != nil && len(reranked.Cases) > 0 {
		orderedIDs = reranked.CaseIDs()
	}
	var exemplarID string
	if len(orderedIDs) > 0 {
		exemplarID = orderedIDs[0]
	}
	exemplar := p.exemplarSections(ctx, exemplarID)
	log.Debug("retrieval context ready",
		"statutes", len(statutes.Statutes), "flagged", statutes.Flagged,
		"exemplar", exemplarID, "average_award", average)

	qreq := &qc.Request{
		Input:                input,
		Statutes:             statutes,
		ExemplarFacts:        exemplar.Facts,
		ExemplarCompensation: flattenDetails(orderedIDs, details),
		AverageAward:         average,
	}

	// Facts, legal basis, and damages drafts are independent; the
	// conclusion needs the damages totals and follows sequentially.
	draft := &model.DocumentDraft{CaseType: ct, RequestID: id}
	var (
		factsDraft  *model.SectionDraft
		legalDraft  *model.SectionDraft
		damageDraft *model.SectionDraft
		totals      map[string]int64
		summary     string
	)
	gg, ggctx := errgroup.WithContext(ctx)
	draftInit := func(name model.SectionName, out **model.SectionDraft) func() error {
		return func() error {
			if err := ggctx.Err(); err != nil {
				return err
			}
			res, err := p.registry.Generate(ggctx, qreq.Task(name, ct, 1, ""))
			if err != nil {
				return fmt.Errorf("draft %s: %w", name, err)
			}
			*out = &model.SectionDraft{Section: name, Text: res.Text, Strategy: res.Strategy, Attempts: 1}
			if name == model.SectionDamages {
				totals = res.Totals
			}
			return nil
		}
	}
	gg.Go(draftInit(model.SectionFacts, &factsDraft))
	gg.Go(draftInit(model.SectionLegalBasis, &legalDraft))
	gg.Go(draftInit(model.SectionDamages, &damageDraft))
	if cfg.QC.FactCheck {
		gg.Go(func() error {
			if err := ggctx.Err(); err != nil {
				return err
			}
			summary = p.caseSummary(ggctx, input)
			return nil
		})
	}
	if err := gg.Wait(); err != nil {
		return nil, err
	}
	draft.SetSection(factsDraft)
	draft.SetSection(legalDraft)
	draft.SetSection(damageDraft)
	draft.Totals = totals

	concTask := qreq.Task(model.SectionConclusion, ct, 1, "")
	concTask.DamagesText = damageDraft.Text
	concTask.Totals = draft.Totals
	res, err := p.registry.Generate(ctx, concTask)
	if err != nil {
		return nil, fmt.Errorf("draft conclusion: %w", err)
	}
	draft.SetSection(&model.SectionDraft{
		Section: model.SectionConclusion, Text: res.Text, Strategy: res.Strategy, Attempts: 1,
	})

	qreq.Summary = summary
	runner := qc.NewRunner(p.registry, p.provider, p.limiter, cfg.QC, log)
	if err := runner.Run(ctx, draft, qreq); err != nil {
		return nil, fmt.Errorf("quality control: %w", err)
	}

	doc, err := assemble.Assemble(draft)
	if err != nil {
		return nil, err
	}
	log.Info("complaint generated",
		"case_type", ct, "chars", len(doc.Text), "elapsed", time.Since(start))
	return doc, nil
}

// normalizeInput fills the structured fields from the raw narrative when
// they are missing, validates the result, and returns the narrative
// parts used for statute matching. The request input is never mutated.
func normalizeInput(in *model.ParsedInput) (*model.ParsedInput, parse.Narrative, error) {
	if in == nil {
		return nil, parse.Narrative{}, fmt.Errorf("%w: no input", model.ErrInvalidInput)
	}
	out := *in

	var n parse.Narrative
	if strings.TrimSpace(out.AccidentFacts) == "" && strings.TrimSpace(out.RawText) != "" {
		n = parse.SplitNarrative(out.RawText)
		out.AccidentFacts = n.AccidentFacts
		if strings.TrimSpace(out.InjuryDescription) == "" {
			out.InjuryDescription = n.InjuryDetails
		}
		if len(out.DamageClaims) == 0 {
			out.DamageClaims = parse.ParseClaimLines(n.CompensationFacts)
		}
	}

	if err := out.Validate(); err != nil {
		return nil, parse.Narrative{}, err
	}

	n.AccidentFacts = out.AccidentFacts
	n.InjuryDetails = out.InjuryDescription
	if n.CompensationFacts == "" {
		n.CompensationFacts = generate.ClaimFacts(&out)
	}
	return &out, n, nil
}

// rerankCases re-scores the retrieval candidates at paragraph
// granularity. Reranking is an ordering refinement: when the embedding
// backend is missing or failing the retrieval order stands, with a
// warning. Only cancellation propagates as an error.
func (p *Pipeline) rerankCases(ctx context.Context, query string, cases []model.CaseRecord, minScore float64) (*model.RerankedSet, error) {
	if p.embedder == nil || p.reranker == nil {
		return nil, nil
	}
	if err := p.waitBackend(ctx, worker.BackendEmbed); err != nil {
		return nil, err
	}

	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.log.Warn("rerank skipped, query embedding failed", "error", err)
		return nil, nil
	}

	set, err := p.reranker.Rerank(ctx, vec, cases, minScore)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		p.log.Warn("rerank failed, keeping retrieval order", "error", err)
		return nil, nil
	}
	return set, nil
}

// precedentFigures reads the itemized damage lines and the average
// conclusion award from the precedent graph. Both are drafting hints;
// graph failures log and return empty.
func (p *Pipeline) precedentFigures(ctx context.Context, caseIDs []string) (map[string][]string, int64) {
	if p.exemplars == nil {
		return nil, 0
	}
	if err := p.waitBackend(ctx, worker.BackendGraph); err != nil {
		return nil, 0
	}

	details, err := p.exemplars.CompensationDetails(ctx, caseIDs)
	if err != nil {
		p.log.Warn("compensation details unavailable", "error", err)
		details = nil
	}
	_, average, err := p.exemplars.ConclusionAverage(ctx, caseIDs)
	if err != nil {
		p.log.Warn("conclusion average unavailable", "error", err)
		average = 0
	}
	return details, average
}

// exemplarSections fetches the pleading sections of the rerank winner
// for use as drafting exemplars.
func (p *Pipeline) exemplarSections(ctx context.Context, caseID string) graph.Sections {
	if p.exemplars == nil || caseID == "" {
		return graph.Sections{}
	}
	if err := p.waitBackend(ctx, worker.BackendGraph); err != nil {
		return graph.Sections{}
	}
	sections, err := p.exemplars.CaseSections(ctx, caseID)
	if err != nil {
		p.log.Warn("exemplar sections unavailable", "case_id", caseID, "error", err)
		return graph.Sections{}
	}
	return sections
}

// caseSummary condenses the narrative into the bracket-labelled form
// the facts review compares against. Failures log and return empty,
// which skips that review rather than failing the request.
func (p *Pipeline) caseSummary(ctx context.Context, input *model.ParsedInput) string {
	if err := p.waitBackend(ctx, worker.BackendLLM); err != nil {
		return ""
	}
	resp, err := p.provider.Generate(ctx, llm.GenerateRequest{
		Prompt: generate.CaseSummaryPrompt(input.AccidentFacts, input.InjuryDescription),
	})
	if err != nil {
		p.log.Warn("case summary failed, facts review will be skipped", "error", err)
		return ""
	}
	return strings.TrimSpace(resp.Text)
}

func (p *Pipeline) waitBackend(ctx context.Context, backend string) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx, backend)
}

// flattenDetails orders the per-case damage lines by case rank.
func flattenDetails(order []string, details map[string][]string) []string {
	var lines []string
	for _, id := range order {
		lines = append(lines, details[id]...)
	}
	return lines
}

// BackendProbe is one backend's availability report.
type BackendProbe struct {
	Backend    string `json:"backend"`
	Configured bool   `json:"configured"`
	Available  bool   `json:"available"`
	Detail     string `json:"detail,omitempty"`
}

// Probe checks each backend's reachability. Unconfigured backends
// report Configured false and are not probed.
func (p *Pipeline) Probe(ctx context.Context) []BackendProbe {
	probes := make([]BackendProbe, 0, 4)

	lp := BackendProbe{Backend: "llm"}
	if p.provider != nil {
		lp.Configured = true
		lp.Detail = strings.TrimSpace(p.provider.Name() + " " + p.cfg.LLM.Model)
		lp.Available = p.provider.IsAvailable(ctx)
	}
	probes = append(probes, lp)

	ep := BackendProbe{Backend: "embedding"}
	if p.embedder != nil {
		ep.Configured = true
		ep.Detail = strings.TrimSpace(p.embedder.Name() + " " + p.cfg.Embedding.Model)
		ep.Available = p.embedder.IsAvailable(ctx)
	}
	probes = append(probes, ep)

	sp := BackendProbe{Backend: "search"}
	if p.searcher != nil && p.cfg.Search.BaseURL != "" {
		sp.Configured = true
		sp.Detail = p.cfg.Search.BaseURL
		sp.Available = p.searcher.Ping(ctx) == nil
	}
	probes = append(probes, sp)

	gp := BackendProbe{Backend: "graph"}
	if p.graphc != nil {
		gp.Configured = true
		gp.Detail = p.cfg.Graph.URI
		gp.Available = p.graphc.IsAvailable(ctx)
	}
	probes = append(probes, gp)

	return probes
}

// Close releases backend connections.
func (p *Pipeline) Close(ctx context.Context) error {
	return p.graphc.Close(ctx)
}
