// Package qc drives every section draft of a complaint to an accepted
// state, validating with deterministic and LLM-assisted checks and
// regenerating rejected sections within a bounded retry budget.
package qc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clweng/plaintgen/internal/generate"
	"github.com/clweng/plaintgen/internal/llm"
	"github.com/clweng/plaintgen/internal/logger"
	"github.com/clweng/plaintgen/internal/model"
	"github.com/clweng/plaintgen/internal/worker"
)

// ErrBudgetExhausted reports a section that kept failing validation
// until its regeneration budget ran out.
var ErrBudgetExhausted = errors.New("qc: retry budget exhausted")

// State is the quality-control state of one section draft.
type State string

// A section enters at Drafting (no draft yet) or Validating (draft
// handed in), cycles through Regenerating on rejection, and terminates
// at Accepted or Abandoned.
const (
	StateDrafting     State = "drafting"
	StateValidating   State = "validating"
	StateRegenerating State = "regenerating"
	StateAccepted     State = "accepted"
	StateAbandoned    State = "abandoned"
)

// qcSleep is the backoff sleep between regeneration attempts (injectable for tests)
var qcSleep = time.Sleep

// AbandonedError carries the diagnostic for a section that exhausted
// its budget, plus the last draft produced so callers can inspect what
// kept failing. It unwraps to ErrBudgetExhausted.
type AbandonedError struct {
	Diagnostic *model.Diagnostic
	Draft      *model.DocumentDraft
}

func (e *AbandonedError) Error() string {
	reason := ""
	if n := len(e.Diagnostic.Reasons); n > 0 {
		reason = ": " + e.Diagnostic.Reasons[n-1]
	}
	return fmt.Sprintf("qc: section %s abandoned after %d attempts%s",
		e.Diagnostic.Section, e.Diagnostic.Attempts, reason)
}

func (e *AbandonedError) Unwrap() error { return ErrBudgetExhausted }

// Request is the per-request context the runner needs to validate
// drafts and to rebuild generation tasks for rejected sections.
type Request struct {
	Input    *model.ParsedInput
	Statutes *model.StatuteSet

	// Retrieval context forwarded to regeneration prompts.
	ExemplarFacts        string
	ExemplarCompensation []string
	AverageAward         int64

	// Summary is the condensed case description the facts review
	// compares against. Empty skips that review.
	Summary string
}

// Task builds the generation task for one drafting attempt of a section.
// Conclusion inputs (damages text, totals) are layered on by the caller
// once a damages draft exists.
func (req *Request) Task(name model.SectionName, caseType model.CaseType, attempt int, feedback string) *generate.Task {
	return &generate.Task{
		Section:              name,
		CaseType:             caseType,
		Input:                req.Input,
		Statutes:             req.Statutes,
		ExemplarFacts:        req.ExemplarFacts,
		ExemplarCompensation: req.ExemplarCompensation,
		AverageAward:         req.AverageAward,
		PlaintiffsInfo:       generate.PlaintiffsInfo(req.Input),
		Feedback:             feedback,
		Attempt:              attempt,
	}
}

// Runner drives the sections of a document draft to Accepted or
// Abandoned, regenerating rejected drafts with the rejection reason as
// prompt feedback.
type Runner struct {
	registry *generate.Registry
	check    *checker
	cfg      model.QCConfig
	log      *logger.Logger
}

// NewRunner builds a runner. A nil provider disables the LLM-assisted
// reviews; the deterministic checks always run.
func NewRunner(registry *generate.Registry, provider llm.Provider, limiter *worker.Limiter, cfg model.QCConfig, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	var chk *checker
	if provider != nil {
		chk = &checker{provider: provider, limiter: limiter, log: log}
	}
	return &Runner{registry: registry, check: chk, cfg: cfg, log: log}
}

// Run validates and, where needed, regenerates each section in document
// order. A regenerated damages section invalidates the conclusion,
// whose totals derive from it: the conclusion is then redrafted from
// the new damages text before its own validation. Accepted sections are
// never touched by another section's regeneration.
func (r *Runner) Run(ctx context.Context, draft *model.DocumentDraft, req *Request) error {
	if req == nil {
		req = &Request{}
	}

	for _, name := range []model.SectionName{model.SectionFacts, model.SectionLegalBasis} {
		if _, err := r.runSection(ctx, draft, req, name, false); err != nil {
			return err
		}
	}

	damagesChanged, err := r.runSection(ctx, draft, req, model.SectionDamages, false)
	if err != nil {
		return err
	}
	if damagesChanged && draft.Section(model.SectionConclusion) != nil {
		r.log.Info("damages redrafted, conclusion invalidated",
			"request_id", draft.RequestID)
	}
	_, err = r.runSection(ctx, draft, req, model.SectionConclusion, damagesChanged)
	return err
}

// runSection is the per-section state machine. It reports whether the
// section text changed. forceRedraft discards the current draft text by
// drafting anew even when a draft is already present.
func (r *Runner) runSection(ctx context.Context, draft *model.DocumentDraft, req *Request, name model.SectionName, forceRedraft bool) (bool, error) {
	state := StateValidating
	if draft.Section(name) == nil || forceRedraft {
		state = StateDrafting
	}

	var reasons []string
	regens := 0
	changed := false

	for {
		if err := ctx.Err(); err != nil {
			return changed, err
		}

		switch state {
		case StateDrafting, StateRegenerating:
			feedback := ""
			if len(reasons) > 0 {
				feedback = reasons[len(reasons)-1]
			}
			if err := r.redraft(ctx, draft, req, name, feedback); err != nil {
				if ctx.Err() != nil || errors.Is(err, generate.ErrNoStrategy) || errors.Is(err, generate.ErrUnknownCaseType) {
					return changed, err
				}
				r.log.Warn("section draft failed",
					"request_id", draft.RequestID, "section", name, "error", err)
				reasons = append(reasons, "生成失敗，請重新生成完整內容")
				state = r.reject(&regens)
				continue
			}
			changed = true
			state = StateValidating

		case StateValidating:
			sec := draft.Section(name)
			reason, err := r.validate(ctx, req, sec, draft.Totals)
			if err != nil {
				return changed, err
			}
			if reason == "" {
				sec.Accepted = true
				state = StateAccepted
				continue
			}
			r.log.Warn("section rejected",
				"request_id", draft.RequestID, "section", name,
				"attempt", sec.Attempts, "reason", reason)
			sec.Accepted = false
			reasons = append(reasons, reason)
			state = r.reject(&regens)

		case StateAccepted:
			return changed, nil

		case StateAbandoned:
			attempts := 0
			if sec := draft.Section(name); sec != nil {
				attempts = sec.Attempts
			}
			return changed, &AbandonedError{
				Diagnostic: &model.Diagnostic{
					RequestID: draft.RequestID,
					Section:   name,
					Attempts:  attempts,
					State:     string(StateAbandoned),
					Reasons:   reasons,
				},
				Draft: draft,
			}
		}
	}
}

// reject decides the transition after a rejection: Abandoned once the
// budget is spent, otherwise Regenerating after an exponential backoff.
func (r *Runner) reject(regens *int) State {
	if *regens >= r.cfg.RetryBudget {
		return StateAbandoned
	}
	*regens++
	backoff := time.Duration(1<<uint(*regens-1)) * time.Second
	if r.cfg.MaxBackoff > 0 && backoff > r.cfg.MaxBackoff {
		backoff = r.cfg.MaxBackoff
	}
	qcSleep(backoff)
	return StateRegenerating
}

// redraft produces the next draft of a section through the registry and
// folds it into the document. Totals from a damages redraft replace the
// document totals.
func (r *Runner) redraft(ctx context.Context, draft *model.DocumentDraft, req *Request, name model.SectionName, feedback string) error {
	sec := draft.Section(name)
	attempt := 1
	if sec != nil {
		attempt = sec.Attempts + 1
	}

	task := req.Task(name, draft.CaseType, attempt, feedback)
	if name == model.SectionConclusion {
		if damages := draft.Section(model.SectionDamages); damages != nil {
			task.DamagesText = damages.Text
		}
		task.Totals = draft.Totals
	}

	res, err := r.registry.Generate(ctx, task)
	if err != nil {
		return err
	}

	if sec == nil {
		sec = &model.SectionDraft{Section: name}
		draft.SetSection(sec)
	}
	sec.Text = res.Text
	sec.Strategy = res.Strategy
	sec.Attempts = attempt
	sec.Accepted = false
	if name == model.SectionDamages && res.Totals != nil {
		draft.Totals = res.Totals
	}
	return nil
}

// validate returns the rejection reason for a draft, empty on pass.
// Review-call failures degrade to a warning instead of a rejection so
// an unreachable review backend cannot burn the regeneration budget.
func (r *Runner) validate(ctx context.Context, req *Request, sec *model.SectionDraft, totals map[string]int64) (string, error) {
	if reason := checkStructure(sec); reason != "" {
		return reason, nil
	}

	switch sec.Section {
	case model.SectionFacts:
		if r.check == nil || !r.cfg.FactCheck || req.Summary == "" {
			return "", nil
		}
		v, err := r.check.review(ctx, FactQualityCheckPrompt(sec.Text, req.Summary))
		if err != nil {
			return r.reviewSkip(ctx, sec, err)
		}
		if !v.pass {
			return v.reason, nil
		}

	case model.SectionDamages:
		if reason := checkDamages(sec.Text, totals); reason != "" {
			return reason, nil
		}
		if r.check == nil || req.Input == nil {
			return "", nil
		}
		prompt := CompensationCheckPrompt(sec.Text, req.Input.InjuryDescription,
			generate.ClaimFacts(req.Input), generate.PlaintiffsInfo(req.Input))
		v, err := r.check.review(ctx, prompt)
		if err != nil {
			return r.reviewSkip(ctx, sec, err)
		}
		if !v.pass {
			return v.reason, nil
		}

	case model.SectionConclusion:
		if reason := checkConclusionAmounts(sec.Text, totals); reason != "" {
			return reason, nil
		}
	}
	return "", nil
}

// reviewSkip converts a failed review call into a pass, unless the
// request itself was cancelled.
func (r *Runner) reviewSkip(ctx context.Context, sec *model.SectionDraft, err error) (string, error) {
	if ctx.Err() != nil {
		return "", err
	}
	r.log.Warn("review call failed, keeping draft",
		"section", sec.Section, "error", err)
	return "", nil
}
