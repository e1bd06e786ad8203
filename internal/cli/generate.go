package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/clweng/plaintgen/internal/model"
	"github.com/clweng/plaintgen/internal/pipeline"
	"github.com/clweng/plaintgen/internal/qc"
)

var (
	genInput     string
	genOutput    string
	genDraftJSON string
	genTimeout   time.Duration
	genProvider  string
	genModel     string
	genTopK      int
	genMinScore  float64
	genRetries   int
	genCaseType  string
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one complaint from a request file or stdin",
	Long: `Generate drafts a single civil complaint:
- Parse the structured request (or split a raw narrative)
- Classify the case type and retrieve similar adjudicated cases
- Resolve the statutes the precedents cite
- Draft the facts, legal basis, damages, and conclusion sections
- Quality-check every section before assembly

Input is JSON ({"input": {...}} or a bare input object) or, when it does
not start with '{', a raw narrative in Traditional Chinese.

Example:
  plaintgen generate -i request.json -o complaint.txt
  cat narrative.txt | plaintgen generate --provider openai --model gpt-4o-mini
  plaintgen generate -i request.json --case-type 數名原告 --top-k 8`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	// Input/output flags
	generateCmd.Flags().StringVarP(&genInput, "input", "i", "-", "request file (JSON or raw narrative), '-' for stdin")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "", "output path for the assembled document (default: stdout)")
	generateCmd.Flags().StringVar(&genDraftJSON, "draft-json", "", "also write the draft (sections, attempts, totals) as JSON")
	generateCmd.Flags().DurationVar(&genTimeout, "timeout", 5*time.Minute, "overall generation timeout (covers retrieval and QC retries)")

	// LLM flags
	generateCmd.Flags().StringVar(&genProvider, "provider", "", "LLM provider (openai, anthropic, ollama, gemini)")
	generateCmd.Flags().StringVar(&genModel, "model", "", "LLM model name")

	// Per-request overrides
	generateCmd.Flags().IntVar(&genTopK, "top-k", 0, "retrieval depth override")
	generateCmd.Flags().Float64Var(&genMinScore, "min-score", 0, "rerank cosine threshold override")
	generateCmd.Flags().IntVar(&genRetries, "retries", 0, "per-section regeneration budget override")
	generateCmd.Flags().StringVar(&genCaseType, "case-type", "", "case type override (e.g. 單純原被告各一)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), genTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if genProvider != "" {
		cfg.LLM.Provider = genProvider
	}
	if genModel != "" {
		cfg.LLM.Model = genModel
	}
	if cfg.LLM.Provider == "" {
		return fmt.Errorf("no LLM provider configured (set llm.provider, PLAINTGEN_LLM_PROVIDER, or --provider)")
	}

	req, err := readRequest(genInput)
	if err != nil {
		return err
	}
	req.Overrides = mergeOverrides(cmd, req.Overrides)

	if verbose {
		fmt.Fprintf(os.Stderr, "Provider: %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", genTimeout)
		fmt.Fprintln(os.Stderr)
	}

	p, log, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer func() {
		if cerr := p.Close(context.Background()); cerr != nil {
			fmt.Fprintf(os.Stderr, "close backends: %v\n", cerr)
		}
	}()

	doc, err := p.Generate(ctx, req)
	if err != nil {
		var abandoned *qc.AbandonedError
		if errors.As(err, &abandoned) {
			d := abandoned.Diagnostic
			fmt.Fprintf(os.Stderr, "Section %s failed review after %d attempt(s):\n", d.Section, d.Attempts)
			for _, r := range d.Reasons {
				fmt.Fprintf(os.Stderr, "  - %s\n", r)
			}
			if genDraftJSON != "" && abandoned.Draft != nil {
				if werr := writeDraftJSON(genDraftJSON, abandoned.Draft); werr == nil {
					fmt.Fprintf(os.Stderr, "Last draft written to %s for review\n", genDraftJSON)
				}
			}
		}
		return fmt.Errorf("generate failed: %w", err)
	}

	if verbose && doc.Draft != nil {
		fmt.Fprintf(os.Stderr, "✓ Request: %s\n", doc.Draft.RequestID)
		fmt.Fprintf(os.Stderr, "✓ Case type: %s\n", doc.Draft.CaseType)
		for _, name := range model.SectionOrder {
			if s := doc.Draft.Section(name); s != nil {
				fmt.Fprintf(os.Stderr, "✓ %s: %d attempt(s), strategy %s\n", name, s.Attempts, s.Strategy)
			}
		}
		fmt.Fprintln(os.Stderr)
	}

	draftPath := genDraftJSON
	if draftPath == "" && cfg.Output.IncludeDraft && genOutput != "" {
		draftPath = genOutput + ".draft.json"
	}

	if genOutput == "" {
		text := doc.Text
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		fmt.Print(text)
	} else {
		if err := writeText(genOutput, doc.Text); err != nil {
			return fmt.Errorf("write document: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", genOutput)
		}
	}

	if draftPath != "" && doc.Draft != nil {
		if err := writeDraftJSON(draftPath, doc.Draft); err != nil {
			return err
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", draftPath)
		}
	}

	return nil
}

// readRequest loads one request from path ('-' for stdin). JSON may be a
// full request envelope or a bare input object; anything else is treated
// as a raw narrative and split downstream.
func readRequest(path string) (*pipeline.Request, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("empty input")
	}

	if !strings.HasPrefix(text, "{") {
		return &pipeline.Request{Input: &model.ParsedInput{RawText: text}}, nil
	}

	var req pipeline.Request
	if err := json.Unmarshal([]byte(text), &req); err != nil {
		return nil, fmt.Errorf("parse request JSON: %w", err)
	}
	if req.Input == nil {
		var in model.ParsedInput
		if err := json.Unmarshal([]byte(text), &in); err != nil {
			return nil, fmt.Errorf("parse request JSON: %w", err)
		}
		req.Input = &in
	}
	return &req, nil
}

// mergeOverrides layers the override flags onto any overrides carried in
// the request JSON. Flags win.
func mergeOverrides(cmd *cobra.Command, base *model.Overrides) *model.Overrides {
	o := base
	ensure := func() *model.Overrides {
		if o == nil {
			o = &model.Overrides{}
		}
		return o
	}
	if cmd.Flags().Changed("top-k") {
		v := genTopK
		ensure().RetrievalTopK = &v
	}
	if cmd.Flags().Changed("min-score") {
		v := genMinScore
		ensure().RerankMinScore = &v
	}
	if cmd.Flags().Changed("retries") {
		v := genRetries
		ensure().RetryBudget = &v
	}
	if genCaseType != "" {
		ensure().CaseType = model.CaseType(genCaseType)
	}
	return o
}

// writeText writes the document text with a trailing newline.
func writeText(path, text string) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return os.WriteFile(path, []byte(text), 0644)
}

// writeDraftJSON writes the draft structure for review tooling.
func writeDraftJSON(path string, draft *model.DocumentDraft) error {
	data, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write draft: %w", err)
	}
	return nil
}
