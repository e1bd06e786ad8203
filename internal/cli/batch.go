package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/clweng/plaintgen/internal/pipeline"
)

var (
	batchWorkers   int
	batchOutputDir string
	batchTimeout   time.Duration
	batchDraft     bool
	batchProvider  string
	batchModel     string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Generate complaints for multiple requests in parallel",
	Long: `Batch reads newline-delimited JSON requests and generates a
complaint for each:
- One request object per line; blank lines and # comments are skipped
- Requests run in parallel with a configurable worker count
- Each document is written to its own file, named by request ID
- One failed request does not stop the rest

Example:
  plaintgen batch requests.jsonl
  plaintgen batch requests.jsonl --workers 5 --output-dir ./complaints
  plaintgen batch requests.jsonl --draft --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&batchWorkers, "workers", 3, "number of concurrent generations")
	batchCmd.Flags().StringVar(&batchOutputDir, "output-dir", "./plaintgen-out", "output directory for documents")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for the batch")
	batchCmd.Flags().BoolVar(&batchDraft, "draft", false, "also write each draft as JSON")

	// LLM flags
	batchCmd.Flags().StringVar(&batchProvider, "provider", "", "LLM provider (openai, anthropic, ollama, gemini)")
	batchCmd.Flags().StringVar(&batchModel, "model", "", "LLM model name")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Concurrency.Workers = batchWorkers
	if batchProvider != "" {
		cfg.LLM.Provider = batchProvider
	}
	if batchModel != "" {
		cfg.LLM.Model = batchModel
	}
	if cfg.LLM.Provider == "" {
		return fmt.Errorf("no LLM provider configured (set llm.provider, PLAINTGEN_LLM_PROVIDER, or --provider)")
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Plaintgen Batch Generation\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", batchOutputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	fmt.Fprintf(os.Stderr, "\n")

	reqs, err := pipeline.ReadRequestsFromFile(file)
	if err != nil {
		return fmt.Errorf("read requests: %w", err)
	}
	if len(reqs) == 0 {
		return fmt.Errorf("no requests in %s", file)
	}
	fmt.Fprintf(os.Stderr, "✓ Loaded %d requests\n", len(reqs))

	// Create output directory
	if err := os.MkdirAll(batchOutputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p, log, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer func() { _ = p.Close(context.Background()) }()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "⚙️  Generating with %d workers...\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "\n")

	processor := pipeline.NewBatchProcessor(p, cfg.Concurrency.Workers, log)
	results := processor.Process(ctx, reqs)

	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", resultLabel(result), result.Err)
			continue
		}
		successCount++

		slug := sanitizeFilename(result.RequestID)
		docPath := filepath.Join(batchOutputDir, slug+".txt")
		if err := writeText(docPath, result.Document.Text); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: write document: %v\n", result.RequestID, err)
			successCount--
			failureCount++
			continue
		}
		if batchDraft && result.Document.Draft != nil {
			draftPath := filepath.Join(batchOutputDir, slug+".draft.json")
			if err := writeDraftJSON(draftPath, result.Document.Draft); err != nil {
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.RequestID, err)
			}
		}
		fmt.Fprintf(os.Stderr, "✓ %s\n", docPath)
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d requests\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", batchOutputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d requests failed", failureCount, len(results))
	}
	return nil
}

// resultLabel names a result for error output. Failed requests may never
// have been assigned an ID.
func resultLabel(r *pipeline.BatchResult) string {
	if r.RequestID != "" {
		return r.RequestID
	}
	return fmt.Sprintf("request %d", r.Index+1)
}

// sanitizeFilename maps a request ID to a safe file name. Path
// separators and shell metacharacters become underscores; CJK letters
// survive so user-assigned IDs stay readable.
func sanitizeFilename(s string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
	mapped = strings.Trim(mapped, "._")
	if mapped == "" {
		return "request"
	}
	if runes := []rune(mapped); len(runes) > 80 {
		mapped = string(runes[:80])
	}
	return mapped
}
