package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var probeTimeout time.Duration

// probeCmd represents the probe command
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check backend availability",
	Long: `Probe checks each configured backend and reports its status:
- LLM provider (drafting and quality-control calls)
- Embedding backend (narrative vectorization)
- Search (precedent retrieval indices)
- Graph (statute knowledge graph)

Unconfigured backends are listed but not probed. The command exits
non-zero when a configured backend is unreachable.

Example:
  plaintgen probe
  plaintgen probe --timeout 10s`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 30*time.Second, "total probe timeout")
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p, log, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer func() { _ = p.Close(context.Background()) }()

	unreachable := 0
	fmt.Printf("%-12s %-12s %-12s %s\n", "BACKEND", "CONFIGURED", "AVAILABLE", "DETAIL")
	for _, pr := range p.Probe(ctx) {
		configured := "no"
		available := "-"
		if pr.Configured {
			configured = "yes"
			if pr.Available {
				available = "yes"
			} else {
				available = "no"
				unreachable++
			}
		}
		fmt.Printf("%-12s %-12s %-12s %s\n", pr.Backend, configured, available, pr.Detail)
	}

	if unreachable > 0 {
		return fmt.Errorf("%d configured backend(s) unreachable", unreachable)
	}
	return nil
}
