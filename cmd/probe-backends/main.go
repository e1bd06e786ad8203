// Standalone backend probe used while standing up the retrieval stack.
// Reads the same environment variables as the CLI but skips config files,
// so it answers "is my docker-compose up yet" with zero setup.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/clweng/plaintgen/internal/logger"
	"github.com/clweng/plaintgen/internal/model"
	"github.com/clweng/plaintgen/internal/pipeline"
)

func main() {
	fmt.Println("=== plaintgen backend probe ===")
	fmt.Println()

	cfg := model.DefaultConfig()
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("ELASTICSEARCH_URL"); v != "" {
		cfg.Search.BaseURL = v
	}
	cfg.Search.Username = os.Getenv("ELASTICSEARCH_USER")
	cfg.Search.Password = os.Getenv("ELASTICSEARCH_PASSWORD")
	if v := os.Getenv("NEO4J_URI"); v != "" {
		cfg.Graph.URI = v
	}
	cfg.Graph.Username = os.Getenv("NEO4J_USER")
	cfg.Graph.Password = os.Getenv("NEO4J_PASSWORD")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log, err := logger.New("development")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// No LLM provider here: the probe covers the local stack the LLM
	// calls sit on top of, and needs no API key.
	p, err := pipeline.New(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pipeline: %v\n", err)
		os.Exit(1)
	}
	defer p.Close(context.Background())

	failed := 0
	for _, pr := range p.Probe(ctx) {
		switch {
		case !pr.Configured:
			fmt.Printf("  - %-10s not configured\n", pr.Backend)
		case pr.Available:
			fmt.Printf("  ✓ %-10s %s\n", pr.Backend, pr.Detail)
		default:
			fmt.Printf("  ✗ %-10s unreachable (%s)\n", pr.Backend, pr.Detail)
			failed++
		}
	}

	fmt.Println()
	if failed > 0 {
		fmt.Printf("%d backend(s) unreachable\n", failed)
		os.Exit(1)
	}
	fmt.Println("All configured backends reachable.")
}
