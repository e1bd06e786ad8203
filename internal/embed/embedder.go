// Package embed turns query text into dense vectors for the retrieval
// index. The default backend is an Ollama server running a Chinese
// sentence-embedding model; OpenAI's embedding endpoint is supported
// as an alternative.
package embed

import (
	"context"
	"fmt"
	"strings"

	"github.com/clweng/plaintgen/internal/model"
)

// Embedder produces a fixed-dimension vector for a piece of text.
type Embedder interface {
	// Name returns the backend name ("ollama", "openai")
	Name() string

	// Embed converts text into a dense vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the expected vector width.
	Dimension() int

	// IsAvailable checks if the backend is reachable
	IsAvailable(ctx context.Context) bool
}

// Config holds embedding backend configuration
type Config struct {
	Provider  string // "ollama", "openai"
	Model     string // model name, e.g. "shibing624/text2vec-base-chinese"
	BaseURL   string // server URL for ollama
	APIKey    string // API key for openai
	Timeout   int    // request timeout in seconds
	Dimension int    // expected vector width, 0 disables the check

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// NewEmbedder creates an embedder based on the configured provider.
// Returns nil if no provider is configured.
func NewEmbedder(config Config) (Embedder, error) {
	switch strings.ToLower(config.Provider) {
	case "ollama":
		return NewOllamaEmbedder(config)
	case "openai":
		return NewOpenAIEmbedder(config)
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: ollama, openai)", config.Provider)
	}
}

// ConfigFromModel maps the application config onto an embed.Config.
func ConfigFromModel(ec model.EmbeddingConfig, hc model.HTTPConfig) Config {
	return Config{
		Provider:   ec.Provider,
		Model:      ec.Model,
		BaseURL:    ec.BaseURL,
		APIKey:     ec.APIKey,
		Timeout:    ec.Timeout,
		Dimension:  ec.Dimension,
		HTTPProxy:  hc.HTTPProxy,
		HTTPSProxy: hc.HTTPSProxy,
		NoProxy:    hc.NoProxy,
	}
}

// checkDimension validates vector width against the configured dimension.
func checkDimension(vec []float32, want int) error {
	if want > 0 && len(vec) != want {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vec), want)
	}
	return nil
}
