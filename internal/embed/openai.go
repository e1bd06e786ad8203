package embed

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder computes embeddings through OpenAI's embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	config Config
}

// NewOpenAIEmbedder creates an embedder backed by OpenAI.
func NewOpenAIEmbedder(config Config) (*OpenAIEmbedder, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the backend name
func (e *OpenAIEmbedder) Name() string {
	return "openai"
}

// Dimension returns the configured vector width.
func (e *OpenAIEmbedder) Dimension() int {
	return e.config.Dimension
}

// IsAvailable checks if the backend is reachable
func (e *OpenAIEmbedder) IsAvailable(ctx context.Context) bool {
	// Lightweight API call; also surfaces API key problems early
	_, err := e.client.ListModels(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "OpenAI embedding check failed: %v\n", err)
		return false
	}
	return true
}

// Embed converts text into a dense vector.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	model := e.config.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}

	timeout := time.Duration(e.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctxWithTimeout, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI embedding error: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned from OpenAI")
	}

	vec := resp.Data[0].Embedding
	if err := checkDimension(vec, e.config.Dimension); err != nil {
		return nil, err
	}

	return vec, nil
}
