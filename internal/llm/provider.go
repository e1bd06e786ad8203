package llm

import (
	"context"
	"strings"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate produces text for a drafting or validation prompt
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// GenerateRequest contains the input for one LLM call
type GenerateRequest struct {
	// System overrides the default system prompt (if empty, use default)
	System string

	// Prompt is the full user prompt
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// GenerateResponse contains the LLM's output
type GenerateResponse struct {
	// Text is the generated text
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", "gemini", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Model:     "",
		Timeout:   60,
		MaxTokens: 2048,
	}
}

// DefaultSystemPrompt frames every drafting call. Output must read like a
// Taiwanese civil complaint, in Traditional Chinese.
const DefaultSystemPrompt = "你是熟悉台灣交通事故民事損害賠償實務的書狀撰寫助理。" +
	"請一律使用繁體中文與正式書狀用語，嚴格依照提供的事實與參考資料撰寫，不得虛構事實或金額。"

// systemOrDefault resolves the effective system prompt for a request.
func systemOrDefault(req GenerateRequest) string {
	if strings.TrimSpace(req.System) != "" {
		return req.System
	}
	return DefaultSystemPrompt
}
