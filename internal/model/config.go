package model

import (
	"fmt"
	"time"
)

// Config is the full runtime configuration. Defaults come from
// DefaultConfig; the CLI layers the config file, environment, and flags
// on top. Secrets (API keys, graph credentials) are environment-only and
// never serialized.
type Config struct {
	HTTP         HTTPConfig        `yaml:"http"`
	LLM          LLMConfig         `yaml:"llm"`
	Embedding    EmbeddingConfig   `yaml:"embedding"`
	Search       SearchConfig      `yaml:"search"`
	Graph        GraphConfig       `yaml:"graph"`
	Statute      StatuteConfig     `yaml:"statute"`
	Retrieval    RetrievalConfig   `yaml:"retrieval"`
	QC           QCConfig          `yaml:"qc"`
	Generation   GenerationConfig  `yaml:"generation"`
	Cache        CacheConfig       `yaml:"cache"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting"`
	Output       OutputConfig      `yaml:"output"`
}

// HTTPConfig controls the shared HTTP client behavior for backend calls.
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	InsecureTLS  bool          `yaml:"insecure_tls"`
	HTTPProxy    string        `yaml:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy"`
}

// LLMConfig selects and configures the generation provider.
type LLMConfig struct {
	// Provider name: "openai", "anthropic", "ollama", "gemini", ""
	Provider string `yaml:"provider"`

	// Model name (provider-specific)
	Model string `yaml:"model"`

	// APIKey comes from the environment, never from the config file
	APIKey string `yaml:"-"`

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string `yaml:"base_url"`

	// Timeout for API requests
	Timeout int `yaml:"timeout"` // seconds

	// MaxTokens for response generation
	MaxTokens int `yaml:"max_tokens"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "ollama", "openai", ""
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"-"`         // environment-only, used by the openai backend
	Timeout   int    `yaml:"timeout"`   // seconds
	Dimension int    `yaml:"dimension"` // expected vector length
}

// SearchConfig points at the precedent search indices.
type SearchConfig struct {
	BaseURL        string `yaml:"base_url"`
	Username       string `yaml:"-"` // environment-only
	Password       string `yaml:"-"` // environment-only
	CaseIndex      string `yaml:"case_index"`
	ParagraphIndex string `yaml:"paragraph_index"`
}

// GraphConfig points at the statute knowledge graph.
type GraphConfig struct {
	URI         string `yaml:"uri"`
	Username    string `yaml:"-"`
	Password    string `yaml:"-"`
	Database    string `yaml:"database"`
	Timeout     int    `yaml:"timeout"` // seconds, per query
	MaxPoolSize int    `yaml:"max_pool_size"`
}

// StatuteConfig controls statute resolution behavior.
type StatuteConfig struct {
	KeywordCrossCheck  bool `yaml:"keyword_cross_check"` // add keyword-matched statutes the graph missed
	ApplicabilityCheck bool `yaml:"applicability_check"` // LLM gate on keyword-added statutes
}

// RetrievalConfig bounds retrieval and reranking.
type RetrievalConfig struct {
	TopK     int           `yaml:"top_k"`
	MinScore float64       `yaml:"min_score"` // rerank threshold (cosine)
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// QCConfig bounds the quality-control loop.
type QCConfig struct {
	RetryBudget int           `yaml:"retry_budget"` // regenerations allowed per section
	MaxBackoff  time.Duration `yaml:"max_backoff"`
	FactCheck   bool          `yaml:"fact_check"` // LLM check of the facts section against the case summary
}

// GenerationConfig carries the strategy dispatch table:
// case type -> section -> strategy name.
type GenerationConfig struct {
	Strategies map[string]map[string]string `yaml:"strategies"`
}

// CacheConfig controls retrieval and embedding caching.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Dir     string        `yaml:"dir"`
	TTL     time.Duration `yaml:"ttl"`
}

// ConcurrencyConfig bounds parallel work.
type ConcurrencyConfig struct {
	Workers        int `yaml:"workers"`         // batch pool size
	SectionWorkers int `yaml:"section_workers"` // parallel section generations per request
}

// RateLimitConfig throttles backend calls per backend key.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

// OutputConfig controls CLI output.
type OutputConfig struct {
	Verbose      bool   `yaml:"verbose"`
	LogMode      string `yaml:"log_mode"`      // "development" or "production"
	IncludeDraft bool   `yaml:"include_draft"` // write the draft JSON next to the document
}

// Strategy names understood by the generation registry.
const (
	StrategyDirectTemplate = "direct_template"
	StrategyReasoningChain = "reasoning_chain"
)

// DefaultStrategyTable assigns template generation to the citation-bound
// sections and chain generation to the computed ones, for every base case
// type.
func DefaultStrategyTable() map[string]map[string]string {
	base := []CaseType{CaseTypeSingle, CaseTypeMultiPlaintiff, CaseTypeMultiDefendant, CaseTypeMultiBoth}
	table := make(map[string]map[string]string, len(base))
	for _, ct := range base {
		table[string(ct)] = map[string]string{
			string(SectionFacts):      StrategyDirectTemplate,
			string(SectionLegalBasis): StrategyDirectTemplate,
			string(SectionDamages):    StrategyReasoningChain,
			string(SectionConclusion): StrategyReasoningChain,
		}
	}
	return table
}

// DefaultConfig returns sensible defaults. Secrets are filled from the
// environment by the CLI.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "plaintgen/0.1 (+https://github.com/clweng/plaintgen)",
			MaxBodyBytes: 10 * 1024 * 1024,
		},
		LLM: LLMConfig{
			Provider:  "", // disabled until configured
			Model:     "",
			Timeout:   60,
			MaxTokens: 2048,
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			Model:     "shibing624/text2vec-base-chinese",
			Timeout:   30,
			Dimension: 768,
		},
		Search: SearchConfig{
			BaseURL:        "http://localhost:9200",
			CaseIndex:      "legal_kg_chunks",
			ParagraphIndex: "legal_kg_paragraphs",
		},
		Graph: GraphConfig{
			URI:         "bolt://localhost:7687",
			Database:    "neo4j",
			Timeout:     10,
			MaxPoolSize: 50,
		},
		Statute: StatuteConfig{
			KeywordCrossCheck: true,
		},
		Retrieval: RetrievalConfig{
			TopK:     5,
			MinScore: 0.55,
			CacheTTL: 24 * time.Hour,
		},
		QC: QCConfig{
			RetryBudget: 3,
			MaxBackoff:  30 * time.Second,
			FactCheck:   true,
		},
		Generation: GenerationConfig{
			Strategies: DefaultStrategyTable(),
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:        3,
			SectionWorkers: 3,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2.0,
			BurstSize:         4,
		},
		Output: OutputConfig{
			LogMode: "development",
		},
	}
}

// Validate checks bounds on the numeric settings and that the strategy
// table only names known sections. Strategy existence and full pair
// coverage are checked by the generation registry when the table loads.
func (c *Config) Validate() error {
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MinScore < -1 || c.Retrieval.MinScore > 1 {
		return fmt.Errorf("retrieval.min_score must be a cosine in [-1, 1], got %v", c.Retrieval.MinScore)
	}
	if c.QC.RetryBudget < 0 {
		return fmt.Errorf("qc.retry_budget must not be negative, got %d", c.QC.RetryBudget)
	}
	if c.Concurrency.Workers <= 0 {
		return fmt.Errorf("concurrency.workers must be positive, got %d", c.Concurrency.Workers)
	}
	if c.Embedding.Provider != "" && c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	for ct, sections := range c.Generation.Strategies {
		for section := range sections {
			if !knownSection(SectionName(section)) {
				return fmt.Errorf("generation.strategies[%s]: unknown section %q", ct, section)
			}
		}
	}
	return nil
}

func knownSection(name SectionName) bool {
	for _, s := range SectionOrder {
		if s == name {
			return true
		}
	}
	return false
}

// Overrides carries per-request knobs. Nil or empty fields keep the
// configured defaults.
type Overrides struct {
	RetrievalTopK  *int     `json:"retrieval_top_k,omitempty"`
	RerankMinScore *float64 `json:"rerank_min_score,omitempty"`
	RetryBudget    *int     `json:"retry_budget,omitempty"`
	CaseType       CaseType `json:"case_type,omitempty"`
}

// Apply returns a copy of cfg with the overrides layered on. The copy is
// shallow; callers must not mutate nested maps.
func (o *Overrides) Apply(cfg *Config) *Config {
	out := *cfg
	if o == nil {
		return &out
	}
	if o.RetrievalTopK != nil {
		out.Retrieval.TopK = *o.RetrievalTopK
	}
	if o.RerankMinScore != nil {
		out.Retrieval.MinScore = *o.RerankMinScore
	}
	if o.RetryBudget != nil {
		out.QC.RetryBudget = *o.RetryBudget
	}
	return &out
}
