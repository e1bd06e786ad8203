package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/clweng/plaintgen/internal/logger"
	"github.com/clweng/plaintgen/internal/model"
	"github.com/clweng/plaintgen/internal/pipeline"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "plaintgen",
	Short: "Plaintgen - Complaint drafting for traffic-accident damage suits",
	Long: `Plaintgen drafts civil complaints (起訴狀) for Taiwanese
traffic-accident damage suits.

It parses the client's accident narrative and itemized claims, retrieves
similar adjudicated cases, resolves the statutes those precedents cite,
drafts the four complaint sections with an LLM, and runs every draft
through deterministic and model-based quality checks before assembly.

Generated documents are drafts for attorney review, not legal advice.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number and build information for plaintgen.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("plaintgen v0.1.0")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.plaintgen/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(home + "/.plaintgen")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match PLAINTGEN_*
	viper.SetEnvPrefix("PLAINTGEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers the config file and PLAINTGEN_* environment
// variables over the defaults. Secrets are not loaded here; buildPipeline
// pulls them from the environment right before the backends come up.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()

	if path := viper.ConfigFileUsed(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	envString("llm.provider", &cfg.LLM.Provider)
	envString("llm.model", &cfg.LLM.Model)
	envString("llm.base_url", &cfg.LLM.BaseURL)
	envString("embedding.provider", &cfg.Embedding.Provider)
	envString("embedding.model", &cfg.Embedding.Model)
	envString("embedding.base_url", &cfg.Embedding.BaseURL)
	envString("search.base_url", &cfg.Search.BaseURL)
	envString("graph.uri", &cfg.Graph.URI)
	envString("output.log_mode", &cfg.Output.LogMode)

	cfg.Output.Verbose = verbose
	return cfg, nil
}

// envString applies a viper key (env or config file) when it has a value.
func envString(key string, dst *string) {
	if v := viper.GetString(key); v != "" {
		*dst = v
	}
}

// fillSecrets pulls credentials from the environment. Hosted providers
// without a key fail here, before any backend call. Keys never come from
// the config file.
func fillSecrets(cfg *model.Config) error {
	switch cfg.LLM.Provider {
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "gemini", "google":
		cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY environment variable not set")
		}
	case "ollama":
		// Ollama doesn't need an API key
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
	}

	switch cfg.Embedding.Provider {
	case "openai":
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.Embedding.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			cfg.Embedding.BaseURL = baseURL
		}
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

	return nil
}

// newLogger builds the command logger. Non-verbose runs stay quiet so the
// document on stdout is the only output; --verbose enables the stage logs.
func newLogger(cfg *model.Config) (*logger.Logger, error) {
	if !cfg.Output.Verbose {
		return logger.NewNop(), nil
	}
	return logger.New(cfg.Output.LogMode)
}

// buildPipeline fills secrets and wires the full pipeline. Callers own
// Close on the returned pipeline and Sync on the logger.
func buildPipeline(ctx context.Context, cfg *model.Config) (*pipeline.Pipeline, *logger.Logger, error) {
	if err := fillSecrets(cfg); err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	p, err := pipeline.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return p, log, nil
}
