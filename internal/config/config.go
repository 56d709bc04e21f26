// Package config loads Lyra configuration from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Lyra configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Project string `yaml:"project"`

	// Reasoning model configuration
	LLM LLMConfig `yaml:"llm"`

	// Workflow control bounds
	Workflow WorkflowConfig `yaml:"workflow"`

	// Evidence sufficiency policy
	Sufficiency SufficiencyConfig `yaml:"sufficiency"`

	// Result cache
	Cache CacheConfig `yaml:"cache"`

	// Knowledge source connectors
	Sources SourcesConfig `yaml:"sources"`

	// Style exemplar store
	Exemplars ExemplarsConfig `yaml:"exemplars"`

	// Prompt templates
	Prompts PromptsConfig `yaml:"prompts"`

	// Output rendering
	Output OutputConfig `yaml:"output"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the reasoning capability.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // mistral, openai
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Timeout     string  `yaml:"timeout"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// WorkflowConfig bounds the control loop.
type WorkflowConfig struct {
	MaxIterations     int `yaml:"max_iterations"`     // Planning runs per workflow
	MaxRevisions      int `yaml:"max_revisions"`      // Synthesis runs per workflow
	ReasoningAttempts int `yaml:"reasoning_attempts"` // Retries before a reasoning error is terminal
}

// SufficiencyConfig tunes the evidence sufficiency predicate.
type SufficiencyConfig struct {
	MinCategories int `yaml:"min_categories"`
	MinItems      int `yaml:"min_items"`
}

// CacheConfig configures the operation result cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	TTL     string `yaml:"ttl"`
}

// SourcesConfig configures the knowledge source connectors.
type SourcesConfig struct {
	Jira       JiraConfig       `yaml:"jira"`
	GitHub     GitHubConfig     `yaml:"github"`
	Confluence ConfluenceConfig `yaml:"confluence"`
	Slack      SlackConfig      `yaml:"slack"`
	GDocs      GDocsConfig      `yaml:"gdocs"`
	Timeout    string           `yaml:"timeout"`
}

// JiraConfig configures the ticket tracker connector.
type JiraConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BaseURL  string `yaml:"base_url"`
	User     string `yaml:"user"`
	APIToken string `yaml:"api_token"`
	Project  string `yaml:"project"`
}

// GitHubConfig configures the code review connector.
type GitHubConfig struct {
	Enabled bool     `yaml:"enabled"`
	BaseURL string   `yaml:"base_url"`
	Token   string   `yaml:"token"`
	Org     string   `yaml:"org"`
	Repos   []string `yaml:"repos"`
}

// ConfluenceConfig configures the wiki connector.
type ConfluenceConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BaseURL  string `yaml:"base_url"`
	User     string `yaml:"user"`
	APIToken string `yaml:"api_token"`
	Space    string `yaml:"space"`
}

// SlackConfig configures the chat connector.
type SlackConfig struct {
	Enabled  bool     `yaml:"enabled"`
	BaseURL  string   `yaml:"base_url"`
	BotToken string   `yaml:"bot_token"`
	Channels []string `yaml:"channels"`
}

// GDocsConfig configures the document store connector.
type GDocsConfig struct {
	Enabled         bool   `yaml:"enabled"`
	BaseURL         string `yaml:"base_url"`
	CredentialsFile string `yaml:"credentials_file"`
}

// ExemplarsConfig configures the style exemplar store.
type ExemplarsConfig struct {
	DatabasePath   string `yaml:"database_path"`
	DocsDir        string `yaml:"docs_dir"`
	EmbeddingModel string `yaml:"embedding_model"`
	EmbeddingKey   string `yaml:"embedding_key"`
	Count          int    `yaml:"count"` // Exemplars fetched per synthesis
}

// PromptsConfig configures prompt template loading.
type PromptsConfig struct {
	File  string `yaml:"file"`  // Optional on-disk override of embedded templates
	Watch bool   `yaml:"watch"` // Hot-reload the override file on change
}

// OutputConfig configures draft persistence and rendering.
type OutputConfig struct {
	Dir        string `yaml:"dir"`
	ExportHTML bool   `yaml:"export_html"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "Lyra",
		Version: "0.1.0",
		Project: "developerhub",

		LLM: LLMConfig{
			Provider:    "mistral",
			Model:       "mistral-large-latest",
			BaseURL:     "https://api.mistral.ai/v1",
			Timeout:     "120s",
			Temperature: 0.1,
			MaxTokens:   4096,
		},

		Workflow: WorkflowConfig{
			MaxIterations:     50,
			MaxRevisions:      3,
			ReasoningAttempts: 2,
		},

		Sufficiency: SufficiencyConfig{
			MinCategories: 2,
			MinItems:      3,
		},

		Cache: CacheConfig{
			Enabled: true,
			Dir:     "data/cache",
			TTL:     "1h",
		},

		Sources: SourcesConfig{
			Timeout: "30s",
			Jira: JiraConfig{
				Project: "DEV",
			},
			GitHub: GitHubConfig{
				BaseURL: "https://api.github.com",
			},
		},

		Exemplars: ExemplarsConfig{
			DatabasePath:   "data/lyra.db",
			DocsDir:        "data/existing_docs",
			EmbeddingModel: "gemini-embedding-001",
			Count:          2,
		},

		Prompts: PromptsConfig{
			File:  "",
			Watch: false,
		},

		Output: OutputConfig{
			Dir:        "outputs/generated_docs",
			ExportHTML: false,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "lyra.log",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Reasoning API key (checked in priority order)
	if key := os.Getenv("MISTRAL_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "mistral"
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "openai"
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Exemplars.EmbeddingKey = key
	}

	// Source credentials
	if tok := os.Getenv("JIRA_API_TOKEN"); tok != "" {
		c.Sources.Jira.APIToken = tok
	}
	if url := os.Getenv("JIRA_SERVER"); url != "" {
		c.Sources.Jira.BaseURL = url
	}
	if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
		c.Sources.GitHub.Token = tok
	}
	if tok := os.Getenv("CONFLUENCE_API_TOKEN"); tok != "" {
		c.Sources.Confluence.APIToken = tok
	}
	if tok := os.Getenv("SLACK_BOT_TOKEN"); tok != "" {
		c.Sources.Slack.BotToken = tok
	}
}

// LLMTimeout parses the reasoning call timeout.
func (c *Config) LLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// SourceTimeout parses the source adapter timeout.
func (c *Config) SourceTimeout() time.Duration {
	return parseDuration(c.Sources.Timeout, 30*time.Second)
}

// CacheTTL parses the cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return parseDuration(c.Cache.TTL, time.Hour)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// Validate checks configuration invariants that would otherwise surface
// deep inside a workflow run.
func (c *Config) Validate() error {
	if c.Workflow.MaxIterations <= 0 {
		return fmt.Errorf("workflow.max_iterations must be positive, got %d", c.Workflow.MaxIterations)
	}
	if c.Workflow.MaxRevisions <= 0 {
		return fmt.Errorf("workflow.max_revisions must be positive, got %d", c.Workflow.MaxRevisions)
	}
	if c.Sufficiency.MinCategories < 1 {
		return fmt.Errorf("sufficiency.min_categories must be at least 1, got %d", c.Sufficiency.MinCategories)
	}
	if c.Sufficiency.MinItems < 1 {
		return fmt.Errorf("sufficiency.min_items must be at least 1, got %d", c.Sufficiency.MinItems)
	}
	return nil
}
