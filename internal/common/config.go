package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/ternarybob/dealdesk/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Accounts    AccountsConfig   `toml:"accounts"`
	Sources     SourcesConfig    `toml:"sources"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	LLM         LLMConfig        `toml:"llm"`
	Perplexity  PerplexityConfig `toml:"perplexity"`
	Notion      NotionConfig     `toml:"notion"`
	Chat        ChatConfig       `toml:"chat"`
	Summary     SummaryConfig    `toml:"summary"`
	Feeds       FeedsConfig      `toml:"feeds"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Type     string         `toml:"type"` // "badger" (default) or "postgres"
	Badger   BadgerConfig   `toml:"badger"`
	Postgres PostgresConfig `toml:"postgres"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	InMemory       bool   `toml:"in_memory"`        // Keep everything in memory (tests, demos)
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// PostgresConfig is used when storage.type = "postgres" (e.g. a Supabase database)
type PostgresConfig struct {
	DSN          string `toml:"dsn"`
	MaxConns     int32  `toml:"max_conns"`
	CreateSchema bool   `toml:"create_schema"` // Run CREATE TABLE IF NOT EXISTS on startup
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// AccountsConfig controls row ownership. Requests without an X-Account-ID header
// act as DefaultAccountID; rows owned by SharedAccountID are visible to everyone.
type AccountsConfig struct {
	DefaultAccountID string `toml:"default_account_id"`
	SharedAccountID  string `toml:"shared_account_id"`
}

// SourcesConfig points at an optional seed file of knowledge sources (TOML or YAML)
type SourcesConfig struct {
	SeedFile string `toml:"seed_file"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	BaseURL   string `toml:"base_url"`   // REST endpoint used for streaming
	RateLimit string `toml:"rate_limit"` // Minimum interval between requests (default: "1s")
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains settings shared by all providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"`
	Timeout         string      `toml:"timeout"` // Upper bound for one generation (default: "3m")
	Temperature     float32     `toml:"temperature"`
	MaxOutputTokens int         `toml:"max_output_tokens"`
	ThinkingBudget  int         `toml:"thinking_budget"` // 0 disables reasoning output
}

// PerplexityConfig configures the web-search enrichment
type PerplexityConfig struct {
	APIKey        string `toml:"api_key"`
	BaseURL       string `toml:"base_url"`
	Model         string `toml:"model"`
	MaxTokens     int    `toml:"max_tokens"`
	RecencyFilter string `toml:"recency_filter"` // "day", "week", "month" or empty
	Timeout       string `toml:"timeout"`
}

// NotionConfig configures the document-workspace enrichment
type NotionConfig struct {
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	Version  string `toml:"version"`
	PageSize int    `toml:"page_size"`
	MaxPages int    `toml:"max_pages"` // Pages whose content is fetched per chat
	MaxDepth int    `toml:"max_depth"` // Block recursion limit
	CacheTTL string `toml:"cache_ttl"` // Search cache lifetime
	Timeout  string `toml:"timeout"`   // Per-request HTTP timeout
}

// ChatConfig toggles chat enrichment sources
type ChatConfig struct {
	EnableNotion    bool `toml:"enable_notion"`
	EnableWebSearch bool `toml:"enable_web_search"`
	MaxHistory      int  `toml:"max_history"` // Conversation turns forwarded to the model
}

// SummaryConfig controls the research-summary pipeline
type SummaryConfig struct {
	GlobalCap     int    `toml:"global_cap"`     // Items admitted into one summary (default 160, max 200)
	MaxCandidates int    `toml:"max_candidates"` // Unread items fetched before selection
	MarkRead      bool   `toml:"mark_read"`      // Mark every candidate read after completion
	Schedule      string `toml:"schedule"`       // Cron expression for the scheduled digest (empty = off)
	Owner         string `toml:"owner"`          // Account the scheduled digest runs for
}

// FeedsConfig controls feed synchronisation
type FeedsConfig struct {
	Schedule  string `toml:"schedule"` // Cron expression (empty = manual only)
	UserAgent string `toml:"user_agent"`
	Timeout   string `toml:"timeout"`
	MaxItems  int    `toml:"max_items"` // Items read per feed per run
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Type: "badger",
			Badger: BadgerConfig{
				Path: "./data",
			},
			Postgres: PostgresConfig{
				MaxConns:     10,
				CreateSchema: true,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
		},
		Accounts: AccountsConfig{
			DefaultAccountID: "local",
			SharedAccountID:  "shared",
		},
		Gemini: GeminiConfig{
			Model:     "gemini-2.5-flash",
			BaseURL:   "https://generativelanguage.googleapis.com/v1beta",
			RateLimit: "1s",
		},
		Claude: ClaudeConfig{
			Model:     "claude-sonnet-4-5",
			MaxTokens: 8192,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
			Timeout:         "3m",
			Temperature:     0.4,
			MaxOutputTokens: 8192,
			ThinkingBudget:  1024,
		},
		Perplexity: PerplexityConfig{
			BaseURL:   "https://api.perplexity.ai",
			Model:     "sonar",
			MaxTokens: 1024,
			Timeout:   "30s",
		},
		Notion: NotionConfig{
			BaseURL:  "https://api.notion.com/v1",
			Version:  "2022-06-28",
			PageSize: 10,
			MaxPages: 5,
			MaxDepth: 3,
			CacheTTL: "10m",
			Timeout:  "20s",
		},
		Chat: ChatConfig{
			EnableNotion:    true,
			EnableWebSearch: true,
			MaxHistory:      10,
		},
		Summary: SummaryConfig{
			GlobalCap:     160,
			MaxCandidates: 1000,
			MarkRead:      true,
		},
		Feeds: FeedsConfig{
			Schedule:  "*/30 * * * *",
			UserAgent: "dealdesk-feed-sync/1.0",
			Timeout:   "20s",
			MaxItems:  50,
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// CLI overrides are applied separately by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Later files override earlier ones
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks settings that would otherwise fail late
func (c *Config) Validate() error {
	if c.Storage.Type != "badger" && c.Storage.Type != "postgres" {
		return fmt.Errorf("unsupported storage type: %s (expected 'badger' or 'postgres')", c.Storage.Type)
	}
	if c.Storage.Type == "postgres" && c.Storage.Postgres.DSN == "" {
		return fmt.Errorf("storage.postgres.dsn is required when storage.type = 'postgres'")
	}
	for name, schedule := range map[string]string{"summary.schedule": c.Summary.Schedule, "feeds.schedule": c.Feeds.Schedule} {
		if schedule == "" {
			continue
		}
		if err := ValidateSchedule(schedule); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DEALDESK_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("DEALDESK_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("DEALDESK_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if storageType := os.Getenv("DEALDESK_STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}
	if badgerPath := os.Getenv("DEALDESK_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if dsn := os.Getenv("DEALDESK_POSTGRES_DSN"); dsn != "" {
		config.Storage.Postgres.DSN = dsn
	}

	// Logging configuration
	if level := os.Getenv("DEALDESK_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("DEALDESK_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if o = strings.TrimSpace(o); o != "" {
				outputs = append(outputs, o)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Accounts
	if id := os.Getenv("DEALDESK_DEFAULT_ACCOUNT_ID"); id != "" {
		config.Accounts.DefaultAccountID = id
	}
	if id := os.Getenv("DEALDESK_SHARED_ACCOUNT_ID"); id != "" {
		config.Accounts.SharedAccountID = id
	}

	// Providers
	if apiKey := os.Getenv("DEALDESK_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("DEALDESK_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("DEALDESK_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // DEALDESK_ prefix takes priority
	}
	if model := os.Getenv("DEALDESK_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if provider := os.Getenv("DEALDESK_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
	if timeout := os.Getenv("DEALDESK_LLM_TIMEOUT"); timeout != "" {
		config.LLM.Timeout = timeout
	}
	if apiKey := os.Getenv("DEALDESK_PERPLEXITY_API_KEY"); apiKey != "" {
		config.Perplexity.APIKey = apiKey
	}
	if apiKey := os.Getenv("DEALDESK_NOTION_API_KEY"); apiKey != "" {
		config.Notion.APIKey = apiKey
	}

	// Summary pipeline
	if globalCap := os.Getenv("DEALDESK_SUMMARY_GLOBAL_CAP"); globalCap != "" {
		if gc, err := strconv.Atoi(globalCap); err == nil {
			config.Summary.GlobalCap = gc
		}
	}
	if markRead := os.Getenv("DEALDESK_SUMMARY_MARK_READ"); markRead != "" {
		if mr, err := strconv.ParseBool(markRead); err == nil {
			config.Summary.MarkRead = mr
		}
	}
	if schedule := os.Getenv("DEALDESK_SUMMARY_SCHEDULE"); schedule != "" {
		config.Summary.Schedule = schedule
	}
	if schedule := os.Getenv("DEALDESK_FEEDS_SCHEDULE"); schedule != "" {
		config.Feeds.Schedule = schedule
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ParseDurationOr parses a duration string, falling back when empty or invalid
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ResolveAPIKey resolves an API key by name.
// Resolution order: environment variable → KV store → config fallback → error
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	envName := "DEALDESK_" + strings.ToUpper(name)
	if envValue := os.Getenv(envName); envValue != "" {
		return envValue, nil
	}

	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// ValidateSchedule validates a standard 5-field cron expression
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}
