package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the grant research service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Research  ResearchConfig  `mapstructure:"research"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
	// RequireAPIKeys rejects research requests that do not carry provider
	// keys in cookies, instead of falling back to the configured keys.
	RequireAPIKeys bool   `mapstructure:"require_api_keys"`
	JWTSecret      string `mapstructure:"jwt_secret"`
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type       string              `mapstructure:"type"` // openai
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Models     map[string]LLMModel `mapstructure:"models"`
	MaxRetries int                 `mapstructure:"max_retries"`
	Timeout    time.Duration       `mapstructure:"timeout"`
}

// LLMModel represents a specific model configuration
type LLMModel struct {
	Name            string  `mapstructure:"name"`
	APIName         string  `mapstructure:"api_name"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
	CostPer1K       float64 `mapstructure:"cost_per_1k_input"`
	CostPer1KOutput float64 `mapstructure:"cost_per_1k_output"`
}

// LLMRoutingConfig defines which model handles each pipeline stage
type LLMRoutingConfig struct {
	QueryGen   string `mapstructure:"query_gen"`  // search query generation
	Extraction string `mapstructure:"extraction"` // grant extraction from page text
	Synthesis  string `mapstructure:"synthesis"`  // final report synthesis
	Templates  string `mapstructure:"templates"`  // application template drafting
	Fallback   string `mapstructure:"fallback"`
}

// ModelFor resolves the routed model for a stage, falling back when unset.
func (r LLMRoutingConfig) ModelFor(stage string) string {
	var m string
	switch stage {
	case "query_gen":
		m = r.QueryGen
	case "extraction":
		m = r.Extraction
	case "synthesis":
		m = r.Synthesis
	case "templates":
		m = r.Templates
	}
	if m == "" {
		m = r.Fallback
	}
	return m
}

// SearchConfig contains web search/scrape provider settings
type SearchConfig struct {
	Provider  string          `mapstructure:"provider"` // firecrawl or serper
	Firecrawl FirecrawlConfig `mapstructure:"firecrawl"`
	Serper    SerperConfig    `mapstructure:"serper"`
	// MaxResults bounds page results per query (deployments run 2 or 5).
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// FirecrawlConfig contains Firecrawl search+scrape settings
type FirecrawlConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// SerperConfig contains serper.dev settings
type SerperConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// FetchConfig controls the fallback page fetcher for hits without scraped text
type FetchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
}

// ResearchConfig contains pipeline tunables
type ResearchConfig struct {
	DefaultNumQueries int           `mapstructure:"default_num_queries"`
	MaxContentLength  int           `mapstructure:"max_content_length"`
	ExtractionTimeout time.Duration `mapstructure:"extraction_timeout"`
	TemplateGrants    int           `mapstructure:"template_grants"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	IndexDir string         `mapstructure:"index_dir"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a connection string from the configured parts.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	host := p.Host
	port := p.Port
	ssl := p.SSLMode
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "5432"
	}
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, host, port, p.DBName, ssl)
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

// SchedulerConfig controls monitor re-research runs
type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// TelemetryConfig contains monitoring settings
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	CostTracking bool `mapstructure:"cost_tracking"`
}

func (s SearchConfig) Validate() error {
	switch s.Provider {
	case "firecrawl", "serper":
	default:
		return fmt.Errorf("search.provider must be firecrawl or serper, got %q", s.Provider)
	}
	if s.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be > 0")
	}
	return nil
}

func (r ResearchConfig) Validate() error {
	if r.DefaultNumQueries <= 0 {
		return fmt.Errorf("research.default_num_queries must be > 0")
	}
	if r.MaxContentLength <= 0 {
		return fmt.Errorf("research.max_content_length must be > 0")
	}
	return nil
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("server.address", ":10080")
	viper.SetDefault("server.require_api_keys", false)
	viper.SetDefault("search.provider", "firecrawl")
	viper.SetDefault("search.max_results", 5)
	viper.SetDefault("search.timeout", 15*time.Second)
	viper.SetDefault("search.cache_ttl", time.Hour)
	viper.SetDefault("fetch.enabled", false)
	viper.SetDefault("fetch.timeout", 20*time.Second)
	viper.SetDefault("fetch.max_chars", 25000)
	viper.SetDefault("research.default_num_queries", 5)
	viper.SetDefault("research.max_content_length", 25000)
	viper.SetDefault("research.extraction_timeout", 60*time.Second)
	viper.SetDefault("research.template_grants", 3)
	viper.SetDefault("scheduler.enabled", false)
	viper.SetDefault("scheduler.interval", time.Hour)
	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.cost_tracking", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("GRANTSCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Search.Validate(); err != nil {
		panic(err)
	}
	if err := config.Research.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	return &config
}
