package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the cardindex configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Storage   StorageConfig   `yaml:"storage"`
	Scryfall  ScryfallConfig  `yaml:"scryfall"`
	Search    SearchConfig    `yaml:"search"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// StorageConfig holds on-disk corpus settings.
type StorageConfig struct {
	CorpusDir string `yaml:"corpus_dir"`
	LogFile   string `yaml:"log_file"`
}

// ScryfallConfig holds upstream API client and ingestion settings.
type ScryfallConfig struct {
	BaseURL       string `yaml:"base_url"`
	SearchQuery   string `yaml:"search_query"`
	RateLimit     int    `yaml:"rate_limit"`      // requests per window
	RateWindowMS  int    `yaml:"rate_window_ms"`  // sliding window size
	TimeoutSec    int    `yaml:"timeout_sec"`     // per-request timeout
	MaxRetries    int    `yaml:"max_retries"`
	RetryDelayMS  int    `yaml:"retry_delay_ms"`  // backoff base
	PageDelayMS   int    `yaml:"page_delay_ms"`   // pause between pages
	TagDelayMS    int    `yaml:"tag_delay_ms"`    // pause between tag fetches
	MaxPageErrors int    `yaml:"max_page_errors"` // ingestion error budget
}

// SearchConfig holds similarity search defaults.
type SearchConfig struct {
	DefaultLimit  int     `yaml:"default_limit"`
	MinSimilarity float64 `yaml:"min_similarity"`
}

// CacheConfig holds search cache settings.
type CacheConfig struct {
	TTLSec   int `yaml:"ttl_sec"`
	SweepSec int `yaml:"sweep_sec"`
}

// EmbeddingConfig holds vectorizer settings.
type EmbeddingConfig struct {
	Dimensions int `yaml:"dimensions"`
}

// OpenAIConfig holds commander analysis settings. An empty API key
// disables the analysis endpoint.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Storage.CorpusDir == "" {
		c.Storage.CorpusDir = "card-data"
	}
	if c.Scryfall.BaseURL == "" {
		c.Scryfall.BaseURL = "https://api.scryfall.com"
	}
	if c.Scryfall.SearchQuery == "" {
		c.Scryfall.SearchQuery = "format:commander"
	}
	if c.Scryfall.RateLimit <= 0 {
		c.Scryfall.RateLimit = 10
	}
	if c.Scryfall.RateWindowMS <= 0 {
		c.Scryfall.RateWindowMS = 1000
	}
	if c.Scryfall.TimeoutSec <= 0 {
		c.Scryfall.TimeoutSec = 10
	}
	if c.Scryfall.MaxRetries <= 0 {
		c.Scryfall.MaxRetries = 5
	}
	if c.Scryfall.RetryDelayMS <= 0 {
		c.Scryfall.RetryDelayMS = 2000
	}
	if c.Scryfall.PageDelayMS <= 0 {
		c.Scryfall.PageDelayMS = 100
	}
	if c.Scryfall.TagDelayMS <= 0 {
		c.Scryfall.TagDelayMS = 150
	}
	if c.Scryfall.MaxPageErrors <= 0 {
		c.Scryfall.MaxPageErrors = 5
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 20
	}
	if c.Search.MinSimilarity <= 0 {
		c.Search.MinSimilarity = 0.2
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 3600
	}
	if c.Cache.SweepSec <= 0 {
		c.Cache.SweepSec = 300
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 300
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Search.MinSimilarity < 0 || c.Search.MinSimilarity > 1 {
		return fmt.Errorf("search.min_similarity must be within [0, 1], got %v", c.Search.MinSimilarity)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
