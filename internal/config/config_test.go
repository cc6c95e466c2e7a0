package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing port")
	}
	if !strings.Contains(err.Error(), "http.port") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MinSimilarityRange(t *testing.T) {
	cfg := Config{HTTP: HTTPConfig{Port: 3000}}
	cfg.ApplyDefaults()
	cfg.Search.MinSimilarity = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range min_similarity")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{HTTP: HTTPConfig{Port: 3000}}
	cfg.ApplyDefaults()

	if cfg.Storage.CorpusDir != "card-data" {
		t.Errorf("unexpected corpus dir: %q", cfg.Storage.CorpusDir)
	}
	if cfg.Scryfall.BaseURL != "https://api.scryfall.com" {
		t.Errorf("unexpected base url: %q", cfg.Scryfall.BaseURL)
	}
	if cfg.Scryfall.MaxRetries != 5 || cfg.Scryfall.RetryDelayMS != 2000 {
		t.Errorf("unexpected retry defaults: %+v", cfg.Scryfall)
	}
	if cfg.Search.DefaultLimit != 20 || cfg.Search.MinSimilarity != 0.2 {
		t.Errorf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.Cache.TTLSec != 3600 {
		t.Errorf("unexpected cache ttl: %d", cfg.Cache.TTLSec)
	}
	if cfg.Embedding.Dimensions != 300 {
		t.Errorf("unexpected dimensions: %d", cfg.Embedding.Dimensions)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("CARDINDEX_TEST_PORT", "8080")

	data := expandEnvVars([]byte("port: ${CARDINDEX_TEST_PORT}\nkey: ${CARDINDEX_TEST_UNSET:-fallback}\nempty: ${CARDINDEX_TEST_UNSET}"))
	got := string(data)
	if !strings.Contains(got, "port: 8080") {
		t.Errorf("env var not substituted: %q", got)
	}
	if !strings.Contains(got, "key: fallback") {
		t.Errorf("default not applied: %q", got)
	}
	if !strings.HasSuffix(got, "empty: ") {
		t.Errorf("unset var without default should expand empty: %q", got)
	}
}

func TestLoad_FromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o750); err != nil {
		t.Fatal(err)
	}
	yaml := `
http:
  port: 4000
storage:
  corpus_dir: /tmp/cards
scryfall:
  rate_limit: 7
logging:
  level: warn
`
	if err := os.WriteFile(filepath.Join(dir, "config", "test.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(oldWD); err != nil {
			t.Fatal(err)
		}
	})

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Port != 4000 {
		t.Errorf("unexpected port: %d", cfg.HTTP.Port)
	}
	if cfg.Storage.CorpusDir != "/tmp/cards" {
		t.Errorf("unexpected corpus dir: %q", cfg.Storage.CorpusDir)
	}
	if cfg.Scryfall.RateLimit != 7 {
		t.Errorf("unexpected rate limit: %d", cfg.Scryfall.RateLimit)
	}
	// Unset fields still pick up defaults.
	if cfg.Scryfall.MaxRetries != 5 {
		t.Errorf("expected default max retries, got %d", cfg.Scryfall.MaxRetries)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if got := GetEnv(); got != "local" {
		t.Errorf("expected local default, got %q", got)
	}
	t.Setenv("ENV", "prod")
	if got := GetEnv(); got != "prod" {
		t.Errorf("expected prod, got %q", got)
	}
}
