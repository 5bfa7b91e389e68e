package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"newslens/internal/domain"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI embeddings client.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// HashingEmbedderConfig configures the offline feature-hashing embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type    string                 `yaml:"type"`
	OpenAI  *OpenAIEmbedderConfig  `yaml:"openai,omitempty"`
	Hashing *HashingEmbedderConfig `yaml:"hashing,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	MaxChars   int      `yaml:"max_chars"`
	Separators []string `yaml:"separators"`
}

// LoaderConfig configures fetching of article URLs.
type LoaderConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxBytes    int64  `yaml:"max_bytes"`
	UserAgent   string `yaml:"user_agent"`
}

// IndexConfig selects the index provider and describes the index to build.
type IndexConfig struct {
	Type             string        `yaml:"type"`
	Name             string        `yaml:"name"`
	Dimension        int           `yaml:"dimension"`
	Metric           string        `yaml:"metric"`
	Cloud            string        `yaml:"cloud"`
	Region           string        `yaml:"region"`
	ReadyTimeoutSecs int           `yaml:"ready_timeout_secs"`
	PollIntervalMs   int           `yaml:"poll_interval_ms"`
	UpsertBatchSize  int           `yaml:"upsert_batch_size"`
	Qdrant           *QdrantConfig `yaml:"qdrant,omitempty"`
	Memory           *MemoryConfig `yaml:"memory,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant cluster.
// Cloud and Region describe where the cluster runs.
type QdrantConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	UseTLS      bool   `yaml:"use_tls"`
	Cloud       string `yaml:"cloud"`
	Region      string `yaml:"region"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// MemoryConfig configures the in-process index provider.
type MemoryConfig struct {
	ProvisionDelayMs int `yaml:"provision_delay_ms"`
}

// SynthesizerConfig selects and configures the answer synthesizer.
type SynthesizerConfig struct {
	Type         string   `yaml:"type"`
	Model        string   `yaml:"model"`
	BaseURL      string   `yaml:"base_url"`
	MaxTokens    int      `yaml:"max_tokens"`
	Temperature  *float32 `yaml:"temperature"`
	TimeoutSecs  int      `yaml:"timeout_secs"`
	MaxSentences int      `yaml:"max_sentences"`
}

// RetrievalConfig configures similarity search.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Loader      LoaderConfig      `yaml:"loader"`
	Index       IndexConfig       `yaml:"index"`
	Synthesizer SynthesizerConfig `yaml:"synthesizer"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// Secrets are the provider credentials, read from the environment only.
type Secrets struct {
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	IndexAPIKey  string `envconfig:"QDRANT_API_KEY"`
}

// LoadSecrets reads .env (if present) and then the process environment.
func LoadSecrets() (Secrets, error) {
	_ = godotenv.Load()
	var s Secrets
	if err := envconfig.Process("", &s); err != nil {
		return Secrets{}, fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}
	return s, nil
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrConfig, path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/newslens/config.yaml.
// If neither exists, it writes defaults to ~/.config/newslens/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := DefaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultUserConfigPath returns ~/.config/newslens/config.yaml.
func DefaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "newslens", "config.yaml"), nil
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
	}
	if cfg.Embedder.Type == "hashing" {
		if cfg.Embedder.Hashing == nil {
			cfg.Embedder.Hashing = &HashingEmbedderConfig{}
		}
		if cfg.Embedder.Hashing.Dimension == 0 {
			cfg.Embedder.Hashing.Dimension = cfg.Index.Dimension
		}
		if cfg.Embedder.Hashing.Dimension == 0 {
			cfg.Embedder.Hashing.Dimension = 512
		}
		if cfg.Index.Dimension == 0 {
			cfg.Index.Dimension = cfg.Embedder.Hashing.Dimension
		}
	}

	if cfg.Chunker.MaxChars == 0 {
		cfg.Chunker.MaxChars = 1000
	}
	if len(cfg.Chunker.Separators) == 0 {
		cfg.Chunker.Separators = []string{"\n\n", "\n", ".", ","}
	}

	if cfg.Loader.TimeoutSecs == 0 {
		cfg.Loader.TimeoutSecs = 20
	}
	if cfg.Loader.MaxBytes == 0 {
		cfg.Loader.MaxBytes = 5 << 20
	}
	if cfg.Loader.UserAgent == "" {
		cfg.Loader.UserAgent = "newslens/1.0"
	}

	if cfg.Index.Type == "" {
		cfg.Index.Type = "qdrant"
	}
	if cfg.Index.Name == "" {
		cfg.Index.Name = "news-lens-chatbot"
	}
	if cfg.Index.Dimension == 0 {
		cfg.Index.Dimension = 1536
	}
	if cfg.Index.Metric == "" {
		cfg.Index.Metric = string(domain.MetricCosine)
	}
	if cfg.Index.Cloud == "" {
		cfg.Index.Cloud = "aws"
	}
	if cfg.Index.Region == "" {
		cfg.Index.Region = "us-east-1"
	}
	if cfg.Index.ReadyTimeoutSecs == 0 {
		cfg.Index.ReadyTimeoutSecs = 60
	}
	if cfg.Index.PollIntervalMs == 0 {
		cfg.Index.PollIntervalMs = 1000
	}
	if cfg.Index.UpsertBatchSize == 0 {
		cfg.Index.UpsertBatchSize = 100
	}
	if cfg.Index.Type == "memory" && cfg.Index.Memory == nil {
		cfg.Index.Memory = &MemoryConfig{}
	}
	if cfg.Index.Type == "qdrant" {
		if cfg.Index.Qdrant == nil {
			cfg.Index.Qdrant = &QdrantConfig{}
		}
		if cfg.Index.Qdrant.Host == "" {
			cfg.Index.Qdrant.Host = "localhost"
		}
		if cfg.Index.Qdrant.Port == 0 {
			cfg.Index.Qdrant.Port = 6334
		}
		if cfg.Index.Qdrant.TimeoutSecs == 0 {
			cfg.Index.Qdrant.TimeoutSecs = 30
		}
	}

	if cfg.Synthesizer.Type == "" {
		cfg.Synthesizer.Type = "openai"
	}
	if cfg.Synthesizer.Model == "" {
		cfg.Synthesizer.Model = "gpt-4o-mini"
	}
	if cfg.Synthesizer.Temperature == nil {
		t := float32(0.9)
		cfg.Synthesizer.Temperature = &t
	}
	if cfg.Synthesizer.MaxTokens == 0 {
		cfg.Synthesizer.MaxTokens = 500
	}
	if cfg.Synthesizer.TimeoutSecs == 0 {
		cfg.Synthesizer.TimeoutSecs = 60
	}
	if cfg.Synthesizer.MaxSentences == 0 {
		cfg.Synthesizer.MaxSentences = 3
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// Validate checks the configuration and the secrets its providers need.
func (c *AppConfig) Validate(s Secrets) error {
	switch c.Embedder.Type {
	case "openai":
		if s.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required by the openai embedder", domain.ErrConfig)
		}
	case "hashing":
		if c.Embedder.Hashing.Dimension != c.Index.Dimension {
			return fmt.Errorf("%w: hashing dimension %d does not match index dimension %d",
				domain.ErrConfig, c.Embedder.Hashing.Dimension, c.Index.Dimension)
		}
	default:
		return fmt.Errorf("%w: unknown embedder: %s", domain.ErrConfig, c.Embedder.Type)
	}

	switch c.Index.Type {
	case "qdrant":
		if s.IndexAPIKey == "" {
			return fmt.Errorf("%w: QDRANT_API_KEY is required by the qdrant index", domain.ErrConfig)
		}
	case "memory":
	default:
		return fmt.Errorf("%w: unknown index: %s", domain.ErrConfig, c.Index.Type)
	}
	if !domain.Metric(c.Index.Metric).Valid() {
		return fmt.Errorf("%w: unknown metric: %s", domain.ErrConfig, c.Index.Metric)
	}
	if c.Index.Dimension <= 0 {
		return fmt.Errorf("%w: index dimension must be positive", domain.ErrConfig)
	}

	switch c.Synthesizer.Type {
	case "openai":
		if s.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required by the openai synthesizer", domain.ErrConfig)
		}
	case "extractive":
	default:
		return fmt.Errorf("%w: unknown synthesizer: %s", domain.ErrConfig, c.Synthesizer.Type)
	}

	if c.Chunker.MaxChars <= 0 {
		return fmt.Errorf("%w: chunker max_chars must be positive", domain.ErrConfig)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: retrieval top_k must be positive", domain.ErrConfig)
	}
	return nil
}

// IndexSpec returns the spec of the index to build.
func (c *AppConfig) IndexSpec() domain.IndexSpec {
	return domain.IndexSpec{
		Name:      c.Index.Name,
		Dimension: c.Index.Dimension,
		Metric:    domain.Metric(c.Index.Metric),
		Cloud:     c.Index.Cloud,
		Region:    c.Index.Region,
	}
}

// ReadyTimeout is the bound on waiting for a new index to become ready.
func (c *AppConfig) ReadyTimeout() time.Duration {
	return time.Duration(c.Index.ReadyTimeoutSecs) * time.Second
}

// PollInterval is the fixed delay between readiness checks.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Index.PollIntervalMs) * time.Millisecond
}
