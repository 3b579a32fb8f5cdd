// Package config loads ragline configuration from defaults, an optional
// YAML file, and environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ragline/ragline/internal/errors"
)

// Config is the root configuration shared by all ragline commands.
type Config struct {
	// DataDir is the base directory for embedded stores, locks, and logs.
	DataDir string `yaml:"data_dir"`

	Server  ServerConfig  `yaml:"server"`
	Embed   EmbedConfig   `yaml:"embed"`
	Chat    ChatConfig    `yaml:"chat"`
	Vector  VectorConfig  `yaml:"vector"`
	Lexical LexicalConfig `yaml:"lexical"`
	Hybrid  HybridConfig  `yaml:"hybrid"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the listen addresses of the three nodes.
type ServerConfig struct {
	IngestAddr string `yaml:"ingest_addr"`
	SearchAddr string `yaml:"search_addr"`
	QueryAddr  string `yaml:"query_addr"`

	// ShutdownTimeout bounds graceful drain on SIGINT/SIGTERM.
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// EmbedConfig configures the embedding model client.
type EmbedConfig struct {
	// Provider selects the embedder: "openai" (default) or "static"
	// (deterministic, offline; for tests and air-gapped smoke runs).
	Provider string `yaml:"provider"`
	// BaseURL is the OpenAI-compatible API root, e.g. "https://api.openai.com/v1".
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`

	// CacheSize is the LRU entry count for query-embedding reuse.
	CacheSize int `yaml:"cache_size"`
	// RedisURL enables a shared cache tier behind the LRU when set.
	RedisURL string `yaml:"redis_url"`
}

// ChatConfig configures the answer-generation model client.
type ChatConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// VectorConfig configures the vector store. With URL set the Chroma HTTP
// adapter is used; otherwise an embedded store persists under PersistDir.
type VectorConfig struct {
	URL        string `yaml:"url"`
	PersistDir string `yaml:"persist_dir"`
	Collection string `yaml:"collection"`
	Timeout    string `yaml:"timeout"`
}

// LexicalConfig configures BM25 access. The search node owns a backend
// (OpenSearch when Host is set, embedded bleve otherwise); the ingest and
// query nodes reach the search node through ServiceURL.
type LexicalConfig struct {
	ServiceURL string `yaml:"service_url"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Scheme   string `yaml:"scheme"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Index    string `yaml:"index"`

	Timeout string `yaml:"timeout"`
}

// HybridConfig holds the retrieval tuning knobs.
type HybridConfig struct {
	BM25Chunks         int     `yaml:"bm25_chunks"`
	CenterK            int     `yaml:"center_k"`
	NeighborWindow     int     `yaml:"neighbor_window"`
	MaxContextChunks   int     `yaml:"max_context_chunks"`
	FusionAlpha        float64 `yaml:"fusion_alpha"`
	CenterRelThreshold float64 `yaml:"center_rel_threshold"`
	DistancePenalty    float64 `yaml:"distance_penalty"`
	ContextCharBudget  int     `yaml:"context_char_budget"`
}

// IngestConfig configures chunking and the optional watch directory.
type IngestConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`

	// WatchDir, when set, is polled via fsnotify: files dropped into it
	// are ingested automatically by the ingestion node.
	WatchDir string `yaml:"watch_dir"`

	// MaxFileSizeMB caps uploads; 0 means no cap.
	MaxFileSizeMB int `yaml:"max_file_size_mb"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	File      string `yaml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		DataDir: "./data",
		Server: ServerConfig{
			IngestAddr:      ":8000",
			SearchAddr:      ":8001",
			QueryAddr:       ":8002",
			ShutdownTimeout: "10s",
		},
		Embed: EmbedConfig{
			Provider:  "openai",
			BaseURL:   "https://api.openai.com/v1",
			Model:     "text-embedding-3-small",
			Timeout:   "30s",
			CacheSize: 1000,
		},
		Chat: ChatConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: "60s",
		},
		Vector: VectorConfig{
			Collection: "documents",
			Timeout:    "15s",
		},
		Lexical: LexicalConfig{
			ServiceURL: "http://localhost:8001",
			Port:       9200,
			Scheme:     "http",
			User:       "admin",
			Index:      "docs_bm25",
			Timeout:    "5s",
		},
		Hybrid: HybridConfig{
			BM25Chunks:         50,
			CenterK:            3,
			NeighborWindow:     2,
			MaxContextChunks:   30,
			FusionAlpha:        0.6,
			CenterRelThreshold: 0.85,
			DistancePenalty:    0.02,
			ContextCharBudget:  12000,
		},
		Ingest: IngestConfig{
			ChunkSize:     500,
			Overlap:       50,
			MaxFileSizeMB: 50,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (or ./ragline.yaml when path is empty and that file exists), then
// environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		if fileExists("ragline.yaml") {
			path = "ragline.yaml"
		}
	}
	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML overlays the file at path onto the receiver. Fields absent from
// the file keep their current values.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New(errors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file not found: %s", path), err)
		}
		return errors.ConfigError(fmt.Sprintf("cannot read config file %s", path), err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.ConfigError(fmt.Sprintf("invalid YAML in %s", path), err)
	}
	return nil
}

// applyEnvOverrides applies environment variables over the loaded config.
// The OpenAI-style and store variables use their conventional names; the
// ragline-specific ones are RAGLINE_*.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RAGLINE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("RAGLINE_INGEST_ADDR"); v != "" {
		c.Server.IngestAddr = v
	}
	if v := os.Getenv("RAGLINE_SEARCH_ADDR"); v != "" {
		c.Server.SearchAddr = v
	}
	if v := os.Getenv("RAGLINE_QUERY_ADDR"); v != "" {
		c.Server.QueryAddr = v
	}

	if v := os.Getenv("RAGLINE_EMBED_PROVIDER"); v != "" {
		c.Embed.Provider = v
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.Embed.BaseURL = v
		c.Chat.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Embed.APIKey = v
		c.Chat.APIKey = v
	}
	if v := os.Getenv("MODEL_EMBED"); v != "" {
		c.Embed.Model = v
	}
	if v := os.Getenv("MODEL_CHAT"); v != "" {
		c.Chat.Model = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Embed.RedisURL = v
	}

	if v := os.Getenv("CHROMA_URL"); v != "" {
		c.Vector.URL = v
	}
	if v := os.Getenv("CHROMA_PERSIST_DIR"); v != "" {
		c.Vector.PersistDir = v
	}
	if v := os.Getenv("CHROMA_COLLECTION"); v != "" {
		c.Vector.Collection = v
	}

	if v := os.Getenv("SEARCH_SERVICE_URL"); v != "" {
		c.Lexical.ServiceURL = v
	}
	if v := os.Getenv("OPENSEARCH_HOST"); v != "" {
		c.Lexical.Host = v
	}
	if v := os.Getenv("OPENSEARCH_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.Lexical.Port = p
		}
	}
	if v := os.Getenv("OPENSEARCH_SCHEME"); v != "" {
		c.Lexical.Scheme = v
	}
	if v := os.Getenv("OPENSEARCH_USER"); v != "" {
		c.Lexical.User = v
	}
	if v := os.Getenv("OPENSEARCH_PASSWORD"); v != "" {
		c.Lexical.Password = v
	}
	if v := os.Getenv("OPENSEARCH_INDEX"); v != "" {
		c.Lexical.Index = v
	}

	if v := os.Getenv("HYBRID_BM25_CHUNKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Hybrid.BM25Chunks = n
		}
	}
	if v := os.Getenv("HYBRID_CENTER_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Hybrid.CenterK = n
		}
	}
	if v := os.Getenv("HYBRID_NEIGHBOR_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Hybrid.NeighborWindow = n
		}
	}
	if v := os.Getenv("HYBRID_MAX_CONTEXT_CHUNKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Hybrid.MaxContextChunks = n
		}
	}
	if v := os.Getenv("HYBRID_FUSION_ALPHA"); v != "" {
		if f, err := parseFloat64(v); err == nil && f >= 0 && f <= 1 {
			c.Hybrid.FusionAlpha = f
		}
	}
	if v := os.Getenv("HYBRID_CENTER_REL_THRESHOLD"); v != "" {
		if f, err := parseFloat64(v); err == nil && f > 0 && f <= 1 {
			c.Hybrid.CenterRelThreshold = f
		}
	}
	if v := os.Getenv("HYBRID_DISTANCE_PENALTY"); v != "" {
		if f, err := parseFloat64(v); err == nil && f >= 0 {
			c.Hybrid.DistancePenalty = f
		}
	}
	if v := os.Getenv("HYBRID_CONTEXT_CHAR_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Hybrid.ContextCharBudget = n
		}
	}

	if v := os.Getenv("RAGLINE_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingest.ChunkSize = n
		}
	}
	if v := os.Getenv("RAGLINE_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Ingest.Overlap = n
		}
	}
	if v := os.Getenv("RAGLINE_WATCH_DIR"); v != "" {
		c.Ingest.WatchDir = v
	}

	if v := os.Getenv("RAGLINE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RAGLINE_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

// Validate checks invariants the services rely on.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.ConfigError("data_dir must not be empty", nil)
	}
	if c.Ingest.ChunkSize <= 0 {
		return errors.ConfigError("ingest.chunk_size must be positive", nil)
	}
	if c.Ingest.Overlap < 0 {
		return errors.ConfigError("ingest.overlap must not be negative", nil)
	}
	// The window step is chunk_size - overlap; equal values would stall
	// the chunker.
	if c.Ingest.Overlap >= c.Ingest.ChunkSize {
		return errors.ConfigError(fmt.Sprintf(
			"ingest.overlap (%d) must be smaller than ingest.chunk_size (%d)",
			c.Ingest.Overlap, c.Ingest.ChunkSize), nil)
	}

	if c.Hybrid.FusionAlpha < 0 || c.Hybrid.FusionAlpha > 1 {
		return errors.ConfigError("hybrid.fusion_alpha must be in [0, 1]", nil)
	}
	if c.Hybrid.CenterRelThreshold <= 0 || c.Hybrid.CenterRelThreshold > 1 {
		return errors.ConfigError("hybrid.center_rel_threshold must be in (0, 1]", nil)
	}
	if c.Hybrid.CenterK < 1 {
		return errors.ConfigError("hybrid.center_k must be at least 1", nil)
	}
	if c.Hybrid.NeighborWindow < 0 {
		return errors.ConfigError("hybrid.neighbor_window must not be negative", nil)
	}
	if c.Hybrid.BM25Chunks < 1 {
		return errors.ConfigError("hybrid.bm25_chunks must be at least 1", nil)
	}
	if c.Hybrid.MaxContextChunks < 1 {
		return errors.ConfigError("hybrid.max_context_chunks must be at least 1", nil)
	}
	if c.Hybrid.DistancePenalty < 0 {
		return errors.ConfigError("hybrid.distance_penalty must not be negative", nil)
	}
	if c.Hybrid.ContextCharBudget < 1 {
		return errors.ConfigError("hybrid.context_char_budget must be at least 1", nil)
	}

	switch c.Embed.Provider {
	case "openai", "static":
	default:
		return errors.ConfigError(fmt.Sprintf(
			"embed.provider %q is not supported (openai, static)", c.Embed.Provider), nil)
	}
	if c.Embed.Provider == "openai" && c.Embed.BaseURL == "" {
		return errors.ConfigError("embed.base_url must be set for the openai provider", nil)
	}

	if c.Vector.Collection == "" {
		return errors.ConfigError("vector.collection must not be empty", nil)
	}
	if c.Lexical.Index == "" {
		return errors.ConfigError("lexical.index must not be empty", nil)
	}
	return nil
}

// VectorPersistDir resolves the embedded vector store directory, defaulting
// under DataDir.
func (c *Config) VectorPersistDir() string {
	if c.Vector.PersistDir != "" {
		return c.Vector.PersistDir
	}
	return filepath.Join(c.DataDir, "chroma")
}

// EmbedTimeout returns the embedding call deadline.
func (c *Config) EmbedTimeout() time.Duration {
	return parseDuration(c.Embed.Timeout, 30*time.Second)
}

// ChatTimeout returns the chat call deadline.
func (c *Config) ChatTimeout() time.Duration {
	return parseDuration(c.Chat.Timeout, 60*time.Second)
}

// VectorTimeout returns the vector store call deadline.
func (c *Config) VectorTimeout() time.Duration {
	return parseDuration(c.Vector.Timeout, 15*time.Second)
}

// LexicalTimeout returns the BM25 call deadline.
func (c *Config) LexicalTimeout() time.Duration {
	return parseDuration(c.Lexical.Timeout, 5*time.Second)
}

// ShutdownTimeout returns the graceful drain deadline.
func (c *Config) ShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

// OpenSearchURL builds the base URL of the configured OpenSearch cluster.
func (c *Config) OpenSearchURL() string {
	return fmt.Sprintf("%s://%s:%d", c.Lexical.Scheme, c.Lexical.Host, c.Lexical.Port)
}

// WriteYAML persists the config, for `ragline config init` style tooling.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.ConfigError("cannot marshal config", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.ConfigError(fmt.Sprintf("cannot write config to %s", path), err)
	}
	return nil
}

// parseDuration parses s, falling back to def on empty or invalid input.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// parseFloat64 parses a string to float64, used for env parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// fileExists checks if a file exists at the given path.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
