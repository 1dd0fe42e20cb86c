package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the ArtScope service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Match     MatchConfig     `yaml:"match"`
	Import    ImportConfig    `yaml:"import"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP transport configuration.
type ServerConfig struct {
	Addr             string   `yaml:"addr"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	MaxUploadBytes   int64    `yaml:"max_upload_bytes"`
	ReadTimeoutSecs  int      `yaml:"read_timeout_secs"`
	WriteTimeoutSecs int      `yaml:"write_timeout_secs"`
}

// StoreConfig selects and configures the artwork store.
type StoreConfig struct {
	Driver string `yaml:"driver"`  // "bolt", "sqlite", "postgres", "memory"
	Path   string `yaml:"path"`    // bolt/sqlite file, relative to the data dir
	DSN    string `yaml:"dsn"`     // postgres connection string
	DSNEnv string `yaml:"dsn_env"` // environment variable holding the DSN
}

// EmbeddingConfig holds feature extractor configuration.
type EmbeddingConfig struct {
	Provider     string `yaml:"provider"` // "http", "histogram", "mock"
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKeyEnv    string `yaml:"api_key_env"`
	Dimension    int    `yaml:"dimension"`
	TimeoutSecs  int    `yaml:"timeout_secs"`
	MaxRetries   int    `yaml:"max_retries"`
	CacheSize    int    `yaml:"cache_size"` // 0 disables the cache
	CacheTTLSecs int    `yaml:"cache_ttl_secs"`
	MaxPixels    int    `yaml:"max_pixels"` // decoded size limit for local extraction
}

// MatchConfig holds nearest-artwork matching configuration.
type MatchConfig struct {
	DimensionPolicy string `yaml:"dimension_policy"` // "skip" or "abort"
	Precision       int    `yaml:"precision"`        // decimal digits in responses
	Shortlist       int    `yaml:"shortlist"`        // index candidates to re-score (0 = full scan)
}

// ImportConfig holds catalog import configuration.
type ImportConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
	Catalog  string   `yaml:"catalog"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:             ":8000",
			AllowedOrigins:   []string{"*"},
			MaxUploadBytes:   10 << 20,
			ReadTimeoutSecs:  30,
			WriteTimeoutSecs: 60,
		},
		Store: StoreConfig{
			Driver: "bolt",
			Path:   "artworks.db",
			DSNEnv: "ARTSCOPE_DATABASE_URL",
		},
		Embedding: EmbeddingConfig{
			Provider:     "histogram",
			Model:        "mobilenet_v2",
			APIKeyEnv:    "ARTSCOPE_MODEL_API_KEY",
			Dimension:    1280,
			TimeoutSecs:  30,
			MaxRetries:   3,
			CacheSize:    256,
			CacheTTLSecs: 600,
			MaxPixels:    40_000_000,
		},
		Match: MatchConfig{
			DimensionPolicy: "skip",
			Precision:       4,
			Shortlist:       0,
		},
		Import: ImportConfig{
			Includes: []string{"**/*.jpg", "**/*.jpeg", "**/*.png", "**/*.gif", "**/*.webp", "**/*.bmp", "**/*.tif", "**/*.tiff"},
			Excludes: []string{"**/.artscope/**", "**/.git/**", "**/thumbnails/**"},
			Catalog:  "catalog.yaml",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for artscope.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "artscope.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".artscope", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Validate rejects unknown drivers, providers and policies.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "bolt", "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unknown store driver: %q", c.Store.Driver)
	}

	switch c.Embedding.Provider {
	case "http":
		if c.Embedding.Endpoint == "" {
			return fmt.Errorf("embedding.endpoint is required for the http provider")
		}
	case "histogram", "mock":
	default:
		return fmt.Errorf("unknown embedding provider: %q", c.Embedding.Provider)
	}

	switch c.Match.DimensionPolicy {
	case "", "skip", "abort":
	default:
		return fmt.Errorf("unknown dimension policy: %q", c.Match.DimensionPolicy)
	}

	if c.Embedding.MaxPixels < 0 {
		return fmt.Errorf("embedding.max_pixels must not be negative")
	}

	if c.Match.Precision < 0 {
		return fmt.Errorf("match.precision must not be negative")
	}
	if c.Match.Shortlist < 0 {
		return fmt.Errorf("match.shortlist must not be negative")
	}
	if c.Match.Shortlist > 0 && c.Match.DimensionPolicy == "abort" {
		return fmt.Errorf("match.shortlist cannot be combined with dimension_policy abort: shortlists drop artworks of other dimensions")
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DataDir returns the directory holding local state.
func DataDir(dir string) string {
	return filepath.Join(dir, ".artscope")
}

// StorePath resolves the store file for file-backed drivers.
func (c *Config) StorePath(dir string) string {
	p := c.Store.Path
	if expanded, err := homedir.Expand(p); err == nil {
		p = expanded
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(DataDir(dir), p)
}

// PostgresDSN returns the configured DSN, preferring the environment.
func (c *Config) PostgresDSN() string {
	if c.Store.DSNEnv != "" {
		if dsn := os.Getenv(c.Store.DSNEnv); dsn != "" {
			return dsn
		}
	}
	return c.Store.DSN
}

// EnsureDataDir ensures the .artscope directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(DataDir(dir), 0755)
}
