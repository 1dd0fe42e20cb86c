package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Store.Driver != "bolt" {
		t.Errorf("expected Driver=bolt, got %s", cfg.Store.Driver)
	}
	if cfg.Match.Precision != 4 {
		t.Errorf("expected Precision=4, got %d", cfg.Match.Precision)
	}
	if cfg.Match.DimensionPolicy != "skip" {
		t.Errorf("expected DimensionPolicy=skip, got %s", cfg.Match.DimensionPolicy)
	}
	if cfg.Server.MaxUploadBytes != 10<<20 {
		t.Errorf("expected MaxUploadBytes=%d, got %d", 10<<20, cfg.Server.MaxUploadBytes)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "artscope.yaml")

	content := `
store:
  driver: sqlite
  path: catalog.sqlite
match:
  dimension_policy: skip
  shortlist: 25
embedding:
  provider: mock
  dimension: 8
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Store.Driver != "sqlite" {
		t.Errorf("expected Driver=sqlite, got %s", cfg.Store.Driver)
	}
	if cfg.Match.DimensionPolicy != "skip" {
		t.Errorf("expected DimensionPolicy=skip, got %s", cfg.Match.DimensionPolicy)
	}
	if cfg.Match.Shortlist != 25 {
		t.Errorf("expected Shortlist=25, got %d", cfg.Match.Shortlist)
	}
	if cfg.Embedding.Dimension != 8 {
		t.Errorf("expected Dimension=8, got %d", cfg.Embedding.Dimension)
	}
	// untouched sections keep their defaults
	if cfg.Match.Precision != 4 {
		t.Errorf("expected Precision=4, got %d", cfg.Match.Precision)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"driver":               "store:\n  driver: mongo\n",
		"provider":             "embedding:\n  provider: clip\n",
		"endpoint":             "embedding:\n  provider: http\n",
		"policy":               "match:\n  dimension_policy: ignore\n",
		"abort with shortlist": "match:\n  dimension_policy: abort\n  shortlist: 10\n",
		"max pixels":           "embedding:\n  max_pixels: -1\n",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "artscope.yaml")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("expected validation error for %s", name)
			}
		})
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := EnsureDataDir(tmpDir); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(DataDir(tmpDir), "config.yaml")

	content := `
server:
  addr: ":9090"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected Addr=:9090, got %s", cfg.Server.Addr)
	}
}

func TestStorePath(t *testing.T) {
	cfg := DefaultConfig()

	path := cfg.StorePath("/srv/museum")
	expected := filepath.Join("/srv/museum", ".artscope", "artworks.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}

	cfg.Store.Path = "/var/lib/artscope/art.db"
	if got := cfg.StorePath("/srv/museum"); got != "/var/lib/artscope/art.db" {
		t.Errorf("expected absolute path to be kept, got %s", got)
	}

	homedir.DisableCache = true
	t.Setenv("HOME", "/home/curator")
	cfg.Store.Path = "~/artscope/art.db"
	if got := cfg.StorePath("/srv/museum"); got != "/home/curator/artscope/art.db" {
		t.Errorf("expected ~ to expand to $HOME, got %s", got)
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.DSN = "postgres://fallback"
	cfg.Store.DSNEnv = "ARTSCOPE_TEST_DSN"

	t.Setenv("ARTSCOPE_TEST_DSN", "")
	if got := cfg.PostgresDSN(); got != "postgres://fallback" {
		t.Errorf("expected fallback DSN, got %s", got)
	}

	t.Setenv("ARTSCOPE_TEST_DSN", "postgres://from-env")
	if got := cfg.PostgresDSN(); got != "postgres://from-env" {
		t.Errorf("expected env DSN, got %s", got)
	}
}
