package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"metasync/internal/config"
)

func TestLoadDefaultConfigUsesEnvTMDBKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "test-key")
	t.Setenv("METASYNC_CONFIG", "")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "metasync", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, ".local", "share", "metasync"); cfg.Paths.StateDir != want {
		t.Fatalf("state dir = %q, want %q", cfg.Paths.StateDir, want)
	}
	if cfg.HistoryPath() != filepath.Join(cfg.Paths.StateDir, "history.db") {
		t.Fatalf("unexpected history path %q", cfg.HistoryPath())
	}
	if cfg.TMDB.APIKey != "test-key" {
		t.Fatalf("expected TMDB key from env, got %q", cfg.TMDB.APIKey)
	}
	if cfg.TMDB.Language != "fr" {
		t.Fatalf("language = %q", cfg.TMDB.Language)
	}
	if cfg.Sync.DescriptorName != ".metas.json" || cfg.Sync.AssetsDir != filepath.Join(".metadatas", "tmdb") {
		t.Fatalf("unexpected sync layout %+v", cfg.Sync)
	}
	s := cfg.Scheduler
	if s.MaxInFlight != 4 || s.ReserveTokens != 3 || s.InitialTokens != 40 || s.Capacity != 40 {
		t.Fatalf("unexpected scheduler defaults %+v", s)
	}
	if s.ReplenishInterval() != 250*time.Millisecond || s.AdmissionBackoff() != 300*time.Millisecond {
		t.Fatalf("unexpected scheduler durations %v %v", s.ReplenishInterval(), s.AdmissionBackoff())
	}
	if cfg.RequestTimeout() != 30*time.Second {
		t.Fatalf("request timeout = %v", cfg.RequestTimeout())
	}
}

func TestLoadResolvesEnvAndProjectConfig(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "")
	t.Setenv("HOME", t.TempDir())
	project := t.TempDir()
	t.Chdir(project)
	if err := os.WriteFile("metasync.toml", []byte("[tmdb]\napi_key = \"project\"\n"), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}

	t.Setenv("METASYNC_CONFIG", "")
	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != filepath.Join(project, "metasync.toml") || cfg.TMDB.APIKey != "project" {
		t.Fatalf("project config not used: %q exists=%v key=%q", resolved, exists, cfg.TMDB.APIKey)
	}

	envPath := filepath.Join(t.TempDir(), "env.toml")
	if err := os.WriteFile(envPath, []byte("[tmdb]\napi_key = \"env\"\n"), 0o644); err != nil {
		t.Fatalf("write env config: %v", err)
	}
	t.Setenv("METASYNC_CONFIG", envPath)
	cfg, resolved, _, err = config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if resolved != envPath || cfg.TMDB.APIKey != "env" {
		t.Fatalf("env config not used: %q key=%q", resolved, cfg.TMDB.APIKey)
	}

	if _, _, _, err := config.Load(project); err == nil {
		t.Fatal("expected a directory config path to be rejected")
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "")
	configPath := filepath.Join(t.TempDir(), "metasync.toml")

	type payload struct {
		TMDB struct {
			APIKey       string `toml:"api_key"`
			BaseURL      string `toml:"base_url"`
			ImageBaseURL string `toml:"image_base_url"`
		} `toml:"tmdb"`
		Sync struct {
			ForceType   string `toml:"force_type"`
			ExtraImages bool   `toml:"extra_images"`
		} `toml:"sync"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.TMDB.APIKey = "abc123"
	custom.TMDB.BaseURL = "https://example.com/tmdb/"
	custom.TMDB.ImageBaseURL = "https://img.example.com/t/p"
	custom.Sync.ForceType = " TV "
	custom.Sync.ExtraImages = true
	custom.Logging.Format = "JSON"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to be used, got %q (exists=%v)", resolved, exists)
	}
	if cfg.TMDB.BaseURL != "https://example.com/tmdb" {
		t.Fatalf("base url not trimmed: %q", cfg.TMDB.BaseURL)
	}
	if cfg.TMDB.ImageBaseURL != "https://img.example.com/t/p/" {
		t.Fatalf("image base url not slash-terminated: %q", cfg.TMDB.ImageBaseURL)
	}
	if cfg.Sync.ForceType != "tv" || !cfg.Sync.ExtraImages {
		t.Fatalf("unexpected sync section %+v", cfg.Sync)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("format = %q", cfg.Logging.Format)
	}
	if cfg.Scheduler.MaxInFlight != 4 {
		t.Fatalf("defaults not kept for absent sections: %+v", cfg.Scheduler)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metasync.toml")
	if err := os.WriteFile(path, []byte("[tmdb]\napi_key = \"k\"\nconfidence = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "")
	path := filepath.Join(t.TempDir(), "metasync.toml")
	if err := os.WriteFile(path, []byte("[sync]\nextra_images = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "tmdb.api_key") {
		t.Fatalf("expected api key error, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	for _, section := range []string{"[paths]", "[tmdb]", "[sync]", "[scheduler]", "[logging]"} {
		if !strings.Contains(string(contents), section) {
			t.Fatalf("sample config missing %s", section)
		}
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	def := config.Default()
	if cfg.Scheduler != def.Scheduler {
		t.Fatalf("sample scheduler %+v differs from defaults %+v", cfg.Scheduler, def.Scheduler)
	}
	if cfg.Sync.DescriptorName != def.Sync.DescriptorName {
		t.Fatalf("sample descriptor name %q", cfg.Sync.DescriptorName)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"non-positive in-flight", func(c *config.Config) { c.Scheduler.MaxInFlight = 0 }},
		{"reserve above capacity", func(c *config.Config) { c.Scheduler.ReserveTokens = c.Scheduler.Capacity }},
		{"negative reserve", func(c *config.Config) { c.Scheduler.ReserveTokens = -1 }},
		{"initial above capacity", func(c *config.Config) { c.Scheduler.InitialTokens = c.Scheduler.Capacity + 1 }},
		{"zero replenish", func(c *config.Config) { c.Scheduler.ReplenishIntervalMS = 0 }},
		{"descriptor path", func(c *config.Config) { c.Sync.DescriptorName = "a/b.json" }},
		{"absolute assets dir", func(c *config.Config) { c.Sync.AssetsDir = "/tmp/assets" }},
		{"escaping assets dir", func(c *config.Config) { c.Sync.AssetsDir = "../assets" }},
		{"bad base url", func(c *config.Config) { c.TMDB.BaseURL = "api.themoviedb.org" }},
		{"bad level", func(c *config.Config) { c.Logging.Level = "verbose" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.TMDB.APIKey = "key"
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	cfg.TMDB.APIKey = "key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
