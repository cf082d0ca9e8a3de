package testsupport

import (
	"path/filepath"
	"testing"

	"metasync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.TMDB.APIKey = "test"
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithTMDB points the config at a fake TMDB endpoint and image host.
func WithTMDB(baseURL, imageBaseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.TMDB.BaseURL = baseURL
		b.cfg.TMDB.ImageBaseURL = imageBaseURL
	}
}

// WithFastScheduler shortens scheduler intervals so tests never wait on
// admission.
func WithFastScheduler() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scheduler.ReserveTokens = 0
		b.cfg.Scheduler.InitialTokens = 1000
		b.cfg.Scheduler.Capacity = 1000
		b.cfg.Scheduler.ReplenishIntervalMS = 1
		b.cfg.Scheduler.AdmissionBackoffMS = 1
	}
}

// LibraryDir creates and returns a library root next to the config's state.
func LibraryDir(t testing.TB, cfg *config.Config) string {
	t.Helper()
	dir := filepath.Join(BaseDir(cfg), "library")
	MkdirAll(t, dir)
	return dir
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
