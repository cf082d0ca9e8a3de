package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local state locations.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey                string `toml:"api_key"`
	BaseURL               string `toml:"base_url"`
	Language              string `toml:"language"`
	ImageBaseURL          string `toml:"image_base_url"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Sync contains the behavior switches of a library sync.
type Sync struct {
	IgnoreValidators  bool   `toml:"ignore_validators"`
	ForceVerifyAssets bool   `toml:"force_verify_assets"`
	ExtraImages       bool   `toml:"extra_images"`
	ResetRemoteState  bool   `toml:"reset_remote_state"`
	ForceType         string `toml:"force_type"`
	DescriptorName    string `toml:"descriptor_name"`
	AssetsDir         string `toml:"assets_dir"`
	DirectoryWorkers  int    `toml:"directory_workers"`
}

// Scheduler contains the admission parameters for remote calls.
type Scheduler struct {
	MaxInFlight         int `toml:"max_in_flight"`
	ReserveTokens       int `toml:"reserve_tokens"`
	InitialTokens       int `toml:"initial_tokens"`
	Capacity            int `toml:"capacity"`
	ReplenishIntervalMS int `toml:"replenish_interval_ms"`
	AdmissionBackoffMS  int `toml:"admission_backoff_ms"`
}

// ReplenishInterval returns the token replenish period.
func (s Scheduler) ReplenishInterval() time.Duration {
	return time.Duration(s.ReplenishIntervalMS) * time.Millisecond
}

// AdmissionBackoff returns the wait applied when the projected quota is at the reserve.
func (s Scheduler) AdmissionBackoff() time.Duration {
	return time.Duration(s.AdmissionBackoffMS) * time.Millisecond
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for metasync.
//
// Configuration sections by subsystem:
//   - Paths: state (history database) and log directories
//   - TMDB: remote API credentials, locale, and timeouts
//   - Sync: per-run behavior switches and on-disk layout
//   - Scheduler: rate-limit admission parameters
//   - Logging: log format, level, and retention
type Config struct {
	Paths     Paths     `toml:"paths"`
	TMDB      TMDB      `toml:"tmdb"`
	Sync      Sync      `toml:"sync"`
	Scheduler Scheduler `toml:"scheduler"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// resolveConfigPath picks the file to load. An explicit path (flag or
// METASYNC_CONFIG) is used whether or not it exists; otherwise the first
// existing file among the user config and ./metasync.toml wins, and the user
// config path is reported when neither exists.
func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv(configEnvVar))
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		exists, err := regularFile(expanded)
		if err != nil {
			return "", false, err
		}
		return expanded, exists, nil
	}

	candidates := []string{defaultConfigPath, projectConfigName}
	resolved := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		expanded, err := expandPath(candidate)
		if err != nil {
			return "", false, err
		}
		exists, err := regularFile(expanded)
		if err != nil {
			return "", false, err
		}
		if exists {
			return expanded, true, nil
		}
		resolved = append(resolved, expanded)
	}
	return resolved[0], false, nil
}

func regularFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	case info.IsDir():
		return false, fmt.Errorf("config path %s is a directory", path)
	}
	return true, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the run history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// RequestTimeout returns the per-request HTTP timeout for remote calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.TMDB.RequestTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
