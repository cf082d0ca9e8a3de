package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTMDB() error {
	if c.TMDB.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("tmdb.api_key is required. Set TMDB_API_KEY env var or edit %s (create with 'metasync config init')", defaultPath)
	}
	if !strings.HasPrefix(c.TMDB.BaseURL, "http://") && !strings.HasPrefix(c.TMDB.BaseURL, "https://") {
		return errors.New("tmdb.base_url must be an http(s) URL")
	}
	if c.TMDB.ImageBaseURL != "" && !strings.HasPrefix(c.TMDB.ImageBaseURL, "http://") && !strings.HasPrefix(c.TMDB.ImageBaseURL, "https://") {
		return errors.New("tmdb.image_base_url must be an http(s) URL when set")
	}
	return nil
}

func (c *Config) validateSync() error {
	if strings.ContainsAny(c.Sync.DescriptorName, `/\`) {
		return errors.New("sync.descriptor_name must be a file name, not a path")
	}
	if filepath.IsAbs(c.Sync.AssetsDir) || strings.HasPrefix(c.Sync.AssetsDir, "..") {
		return errors.New("sync.assets_dir must be relative to the series directory")
	}
	if strings.ContainsAny(c.Sync.ForceType, " \t/") {
		return fmt.Errorf("sync.force_type %q is not a valid descriptor type", c.Sync.ForceType)
	}
	return nil
}

func (c *Config) validateScheduler() error {
	s := c.Scheduler
	if err := ensurePositiveMap(map[string]int{
		"scheduler.max_in_flight":         s.MaxInFlight,
		"scheduler.capacity":              s.Capacity,
		"scheduler.replenish_interval_ms": s.ReplenishIntervalMS,
		"scheduler.admission_backoff_ms":  s.AdmissionBackoffMS,
		"sync.directory_workers":          c.Sync.DirectoryWorkers,
	}); err != nil {
		return err
	}
	if s.ReserveTokens < 0 {
		return errors.New("scheduler.reserve_tokens must be >= 0")
	}
	if s.ReserveTokens >= s.Capacity {
		return errors.New("scheduler.reserve_tokens must be less than scheduler.capacity")
	}
	if s.InitialTokens < 0 || s.InitialTokens > s.Capacity {
		return errors.New("scheduler.initial_tokens must be between 0 and scheduler.capacity")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
