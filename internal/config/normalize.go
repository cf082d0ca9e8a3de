package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTMDB()
	c.normalizeSync()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTMDB() {
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = strings.TrimSpace(value)
		}
	}
	c.TMDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TMDB.BaseURL), "/")
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.TMDB.Language = strings.TrimSpace(c.TMDB.Language)
	if c.TMDB.Language == "" {
		c.TMDB.Language = defaultTMDBLanguage
	}
	c.TMDB.ImageBaseURL = strings.TrimSpace(c.TMDB.ImageBaseURL)
	if c.TMDB.ImageBaseURL != "" && !strings.HasSuffix(c.TMDB.ImageBaseURL, "/") {
		c.TMDB.ImageBaseURL += "/"
	}
	if c.TMDB.RequestTimeoutSeconds <= 0 {
		c.TMDB.RequestTimeoutSeconds = defaultTMDBRequestTimeout
	}
}

func (c *Config) normalizeSync() {
	c.Sync.ForceType = strings.ToLower(strings.TrimSpace(c.Sync.ForceType))
	c.Sync.DescriptorName = strings.TrimSpace(c.Sync.DescriptorName)
	if c.Sync.DescriptorName == "" {
		c.Sync.DescriptorName = defaultDescriptorName
	}
	c.Sync.AssetsDir = strings.TrimSpace(c.Sync.AssetsDir)
	if c.Sync.AssetsDir == "" {
		c.Sync.AssetsDir = defaultAssetsDir
	}
	c.Sync.AssetsDir = filepath.Clean(c.Sync.AssetsDir)
	if c.Sync.DirectoryWorkers <= 0 {
		c.Sync.DirectoryWorkers = defaultDirectoryWorkers
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
