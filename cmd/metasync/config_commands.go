package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"metasync/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if !overwrite {
				_, err := os.Stat(target)
				switch {
				case err == nil:
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				case !errors.Is(err, fs.ErrNotExist):
					return fmt.Errorf("check config path: %w", err)
				}
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set tmdb.api_key (or export TMDB_API_KEY) before the first sync.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing configuration file")
	return cmd
}

func initTarget(path string) (string, error) {
	if path = strings.TrimSpace(path); path == "" {
		target, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return target, nil
	}
	target, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return target, nil
}

// newConfigValidateCommand loads the configuration itself so that load errors
// are reported by this command rather than by the root pre-run hook.
func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration and print the effective settings",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			source := path
			if !exists {
				source = path + " (not found, defaults used)"
			}
			fmt.Fprintf(out, "Config: %s\n", source)
			fmt.Fprintln(out, renderTable(
				[]column{{title: "Setting"}, {title: "Value"}},
				effectiveSettings(cfg),
				nil,
			))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func effectiveSettings(cfg *config.Config) [][]string {
	imageBase := cfg.TMDB.ImageBaseURL
	if imageBase == "" {
		imageBase = "(from /configuration)"
	}
	return [][]string{
		{"paths.state_dir", cfg.Paths.StateDir},
		{"paths.log_dir", cfg.Paths.LogDir},
		{"tmdb.base_url", cfg.TMDB.BaseURL},
		{"tmdb.language", cfg.TMDB.Language},
		{"tmdb.image_base_url", imageBase},
		{"sync.descriptor_name", cfg.Sync.DescriptorName},
		{"sync.assets_dir", cfg.Sync.AssetsDir},
		{"sync.extra_images", yesNo(cfg.Sync.ExtraImages)},
		{"sync.directory_workers", strconv.Itoa(cfg.Sync.DirectoryWorkers)},
		{"scheduler.max_in_flight", strconv.Itoa(cfg.Scheduler.MaxInFlight)},
		{"scheduler.capacity", strconv.Itoa(cfg.Scheduler.Capacity)},
		{"logging.level", cfg.Logging.Level},
	}
}
