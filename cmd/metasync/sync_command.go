package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"metasync/internal/assets"
	"metasync/internal/conditional"
	"metasync/internal/config"
	"metasync/internal/history"
	"metasync/internal/logging"
	"metasync/internal/preflight"
	"metasync/internal/scheduler"
	"metasync/internal/syncengine"
	"metasync/internal/tmdb"
	"metasync/internal/walker"
)

type syncFlags struct {
	ignoreValidators bool
	verifyImages     bool
	extraImages      bool
	reset            bool
	forceType        string
	language         string
	progress         bool
}

// apply overlays the flags that were set onto cfg.
func (f syncFlags) apply(cfg *config.Config) {
	if f.ignoreValidators {
		cfg.Sync.IgnoreValidators = true
	}
	if f.verifyImages {
		cfg.Sync.ForceVerifyAssets = true
	}
	if f.extraImages {
		cfg.Sync.ExtraImages = true
	}
	if f.reset {
		cfg.Sync.ResetRemoteState = true
	}
	if v := strings.ToLower(strings.TrimSpace(f.forceType)); v != "" {
		cfg.Sync.ForceType = v
	}
	if v := strings.TrimSpace(f.language); v != "" {
		cfg.TMDB.Language = v
	}
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var flags syncFlags

	cmd := &cobra.Command{
		Use:   "sync <library-root>",
		Short: "Synchronize every descriptor under a library root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg := *base
			flags.apply(&cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			root, err := resolveRoot(args[0])
			if err != nil {
				return err
			}
			return runSync(cmd, ctx, &cfg, root, flags.progress)
		},
	}

	cmd.Flags().BoolVar(&flags.ignoreValidators, "ignore-etag", false, "Ignore stored etags and timestamps and re-fetch everything")
	cmd.Flags().BoolVar(&flags.verifyImages, "verify-images", false, "Revalidate image files that already exist")
	cmd.Flags().BoolVar(&flags.extraImages, "extra-images", false, "Fetch posters, backdrops and stills collections")
	cmd.Flags().BoolVar(&flags.reset, "reset", false, "Discard merged remote data and validators before syncing")
	cmd.Flags().StringVar(&flags.forceType, "force-type", "", "Create descriptors of this type where missing (e.g. tv)")
	cmd.Flags().StringVar(&flags.language, "language", "", "Metadata language (overrides tmdb.language)")
	cmd.Flags().BoolVar(&flags.progress, "progress", false, "Show a progress line on the terminal")
	return cmd
}

func runSync(cmd *cobra.Command, cmdCtx *commandContext, cfg *config.Config, root string, showProgress bool) error {
	runID := uuid.NewString()
	runLog := logging.RunLogPath(cfg.Paths.LogDir, runID)
	logger, err := cmdCtx.newLogger(cfg, runID, runLog)
	if err != nil {
		return err
	}
	logging.PruneRunLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, runLog)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if check := preflight.CheckDirectoryAccess("library root", root); !check.Passed {
		return fmt.Errorf("library root not usable: %s", check.Detail)
	}
	dirs, err := walker.Directories(root)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	progress := newProgressLine(out, showProgress, len(dirs))

	sched := scheduler.New(scheduler.Config{
		MaxInFlight:       cfg.Scheduler.MaxInFlight,
		ReserveTokens:     cfg.Scheduler.ReserveTokens,
		InitialTokens:     cfg.Scheduler.InitialTokens,
		Capacity:          cfg.Scheduler.Capacity,
		ReplenishInterval: cfg.Scheduler.ReplenishInterval(),
		AdmissionBackoff:  cfg.Scheduler.AdmissionBackoff(),
	}, scheduler.WithLogger(logger))
	defer sched.Close()

	client, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language, tmdb.WithTimeout(cfg.RequestTimeout()))
	if err != nil {
		return err
	}
	cache := conditional.New(sched, conditional.Options{
		IgnoreValidators: cfg.Sync.IgnoreValidators,
		Logger:           logger,
	})
	resolver := syncengine.NewBaseURLResolver(client, sched, cfg.TMDB.ImageBaseURL)
	store := assets.New(sched, assets.Options{
		Client:      &http.Client{Timeout: cfg.RequestTimeout()},
		BaseURL:     resolver.BaseURL,
		ForceVerify: cfg.Sync.ForceVerifyAssets,
		Logger:      logger,
	})
	engine := syncengine.New(client, sched, cache, store, syncengine.Options{
		ExtraImages: cfg.Sync.ExtraImages,
		ResetRemote: cfg.Sync.ResetRemoteState,
		AssetsDir:   cfg.Sync.AssetsDir,
		Logger:      logger,
		Progress:    progress.Event,
	})

	hist, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer hist.Close()
	if days := cfg.Logging.RetentionDays; days > 0 {
		if n, err := hist.Prune(ctx, time.Now().AddDate(0, 0, -days)); err != nil {
			logging.WarnEvent(ctx, logger, "run history not pruned", "history_prune_failed", logging.Error(err))
		} else if n > 0 {
			logger.Debug("run history pruned", logging.Int64("runs", n))
		}
	}

	started := time.Now()
	if err := hist.BeginRun(ctx, runID, root, started); err != nil {
		return err
	}
	recorder := walker.RecorderFunc(func(ctx context.Context, result walker.DirectoryResult) {
		progress.DirectoryDone(result)
		recordDirectory(context.WithoutCancel(ctx), logger, hist, runID, result)
	})

	w := walker.New(engine, walker.Options{
		DescriptorName: cfg.Sync.DescriptorName,
		ForceType:      cfg.Sync.ForceType,
		Workers:        cfg.Sync.DirectoryWorkers,
		Logger:         logger,
		Recorder:       recorder,
	})
	logger.Info("sync started",
		logging.String("root", root),
		logging.String("language", cfg.TMDB.Language),
		logging.Bool("extra_images", cfg.Sync.ExtraImages),
		logging.Bool("ignore_validators", cfg.Sync.IgnoreValidators),
	)
	summary, runErr := w.Run(ctx, root)
	progress.Finish()

	totals := history.Totals{
		Written:   summary.Written,
		Unchanged: summary.Unchanged,
		Skipped:   summary.Skipped,
		Failed:    summary.Failed,
	}
	if err := hist.FinishRun(context.WithoutCancel(ctx), runID, totals, time.Now(), runErr); err != nil {
		logging.WarnEvent(ctx, logger, "run history not finalized", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run shows as unfinished in history"),
		)
	}

	renderSummary(out, runID, summary, sched.Stats(), cache.Stats(), store.Stats(), time.Since(started))
	logger.Info("sync finished",
		logging.Int("written", summary.Written),
		logging.Int("failed", summary.Failed),
		logging.Duration("duration", time.Since(started)),
	)
	if runErr != nil {
		return runErr
	}
	if summary.Failed > 0 {
		return &failedDirectoriesError{runID: runID, failed: summary.Failed, total: len(summary.Directories)}
	}
	return nil
}

func recordDirectory(ctx context.Context, logger *slog.Logger, hist *history.Store, runID string, result walker.DirectoryResult) {
	var message string
	if result.Err != nil {
		message = result.Err.Error()
	}
	err := hist.RecordDirectory(ctx, history.Directory{
		RunID:        runID,
		Path:         result.Path,
		Outcome:      result.Outcome,
		SeriesKey:    result.SeriesKey,
		Duration:     result.Duration,
		ErrorMessage: message,
	})
	if err != nil {
		logging.WarnEvent(ctx, logger, "directory outcome not recorded", "history_write_failed",
			logging.String(logging.FieldDirectory, result.Path),
			logging.Error(err),
		)
	}
}

func renderSummary(out io.Writer, runID string, summary walker.Summary, sched scheduler.Stats, cache conditional.Stats, store assets.Stats, elapsed time.Duration) {
	fmt.Fprintln(out, renderTable(
		[]column{{title: "Outcome"}, {title: "Directories", numeric: true}},
		[][]string{
			{walker.OutcomeWritten, strconv.Itoa(summary.Written)},
			{walker.OutcomeUnchanged, strconv.Itoa(summary.Unchanged)},
			{walker.OutcomeSkipped, strconv.Itoa(summary.Skipped)},
			{"failed", strconv.Itoa(summary.Failed)},
		},
		[]string{"total", strconv.Itoa(len(summary.Directories))},
	))

	var failures [][]string
	for _, d := range summary.Directories {
		if d.Err != nil {
			failures = append(failures, []string{d.Path, d.Outcome, d.Err.Error()})
		}
	}
	if len(failures) > 0 {
		fmt.Fprintln(out, renderTable(
			[]column{{title: "Directory"}, {title: "Outcome"}, {title: "Error", maxWidth: 80}},
			failures,
			nil,
		))
	}

	fmt.Fprintf(out, "Requests: %d admitted, %d deferred; metadata: %d merged, %d unchanged\n",
		sched.Admitted, sched.Deferred, cache.Merged, cache.Unchanged)
	fmt.Fprintf(out, "Images: %d downloaded, %d present, %d not modified, %d failed\n",
		store.Downloaded, store.Present, store.NotModified, store.Failed)
	fmt.Fprintf(out, "Run %s finished in %s\n", runID, elapsed.Round(time.Millisecond))
}

// failedDirectoriesError reports a run that completed with failed
// directories. main maps it to a distinct exit status.
type failedDirectoriesError struct {
	runID  string
	failed int
	total  int
}

func (e *failedDirectoriesError) Error() string {
	return fmt.Sprintf("%d of %d directories failed (see metasync history %s)", e.failed, e.total, e.runID)
}
