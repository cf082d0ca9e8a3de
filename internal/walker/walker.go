package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"metasync/internal/descriptor"
	"metasync/internal/fileutil"
	"metasync/internal/logging"
	"metasync/internal/services"
	"metasync/internal/syncengine"
)

// LockName is the lock file created in the library root during a run.
const LockName = ".metasync.lock"

// ErrLocked reports another run holding the library root.
var ErrLocked = errors.New("library root is locked by another run")

// Directory outcomes besides the failure labels of the services package.
const (
	OutcomeWritten   = "written"
	OutcomeUnchanged = "unchanged"
	OutcomeSkipped   = "skipped"
)

// Syncer brings one descriptor up to date.
type Syncer interface {
	Sync(ctx context.Context, desc *descriptor.Descriptor, dir string) (syncengine.Result, error)
}

// Recorder receives every directory result as it completes.
type Recorder interface {
	Record(ctx context.Context, result DirectoryResult)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, result DirectoryResult)

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, result DirectoryResult) {
	f(ctx, result)
}

// DirectoryResult is the outcome of one library directory.
type DirectoryResult struct {
	Path      string
	Outcome   string
	SeriesKey int64
	Duration  time.Duration
	Err       error
}

// Summary aggregates a run.
type Summary struct {
	Written     int
	Unchanged   int
	Skipped     int
	Failed      int
	Directories []DirectoryResult
}

func (s *Summary) add(result DirectoryResult) {
	switch result.Outcome {
	case OutcomeWritten:
		s.Written++
	case OutcomeUnchanged:
		s.Unchanged++
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
	s.Directories = append(s.Directories, result)
}

// Options configures a Walker.
type Options struct {
	DescriptorName string
	ForceType      string
	Workers        int
	Logger         *slog.Logger
	Recorder       Recorder
	Now            func() time.Time
}

// Walker processes the directories of a library root.
type Walker struct {
	syncer Syncer
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New builds a Walker.
func New(syncer Syncer, opts Options) *Walker {
	if opts.DescriptorName == "" {
		opts.DescriptorName = ".metas.json"
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Walker{
		syncer: syncer,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "walker"),
		now:    now,
	}
}

// Run processes every library directory under root. Per-directory failures
// are counted in the summary; only problems with the root itself are
// returned as errors.
func (w *Walker) Run(ctx context.Context, root string) (Summary, error) {
	lock := flock.New(filepath.Join(root, LockName))
	locked, err := lock.TryLock()
	if err != nil {
		return Summary{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return Summary{}, ErrLocked
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			w.logger.Warn("failed to release library lock", logging.Error(err))
		}
	}()

	dirs, err := Directories(root)
	if err != nil {
		return Summary{}, err
	}
	w.logger.Info("library scan started",
		logging.String("root", root),
		logging.Int("directories", len(dirs)),
		logging.Int("workers", w.opts.Workers),
	)

	var (
		mu      sync.Mutex
		summary Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Workers)
	for _, dir := range dirs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			result := w.ProcessDirectory(gctx, dir)
			if w.opts.Recorder != nil {
				w.opts.Recorder.Record(gctx, result)
			}
			mu.Lock()
			summary.add(result)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summary.Directories, func(i, j int) bool {
		return summary.Directories[i].Path < summary.Directories[j].Path
	})
	w.logger.Info("library scan finished",
		logging.Int("written", summary.Written),
		logging.Int("unchanged", summary.Unchanged),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
	)
	return summary, ctx.Err()
}

// Directories lists the library entries of root: child directories whose
// name does not start with a dot, sorted by name.
func Directories(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read library root: %w", err)
	}
	var dirs []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(root, name)
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}
		dirs = append(dirs, path)
	}
	return dirs, nil
}

// ProcessDirectory loads, syncs and persists the descriptor of dir.
func (w *Walker) ProcessDirectory(ctx context.Context, dir string) DirectoryResult {
	started := w.now()
	result := w.process(services.WithDirectory(ctx, dir), dir)
	result.Path = dir
	result.Duration = w.now().Sub(started)

	logger := w.logger.With(logging.String(logging.FieldDirectory, dir))
	switch {
	case result.Err != nil:
		logging.WarnEvent(ctx, logger, "directory sync failed", "directory_failed",
			logging.String("outcome", result.Outcome),
			logging.Error(result.Err),
			logging.String(logging.FieldErrorHint, failureHint(result.Outcome)),
			logging.String(logging.FieldImpact, "directory kept its merged data; siblings continue"),
		)
	case result.Outcome == OutcomeSkipped:
		logger.Debug("directory skipped")
	default:
		logger.Info("directory synced",
			logging.String("outcome", result.Outcome),
			logging.Int64(logging.FieldSeriesKey, result.SeriesKey),
			logging.Duration("duration", result.Duration),
		)
	}
	return result
}

func (w *Walker) process(ctx context.Context, dir string) DirectoryResult {
	path := filepath.Join(dir, w.opts.DescriptorName)
	exists, err := w.ensureDescriptor(path)
	if err != nil {
		return DirectoryResult{Outcome: services.OutcomeFailed, Err: err}
	}
	if !exists {
		return DirectoryResult{Outcome: OutcomeSkipped}
	}

	doc, raw, err := descriptor.Load(path)
	if err != nil {
		if errors.Is(err, descriptor.ErrMalformed) {
			err = services.Wrap(services.ErrMalformedDescriptor, "walker", "load", path, err)
		}
		return DirectoryResult{Outcome: services.FailureOutcome(err), Err: err}
	}

	desc := doc.Section(w.opts.ForceType)
	if desc == nil {
		return DirectoryResult{Outcome: OutcomeSkipped}
	}
	res, syncErr := w.syncer.Sync(ctx, desc, dir)
	result := DirectoryResult{SeriesKey: desc.Key}

	// Partial merges are persisted even when the sync failed.
	data, changed, err := doc.EncodeIfChanged(raw, w.now())
	if err != nil {
		return DirectoryResult{Outcome: services.OutcomeFailed, SeriesKey: desc.Key, Err: errors.Join(syncErr, fmt.Errorf("encode %s: %w", path, err))}
	}
	if changed {
		if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
			return DirectoryResult{Outcome: services.OutcomeFailed, SeriesKey: desc.Key, Err: errors.Join(syncErr, err)}
		}
	}

	switch {
	case syncErr != nil:
		result.Outcome = services.FailureOutcome(syncErr)
		result.Err = syncErr
	case changed:
		result.Outcome = OutcomeWritten
	case res.Status == syncengine.StatusSkipped:
		result.Outcome = OutcomeSkipped
	default:
		result.Outcome = OutcomeUnchanged
	}
	return result
}

// ensureDescriptor reports whether a descriptor exists at path, creating an
// empty one when a forced type is configured.
func (w *Walker) ensureDescriptor(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			return false, fmt.Errorf("%s is a directory", path)
		}
		return true, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat descriptor: %w", err)
	}
	if w.opts.ForceType == "" {
		return false, nil
	}
	if err := fileutil.WriteFileAtomic(path, []byte("{}"), 0o644); err != nil {
		return false, fmt.Errorf("create descriptor: %w", err)
	}
	return true, nil
}

func failureHint(outcome string) string {
	switch outcome {
	case services.OutcomeMalformed:
		return "fix or remove the descriptor file"
	case services.OutcomeUnresolved:
		return "set the series key in the descriptor"
	default:
		return "rerun the sync; merged data was kept"
	}
}
