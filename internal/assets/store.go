package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"metasync/internal/fileutil"
	"metasync/internal/logging"
	"metasync/internal/scheduler"
	"metasync/internal/services"
)

// StatusError reports an unexpected HTTP status for an asset download.
type StatusError struct {
	Path string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("asset %s returned %d", e.Path, e.Code)
}

// HTTPDoer describes the HTTP client used for downloads.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// BaseURLFunc resolves the URL prefix asset paths are appended to. It is
// called only when a download is needed.
type BaseURLFunc func(ctx context.Context) (string, error)

// StaticBaseURL returns a BaseURLFunc that always yields base.
func StaticBaseURL(base string) BaseURLFunc {
	return func(context.Context) (string, error) { return base, nil }
}

// Options configures a Store.
type Options struct {
	Client      HTTPDoer
	BaseURL     BaseURLFunc
	ForceVerify bool
	Logger      *slog.Logger
}

// Stats counts EnsureFetched outcomes.
type Stats struct {
	Requested    int64
	Deduplicated int64
	Present      int64
	Downloaded   int64
	NotModified  int64
	Failed       int64
}

// Store is the per-process registry of fetched asset paths.
type Store struct {
	sched       *scheduler.Scheduler
	client      HTTPDoer
	baseURL     BaseURLFunc
	forceVerify bool
	logger      *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}

	requested    atomic.Int64
	deduplicated atomic.Int64
	present      atomic.Int64
	downloaded   atomic.Int64
	notModified  atomic.Int64
	failed       atomic.Int64
}

// New builds a Store downloading through sched.
func New(sched *scheduler.Scheduler, opts Options) *Store {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Store{
		sched:       sched,
		client:      client,
		baseURL:     opts.BaseURL,
		forceVerify: opts.ForceVerify,
		logger:      logging.NewComponentLogger(opts.Logger, "assets"),
		seen:        make(map[string]struct{}),
	}
}

// Normalize strips a single leading slash from an asset path.
func Normalize(assetPath string) string {
	return strings.TrimPrefix(assetPath, "/")
}

// Destination returns where assetPath is stored under destRoot.
func Destination(destRoot, assetPath string) (string, error) {
	rel := filepath.FromSlash(Normalize(assetPath))
	if rel == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: asset path %q escapes destination", services.ErrValidation, assetPath)
	}
	return filepath.Join(destRoot, rel), nil
}

// EnsureFetched makes sure assetPath exists under destRoot. The first call
// for a normalized path does the work; later calls return immediately.
// Download failures are logged and returned but never retried in this run.
func (s *Store) EnsureFetched(ctx context.Context, assetPath, destRoot string) error {
	s.requested.Add(1)
	normalized := Normalize(assetPath)
	if normalized == "" {
		return nil
	}
	if !s.mark(normalized) {
		s.deduplicated.Add(1)
		return nil
	}

	dest, err := Destination(destRoot, assetPath)
	if err != nil {
		return s.fail(ctx, normalized, err)
	}
	info, ok := fileutil.NonEmptyFile(dest)
	if ok && !s.forceVerify {
		s.present.Add(1)
		return nil
	}
	var since time.Time
	if ok {
		since = info.ModTime()
	}

	base, err := s.resolveBase(ctx)
	if err != nil {
		// Nothing was downloaded; let a later reference retry once the
		// base URL resolves.
		s.unmark(normalized)
		return s.fail(ctx, normalized, err)
	}
	if err := fileutil.EnsureDir(filepath.Dir(dest)); err != nil {
		return s.fail(ctx, normalized, err)
	}

	err = s.sched.Submit(ctx, func(ctx context.Context) (scheduler.Observation, error) {
		return scheduler.Observation{}, s.download(ctx, base+normalized, dest, since)
	})
	if err != nil {
		return s.fail(ctx, normalized, err)
	}
	return nil
}

// EnsureAll fetches every path concurrently and waits for all of them. The
// first failure is returned; every failure has already been logged.
func (s *Store) EnsureAll(ctx context.Context, paths []string, destRoot string) error {
	var g errgroup.Group
	for _, p := range paths {
		g.Go(func() error {
			return s.EnsureFetched(ctx, p, destRoot)
		})
	}
	return g.Wait()
}

func (s *Store) download(ctx context.Context, url, dest string, since time.Time) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build asset request: %w", err)
	}
	if !since.IsZero() {
		req.Header.Set("If-Modified-Since", since.UTC().Format(http.TimeFormat))
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "assets", "download", url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotModified:
		s.notModified.Add(1)
		return nil
	default:
		return services.Wrap(services.ErrTransient, "assets", "download", "",
			&StatusError{Path: url, Code: resp.StatusCode})
	}

	if _, err := fileutil.WriteReaderAtomic(dest, resp.Body, resp.ContentLength, 0o644); err != nil {
		return err
	}
	if modified, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		_ = os.Chtimes(dest, modified, modified)
	}
	s.downloaded.Add(1)
	return nil
}

func (s *Store) resolveBase(ctx context.Context) (string, error) {
	if s.baseURL == nil {
		return "", errors.New("asset base url not configured")
	}
	base, err := s.baseURL(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve asset base url: %w", err)
	}
	if base == "" {
		return "", errors.New("asset base url is empty")
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base, nil
}

func (s *Store) fail(ctx context.Context, path string, err error) error {
	s.failed.Add(1)
	logging.WarnEvent(ctx, s.logger, "asset download failed", "asset_download_failed",
		logging.String(logging.FieldAssetPath, path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "asset will be retried on the next run"),
	)
	return fmt.Errorf("asset %s: %w", path, err)
}

func (s *Store) mark(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[path]; ok {
		return false
	}
	s.seen[path] = struct{}{}
	return true
}

func (s *Store) unmark(path string) {
	s.mu.Lock()
	delete(s.seen, path)
	s.mu.Unlock()
}

// Stats returns outcome counters.
func (s *Store) Stats() Stats {
	return Stats{
		Requested:    s.requested.Load(),
		Deduplicated: s.deduplicated.Load(),
		Present:      s.present.Load(),
		Downloaded:   s.downloaded.Load(),
		NotModified:  s.notModified.Load(),
		Failed:       s.failed.Load(),
	}
}
