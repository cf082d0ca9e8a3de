package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"metasync/internal/assets"
	"metasync/internal/conditional"
	"metasync/internal/descriptor"
	"metasync/internal/logging"
	"metasync/internal/scheduler"
	"metasync/internal/services"
)

// Status summarizes what Sync did with a descriptor.
type Status int

const (
	// StatusSkipped means the descriptor type is not synced.
	StatusSkipped Status = iota
	// StatusSynced means the series branch ran to completion.
	StatusSynced
)

func (s Status) String() string {
	if s == StatusSynced {
		return "synced"
	}
	return "skipped"
}

// Result describes one Sync.
type Result struct {
	Status   Status
	Key      int64
	Resolved bool
	Series   conditional.Outcome
	Seasons  int
}

// Event is reported to the progress callback as work starts.
type Event struct {
	Directory string
	Stage     string
	Season    int
	Episode   int
}

// Options configures an Engine.
type Options struct {
	ExtraImages bool
	ResetRemote bool
	AssetsDir   string
	Logger      *slog.Logger
	Progress    func(Event)
}

// Engine drives the series, season and episode sync of descriptors. One
// Engine is shared by every directory of a run.
type Engine struct {
	remote Remote
	sched  *scheduler.Scheduler
	cache  *conditional.Cache
	store  *assets.Store
	opts   Options
	logger *slog.Logger
}

// New builds an Engine. store may be nil, in which case no artwork is fetched.
func New(remote Remote, sched *scheduler.Scheduler, cache *conditional.Cache, store *assets.Store, opts Options) *Engine {
	return &Engine{
		remote: remote,
		sched:  sched,
		cache:  cache,
		store:  store,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "syncengine"),
	}
}

// branch holds the state shared by every task under one descriptor.
type branch struct {
	engine   *Engine
	dir      string
	key      int64
	destRoot string
	logger   *slog.Logger
	assets   sync.WaitGroup
}

// Sync brings desc up to date for the library directory dir. Descriptors of
// any type other than a series are left untouched. Records merged before a
// failure stay in desc; the returned error joins every season failure.
func (e *Engine) Sync(ctx context.Context, desc *descriptor.Descriptor, dir string) (Result, error) {
	if desc == nil || desc.Type != descriptor.TypeSeries {
		return Result{Status: StatusSkipped}, nil
	}
	ctx = services.WithDirectory(ctx, dir)
	if e.opts.ResetRemote {
		desc.ResetRemote()
	}

	result := Result{Status: StatusSynced}
	if desc.Key == 0 {
		e.progress(Event{Directory: dir, Stage: "resolve"})
		key, err := e.Resolve(ctx, filepath.Base(dir))
		if err != nil {
			return Result{}, err
		}
		desc.Key = key
		result.Resolved = true
		e.logger.Info("series resolved",
			logging.String(logging.FieldDirectory, dir),
			logging.Int64(logging.FieldSeriesKey, key),
		)
	}
	result.Key = desc.Key
	ctx = services.WithSeriesKey(ctx, desc.Key)

	b := &branch{
		engine:   e,
		dir:      dir,
		key:      desc.Key,
		destRoot: filepath.Join(dir, e.opts.AssetsDir),
		logger: e.logger.With(
			logging.String(logging.FieldDirectory, dir),
			logging.Int64(logging.FieldSeriesKey, desc.Key),
		),
	}
	defer b.assets.Wait()

	outcome, seasons, err := b.syncSeries(ctx, desc.Series())
	result.Series = outcome
	result.Seasons = seasons
	if err != nil {
		return result, err
	}
	b.logger.Debug("series branch complete",
		logging.String("outcome", outcome.String()),
		logging.Int("seasons", seasons),
	)
	return result, nil
}

func (b *branch) syncSeries(ctx context.Context, series *descriptor.Series) (conditional.Outcome, int, error) {
	e := b.engine
	e.progress(Event{Directory: b.dir, Stage: "series"})
	res, err := e.cache.Sync(ctx, "series", series, func(ctx context.Context, pre conditional.Preconditions) (conditional.Response, error) {
		return e.remote.TVDetails(ctx, b.key, pre)
	})
	if err != nil {
		return conditional.Unchanged, 0, fmt.Errorf("series %d: %w", b.key, err)
	}
	merged := res.Outcome == conditional.Merged
	b.fetch(ctx, res.Assets)

	var imagesErr error
	if e.opts.ExtraImages && needsSync(merged, imagesEnvelope(series.Images)) {
		imagesErr = b.syncImages(ctx, "series images", series.ImageSet(), func(ctx context.Context, pre conditional.Preconditions) (conditional.Response, error) {
			return e.remote.TVImages(ctx, b.key, pre)
		})
	}

	pending := make([]*descriptor.Season, 0, len(series.Seasons))
	for _, season := range series.Seasons {
		if season != nil && (needsSync(merged, &season.Envelope) || b.imagesPending(season)) {
			pending = append(pending, season)
		}
	}
	errs := make([]error, len(pending))
	var g errgroup.Group
	for i, season := range pending {
		g.Go(func() error {
			errs[i] = b.syncSeason(ctx, season, merged)
			return nil
		})
	}
	_ = g.Wait()
	return res.Outcome, len(pending), errors.Join(imagesErr, errors.Join(errs...))
}

// syncSeason merges the season payload when the series merged or the season
// was never synced, then its image set, then fans out to its episodes. Each
// image set is gated on its own envelope. Episode failures are logged and
// swallowed.
func (b *branch) syncSeason(ctx context.Context, season *descriptor.Season, seriesMerged bool) error {
	e := b.engine
	number := season.SeasonNumber
	scope := fmt.Sprintf("season %d", number)
	merged := false
	if needsSync(seriesMerged, &season.Envelope) {
		e.progress(Event{Directory: b.dir, Stage: "season", Season: number})
		res, err := e.cache.Sync(ctx, scope, season, func(ctx context.Context, pre conditional.Preconditions) (conditional.Response, error) {
			return e.remote.SeasonDetails(ctx, b.key, number, pre)
		})
		if err != nil {
			logging.WarnEvent(ctx, e.logger, "season sync failed", "season_sync_failed",
				logging.Int(logging.FieldSeasonNumber, number),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the season is retried on the next run"),
			)
			return fmt.Errorf("%s: %w", scope, err)
		}
		merged = res.Outcome == conditional.Merged
		b.fetch(ctx, res.Assets)
	}
	if !e.opts.ExtraImages {
		return nil
	}

	var imagesErr error
	if needsSync(merged, imagesEnvelope(season.Images)) {
		imagesErr = b.syncImages(ctx, scope+" images", season.ImageSet(), func(ctx context.Context, pre conditional.Preconditions) (conditional.Response, error) {
			return e.remote.SeasonImages(ctx, b.key, number, pre)
		})
	}

	var g errgroup.Group
	for _, episode := range season.Episodes {
		if episode == nil || !needsSync(merged, imagesEnvelope(episode.Images)) {
			continue
		}
		g.Go(func() error {
			b.syncEpisode(ctx, number, episode)
			return nil
		})
	}
	_ = g.Wait()
	return imagesErr
}

func (b *branch) syncEpisode(ctx context.Context, season int, episode *descriptor.Episode) {
	e := b.engine
	number := episode.EpisodeNumber
	e.progress(Event{Directory: b.dir, Stage: "episode", Season: season, Episode: number})
	scope := fmt.Sprintf("season %d episode %d images", season, number)
	err := b.syncImages(ctx, scope, episode.ImageSet(), func(ctx context.Context, pre conditional.Preconditions) (conditional.Response, error) {
		return e.remote.EpisodeImages(ctx, b.key, season, number, pre)
	})
	if err != nil {
		logging.WarnEvent(ctx, e.logger, "episode images sync failed", "episode_sync_failed",
			logging.Int(logging.FieldSeasonNumber, season),
			logging.Int(logging.FieldEpisodeNumber, number),
			logging.Error(err),
		)
	}
}

func (b *branch) syncImages(ctx context.Context, scope string, set *descriptor.ImageSet, call conditional.Call) error {
	res, err := b.engine.cache.Sync(ctx, scope, set, call)
	if err != nil {
		return fmt.Errorf("%s: %w", scope, err)
	}
	b.fetch(ctx, res.Assets)
	return nil
}

// fetch hands paths to the asset store without blocking the branch. Failures
// are logged by the store.
func (b *branch) fetch(ctx context.Context, paths []string) {
	store := b.engine.store
	if store == nil {
		return
	}
	for _, p := range paths {
		b.assets.Go(func() {
			_ = store.EnsureFetched(ctx, p, b.destRoot)
		})
	}
}

// imagesPending reports whether image collections are enabled and the season
// or one of its episodes holds an image set that was never synced.
func (b *branch) imagesPending(season *descriptor.Season) bool {
	if !b.engine.opts.ExtraImages {
		return false
	}
	if needsSync(false, imagesEnvelope(season.Images)) {
		return true
	}
	for _, episode := range season.Episodes {
		if episode != nil && needsSync(false, imagesEnvelope(episode.Images)) {
			return true
		}
	}
	return false
}

func (e *Engine) progress(ev Event) {
	if e.opts.Progress != nil {
		e.opts.Progress(ev)
	}
}

// needsSync reports whether a child record must be synced: always when its
// parent merged new data, otherwise only when it was never synced.
func needsSync(parentMerged bool, env *descriptor.Envelope) bool {
	return parentMerged || env == nil || env.LastSyncedAt == ""
}

func imagesEnvelope(set *descriptor.ImageSet) *descriptor.Envelope {
	if set == nil {
		return nil
	}
	return &set.Envelope
}
