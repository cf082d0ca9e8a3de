package syncengine

import (
	"context"

	"metasync/internal/conditional"
	"metasync/internal/scheduler"
	"metasync/internal/tmdb"
)

// Remote is the subset of the TMDB client the engine depends on.
type Remote interface {
	SearchTV(ctx context.Context, query string) (*tmdb.SearchResponse, scheduler.Observation, error)
	Configuration(ctx context.Context) (*tmdb.Configuration, scheduler.Observation, error)
	TVDetails(ctx context.Context, seriesID int64, pre conditional.Preconditions) (conditional.Response, error)
	TVImages(ctx context.Context, seriesID int64, pre conditional.Preconditions) (conditional.Response, error)
	SeasonDetails(ctx context.Context, seriesID int64, season int, pre conditional.Preconditions) (conditional.Response, error)
	SeasonImages(ctx context.Context, seriesID int64, season int, pre conditional.Preconditions) (conditional.Response, error)
	EpisodeImages(ctx context.Context, seriesID int64, season, episode int, pre conditional.Preconditions) (conditional.Response, error)
}

var _ Remote = (*tmdb.Client)(nil)
