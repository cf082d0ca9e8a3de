package syncengine

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"metasync/internal/scheduler"
	"metasync/internal/services"
	"metasync/internal/tmdb"
)

// Resolve searches the remote catalog for name and returns the key of the
// single confident match. A lone result is adopted as is; among several,
// the one whose name or original name equals name ignoring case wins.
func (e *Engine) Resolve(ctx context.Context, name string) (int64, error) {
	query := strings.TrimSpace(name)
	if query == "" {
		return 0, services.Wrap(services.ErrUnresolved, "syncengine", "resolve", "empty series name", nil)
	}
	resp, err := scheduler.Do(ctx, e.sched, func(ctx context.Context) (*tmdb.SearchResponse, scheduler.Observation, error) {
		return e.remote.SearchTV(ctx, query)
	})
	if err != nil {
		return 0, err
	}
	if match, ok := pickMatch(query, resp); ok {
		return match.ID, nil
	}
	count := 0
	if resp != nil {
		count = len(resp.Results)
	}
	message := fmt.Sprintf("no exact match for %q among %d results", query, count)
	return 0, services.Wrap(services.ErrUnresolved, "syncengine", "resolve", message, nil)
}

func pickMatch(name string, resp *tmdb.SearchResponse) (tmdb.SearchResult, bool) {
	if resp == nil || len(resp.Results) == 0 {
		return tmdb.SearchResult{}, false
	}
	if len(resp.Results) == 1 && resp.TotalResults <= 1 {
		return resp.Results[0], resp.Results[0].ID > 0
	}
	fold := cases.Fold()
	want := fold.String(name)
	for _, candidate := range resp.Results {
		if candidate.ID <= 0 {
			continue
		}
		if fold.String(strings.TrimSpace(candidate.Name)) == want ||
			fold.String(strings.TrimSpace(candidate.OriginalName)) == want {
			return candidate, true
		}
	}
	return tmdb.SearchResult{}, false
}
