package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"metasync/internal/conditional"
	"metasync/internal/scheduler"
	"metasync/internal/services"
)

// SearchResult is a single TV search match.
type SearchResult struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	FirstAirDate string `json:"first_air_date"`
}

// SearchResponse models the paginated TV search response.
type SearchResponse struct {
	Page         int            `json:"page"`
	Results      []SearchResult `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

// Configuration is the remote image configuration.
type Configuration struct {
	Images struct {
		BaseURL       string   `json:"base_url"`
		SecureBaseURL string   `json:"secure_base_url"`
		PosterSizes   []string `json:"poster_sizes"`
	} `json:"images"`
}

// SearchTV searches series by name.
func (c *Client) SearchTV(ctx context.Context, query string) (*SearchResponse, scheduler.Observation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, scheduler.Observation{}, errors.New("query must not be empty")
	}
	var payload SearchResponse
	obs, err := c.getJSON(ctx, "tv search", c.endpoint("/search/tv", url.Values{"query": {query}}, true), &payload)
	if err != nil {
		return nil, obs, err
	}
	return &payload, obs, nil
}

// Configuration fetches the remote image configuration.
func (c *Client) Configuration(ctx context.Context) (*Configuration, scheduler.Observation, error) {
	var payload Configuration
	obs, err := c.getJSON(ctx, "configuration", c.endpoint("/configuration", nil, false), &payload)
	if err != nil {
		return nil, obs, err
	}
	return &payload, obs, nil
}

// TVDetails fetches the series details payload.
func (c *Client) TVDetails(ctx context.Context, seriesID int64, pre conditional.Preconditions) (conditional.Response, error) {
	if seriesID <= 0 {
		return conditional.Response{}, errors.New("series id must be positive")
	}
	return c.get(ctx, "tv details", c.endpoint(fmt.Sprintf("/tv/%d", seriesID), nil, true), pre)
}

// TVImages fetches the series image collection. Images are not localized so
// every language is returned.
func (c *Client) TVImages(ctx context.Context, seriesID int64, pre conditional.Preconditions) (conditional.Response, error) {
	if seriesID <= 0 {
		return conditional.Response{}, errors.New("series id must be positive")
	}
	return c.get(ctx, "tv images", c.endpoint(fmt.Sprintf("/tv/%d/images", seriesID), nil, false), pre)
}

// SeasonDetails fetches the season payload, episodes included.
func (c *Client) SeasonDetails(ctx context.Context, seriesID int64, season int, pre conditional.Preconditions) (conditional.Response, error) {
	if seriesID <= 0 {
		return conditional.Response{}, errors.New("series id must be positive")
	}
	if season < 0 {
		return conditional.Response{}, errors.New("season number must not be negative")
	}
	return c.get(ctx, "season details", c.endpoint(fmt.Sprintf("/tv/%d/season/%d", seriesID, season), nil, true), pre)
}

// SeasonImages fetches the season image collection.
func (c *Client) SeasonImages(ctx context.Context, seriesID int64, season int, pre conditional.Preconditions) (conditional.Response, error) {
	if seriesID <= 0 {
		return conditional.Response{}, errors.New("series id must be positive")
	}
	return c.get(ctx, "season images", c.endpoint(fmt.Sprintf("/tv/%d/season/%d/images", seriesID, season), nil, false), pre)
}

// EpisodeImages fetches the episode image collection.
func (c *Client) EpisodeImages(ctx context.Context, seriesID int64, season, episode int, pre conditional.Preconditions) (conditional.Response, error) {
	if seriesID <= 0 {
		return conditional.Response{}, errors.New("series id must be positive")
	}
	path := fmt.Sprintf("/tv/%d/season/%d/episode/%d/images", seriesID, season, episode)
	return c.get(ctx, "episode images", c.endpoint(path, nil, false), pre)
}

func (c *Client) getJSON(ctx context.Context, operation, endpoint string, out any) (scheduler.Observation, error) {
	resp, err := c.get(ctx, operation, endpoint, conditional.Preconditions{})
	if err != nil {
		return resp.Quota, err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return resp.Quota, services.Wrap(services.ErrTransient, "tmdb", operation, "decode response", err)
	}
	return resp.Quota, nil
}
