package tmdb_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"metasync/internal/conditional"
	"metasync/internal/services"
	"metasync/internal/tmdb"
)

func newClient(t *testing.T, handler http.HandlerFunc) *tmdb.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := tmdb.New("key", server.URL, "fr")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := tmdb.New("", "https://example.com", "fr"); err == nil {
		t.Fatal("expected error when api key missing")
	}
	if _, err := tmdb.New("key", " ", "fr"); err == nil {
		t.Fatal("expected error when base url missing")
	}
}

func TestSearchTVSuccess(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/search/tv" || q.Get("api_key") != "key" || q.Get("query") != "Foo" || q.Get("language") != "fr" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		w.Header().Set(tmdb.QuotaHeader, "38")
		_, _ = w.Write([]byte(`{"page":1,"total_results":2,"results":[{"id":1,"name":"Foo","original_name":"Foo"},{"id":2,"name":"Foo Bar"}]}`))
	})

	resp, obs, err := client.SearchTV(context.Background(), "Foo")
	if err != nil {
		t.Fatalf("SearchTV returned error: %v", err)
	}
	if resp.TotalResults != 2 || len(resp.Results) != 2 || resp.Results[0].OriginalName != "Foo" {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if !obs.Reported || obs.Remaining != 38 {
		t.Fatalf("quota = %+v", obs)
	}
}

func TestSearchTVEmptyQuery(t *testing.T) {
	client, err := tmdb.New("key", "https://example.com", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := client.SearchTV(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestTVDetailsSendsPreconditionsAndReturnsRawBody(t *testing.T) {
	since := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/1399" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("If-None-Match"); got != `"v1"` {
			t.Errorf("If-None-Match = %q", got)
		}
		if got := r.Header.Get("If-Modified-Since"); got != "Tue, 02 Jan 2024 03:04:05 GMT" {
			t.Errorf("If-Modified-Since = %q", got)
		}
		w.Header().Set("ETag", `"v2"`)
		_, _ = w.Write([]byte(`{"id":1399,"name":"Game of Thrones"}`))
	})

	resp, err := client.TVDetails(context.Background(), 1399, conditional.Preconditions{IfNoneMatch: `"v1"`, IfModifiedSince: since})
	if err != nil {
		t.Fatal(err)
	}
	if resp.NotModified || resp.Validator != `"v2"` || string(resp.Body) != `{"id":1399,"name":"Game of Thrones"}` {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Quota.Reported {
		t.Fatal("quota reported without header")
	}
}

func TestSeasonDetailsNotModified(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/7/season/0" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set(tmdb.QuotaHeader, "12")
		w.WriteHeader(http.StatusNotModified)
	})

	resp, err := client.SeasonDetails(context.Background(), 7, 0, conditional.Preconditions{IfNoneMatch: `"x"`})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.NotModified || resp.Body != nil || resp.Quota.Remaining != 12 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestImagesEndpointsAreNotLocalized(t *testing.T) {
	var paths []string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("language") {
			t.Errorf("image request localized: %s", r.URL.RawQuery)
		}
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`{"posters":[]}`))
	})
	ctx := context.Background()
	if _, err := client.TVImages(ctx, 1, conditional.Preconditions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := client.SeasonImages(ctx, 1, 2, conditional.Preconditions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := client.EpisodeImages(ctx, 1, 2, 3, conditional.Preconditions{}); err != nil {
		t.Fatal(err)
	}
	want := []string{"/tv/1/images", "/tv/1/season/2/images", "/tv/1/season/2/episode/3/images"}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("paths = %v", paths)
		}
	}
}

func TestHTTPErrorIsTransientWithStatus(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(tmdb.QuotaHeader, "0")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	resp, err := client.TVDetails(context.Background(), 1, conditional.Preconditions{})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	var statusErr *tmdb.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected StatusError 429, got %v", err)
	}
	if !resp.Quota.Reported || resp.Quota.Remaining != 0 {
		t.Fatalf("quota lost on error: %+v", resp.Quota)
	}
}

func TestConfiguration(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/configuration" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"images":{"secure_base_url":"https://image.tmdb.org/t/p/"}}`))
	})
	cfg, _, err := client.Configuration(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Images.SecureBaseURL != "https://image.tmdb.org/t/p/" {
		t.Fatalf("secure base url = %q", cfg.Images.SecureBaseURL)
	}
}
