package descriptor

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

const sampleFile = `{
  "allocine.fr": {"id": 42, "note": "keep <me> & intact"},
  "themoviedb.org": {
    "type": "tv",
    "key": 1399,
    "name": "hand written",
    "seriesInfo": {
      "$etag": "\"v1\"",
      "$timestamp": "Mon, 01 Jan 2024 00:00:00 GMT",
      "name": "Game of Thrones",
      "overview": "old overview",
      "vote_average": 8.4,
      "seasons": [
        {"season_number": 1, "$etag": "\"s1\"", "episodes": [{"episode_number": 1, "name": "Winter Is Coming"}]}
      ]
    }
  },
  "timestamp": "Mon, 01 Jan 2024 00:00:00 GMT"
}`

func TestParseEncodeRoundTripIsCanonical(t *testing.T) {
	doc, err := Parse([]byte(sampleFile))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	first, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	again, err := Parse(first)
	if err != nil {
		t.Fatalf("re-Parse: %v", err)
	}
	second, err := again.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("encoding not stable:\n%s\n---\n%s", first, second)
	}
	out := string(first)
	for _, want := range []string{`"allocine.fr"`, `keep <me> & intact`, `"vote_average": 8.4`, `"name": "hand written"`, `"$etag": "\"s1\""`} {
		if !strings.Contains(out, want) {
			t.Fatalf("encoded document missing %s:\n%s", want, out)
		}
	}
	if strings.HasSuffix(out, "\n") {
		t.Fatal("encoded document should not end with a newline")
	}
	if strings.Index(out, `"allocine.fr"`) > strings.Index(out, `"themoviedb.org"`) {
		t.Fatal("expected sorted top-level keys")
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, input := range []string{``, `[]`, `{"themoviedb.org": {"key": "abc"}}`, `{`} {
		if _, err := Parse([]byte(input)); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Parse(%q) = %v, want ErrMalformed", input, err)
		}
	}
}

func TestSeriesMergeIsNonDestructiveOverlay(t *testing.T) {
	s := &Series{Name: "Foo", Overview: "old", Extra: Extra{"homepage": json.RawMessage(`"http://old"`)}}

	if _, err := s.Merge([]byte(`{"name": "Foo", "homepage": "http://new", "status": "Ended"}`)); err != nil {
		t.Fatal(err)
	}
	if s.Overview != "old" {
		t.Fatalf("absent field overwritten: %q", s.Overview)
	}
	if string(s.Extra["homepage"]) != `"http://new"` || string(s.Extra["status"]) != `"Ended"` {
		t.Fatalf("extras not overlaid: %v", s.Extra)
	}

	if _, err := s.Merge([]byte(`{"overview": "new"}`)); err != nil {
		t.Fatal(err)
	}
	if s.Overview != "new" || s.Name != "Foo" {
		t.Fatalf("overlay result %q / %q", s.Overview, s.Name)
	}
}

func TestSeriesMergeIgnoresEnvelopeKeysAndReportsAssets(t *testing.T) {
	s := &Series{Envelope: Envelope{Validator: "keep"}}
	paths, err := s.Merge([]byte(`{
		"$etag": "remote",
		"poster_path": "/p.jpg",
		"backdrop_path": "/b.jpg",
		"created_by": [{"id": 1, "profile_path": "/c.jpg"}, {"id": 2, "profile_path": null}],
		"seasons": [{"season_number": 0, "poster_path": "/s0.jpg"}, {"season_number": 1}]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if s.Validator != "keep" {
		t.Fatalf("payload must not touch the envelope, got %q", s.Validator)
	}
	want := []string{"/p.jpg", "/b.jpg", "/c.jpg", "/s0.jpg"}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
}

func TestSeriesMergeKeepsSeasonSubState(t *testing.T) {
	doc, err := Parse([]byte(sampleFile))
	if err != nil {
		t.Fatal(err)
	}
	series := doc.TMDB.SeriesInfo
	if _, err := series.Merge([]byte(`{"seasons": [{"season_number": 1, "name": "Season 1"}, {"season_number": 2, "name": "Season 2"}]}`)); err != nil {
		t.Fatal(err)
	}
	if len(series.Seasons) != 2 {
		t.Fatalf("seasons = %d", len(series.Seasons))
	}
	first := series.Seasons[0]
	if first.Validator != `"s1"` || len(first.Episodes) != 1 || first.Name != "Season 1" {
		t.Fatalf("season 1 lost held state: %+v", first)
	}
	if series.Seasons[1].Validator != "" || series.Seasons[1].Name != "Season 2" {
		t.Fatalf("unexpected new season: %+v", series.Seasons[1])
	}
}

func TestSeasonMergeDropsEmptyOptionalFields(t *testing.T) {
	season := &Season{SeasonNumber: 1}
	paths, err := season.Merge([]byte(`{
		"season_number": 1,
		"production_code": "",
		"poster_path": "/s1.jpg",
		"episodes": [{
			"episode_number": 1,
			"overview": "",
			"still_path": null,
			"production_code": "",
			"crew": [],
			"guest_stars": [{"id": 5, "name": "Guest", "profile_path": "/g.jpg"}, {"id": 6, "profile_path": ""}]
		}]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(paths, []string{"/s1.jpg", "/g.jpg"}) {
		t.Fatalf("paths = %v", paths)
	}
	data, err := json.Marshal(season.Episodes[0])
	if err != nil {
		t.Fatal(err)
	}
	for _, absent := range []string{"overview", "still_path", "production_code", "crew"} {
		if bytes.Contains(data, []byte(`"`+absent+`"`)) {
			t.Fatalf("%s should be dropped: %s", absent, data)
		}
	}
	if bytes.Contains(data, []byte(`"profile_path":""`)) {
		t.Fatalf("empty profile path kept: %s", data)
	}
	seasonData, _ := json.Marshal(season)
	if bytes.Contains(seasonData, []byte("production_code")) {
		t.Fatalf("season production_code kept: %s", seasonData)
	}
}

func TestSeasonMergeKeepsEpisodeImages(t *testing.T) {
	season := &Season{SeasonNumber: 2, Episodes: []*Episode{{EpisodeNumber: 3, Images: &ImageSet{Envelope: Envelope{Validator: "e3"}}}}}
	if _, err := season.Merge([]byte(`{"episodes": [{"episode_number": 3, "name": "Three"}]}`)); err != nil {
		t.Fatal(err)
	}
	ep := season.Episodes[0]
	if ep.Name != "Three" || ep.Images == nil || ep.Images.Validator != "e3" {
		t.Fatalf("episode image set not preserved: %+v", ep)
	}
}

func TestImageSetMergeProjectsAndReturnsPrimaries(t *testing.T) {
	set := &ImageSet{Stills: []Asset{{Path: "/old.jpg"}}}
	primaries, err := set.Merge([]byte(`{
		"id": 1399,
		"posters": [{"file_path": "/p1.jpg", "width": 1000, "height": 1500, "vote_average": 5.3}, {"file_path": "/p2.jpg"}],
		"backdrops": []
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(primaries, []string{"/p1.jpg"}) {
		t.Fatalf("primaries = %v", primaries)
	}
	if len(set.Posters) != 2 || set.Posters[0] != (Asset{Path: "/p1.jpg", Width: 1000, Height: 1500}) {
		t.Fatalf("posters = %+v", set.Posters)
	}
	if set.Backdrops != nil {
		t.Fatalf("empty category should be nil, got %+v", set.Backdrops)
	}
	if len(set.Stills) != 1 {
		t.Fatal("absent category must be left untouched")
	}
	if set.Extra != nil {
		t.Fatalf("payload extras must not be stored: %v", set.Extra)
	}
}

func TestRejectedMergeLeavesRecordUntouched(t *testing.T) {
	doc, err := Parse([]byte(sampleFile))
	if err != nil {
		t.Fatal(err)
	}
	series := doc.TMDB.SeriesInfo
	season := series.Seasons[0]
	set := &ImageSet{Posters: []Asset{{Path: "/old.jpg"}}}

	cases := []struct {
		name   string
		record interface{ Merge([]byte) ([]string, error) }
		body   string
	}{
		{"series with bad season", series, `{"name": "new", "homepage": "x", "seasons": [{"season_number": 1, "name": "S1"}, null]}`},
		{"series with bad held season", series, `{"overview": "new", "seasons": [{"season_number": 1, "episodes": 3}]}`},
		{"season with bad episode", season, `{"name": "new", "episodes": [{"episode_number": 1, "name": "x"}, 7]}`},
		{"images with bad later category", set, `{"posters": [{"file_path": "/new.jpg"}], "stills": {"bad": 1}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before, err := json.Marshal(tc.record)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := tc.record.Merge([]byte(tc.body)); err == nil {
				t.Fatal("expected merge error")
			}
			after, err := json.Marshal(tc.record)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(before, after) {
				t.Fatalf("record changed by rejected merge:\n%s\n---\n%s", before, after)
			}
		})
	}
	if series.Seasons[0] != season {
		t.Fatal("held season replaced by rejected merge")
	}
}

func TestEncodeIfChangedStampsOnlyOnChange(t *testing.T) {
	doc, err := Parse([]byte(sampleFile))
	if err != nil {
		t.Fatal(err)
	}
	canonical, err := doc.Encode()
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	if _, changed, err := doc.EncodeIfChanged(canonical, now); err != nil || changed {
		t.Fatalf("unchanged document reported changed=%v err=%v", changed, err)
	}

	doc.TMDB.SeriesInfo.Overview = "fresh"
	data, changed, err := doc.EncodeIfChanged(canonical, now)
	if err != nil || !changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	if !bytes.Contains(data, []byte(`"timestamp": "Sat, 01 Jun 2024 12:00:00 GMT"`)) {
		t.Fatalf("timestamp not stamped:\n%s", data)
	}
}

func TestSectionAndReset(t *testing.T) {
	doc, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Section("") != nil {
		t.Fatal("no section expected without a forced type")
	}
	d := doc.Section(TypeSeries)
	if d == nil || d.Type != "tv" {
		t.Fatalf("forced section = %+v", d)
	}
	d.Key = 7
	d.Series().Name = "x"
	d.ResetRemote()
	if d.SeriesInfo != nil || d.Key != 7 {
		t.Fatalf("reset result %+v", d)
	}
}

func TestEnvelopeSyncedAt(t *testing.T) {
	var e Envelope
	if _, ok := e.SyncedAt(); ok {
		t.Fatal("empty envelope has no sync time")
	}
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.FixedZone("x", 3600))
	e.Stamp(at)
	got, ok := e.SyncedAt()
	if !ok || !got.Equal(at) {
		t.Fatalf("SyncedAt = %v %v", got, ok)
	}
}
