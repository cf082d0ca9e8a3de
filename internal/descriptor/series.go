package descriptor

import (
	"encoding/json"
	"fmt"
)

// TypeSeries is the only descriptor type the sync engine acts on.
const TypeSeries = "tv"

// Descriptor is the provider section of a descriptor file.
type Descriptor struct {
	Type       string  `json:"type,omitempty"`
	Key        int64   `json:"key,omitempty"`
	SeriesInfo *Series `json:"seriesInfo,omitempty"`
	Extra      Extra   `json:"-"`
}

type plainDescriptor Descriptor

func (d Descriptor) MarshalJSON() ([]byte, error) {
	return marshalObject(plainDescriptor(d), d.Extra)
}

func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var plain plainDescriptor
	extra, err := unmarshalObject(data, &plain)
	if err != nil {
		return err
	}
	*d = Descriptor(plain)
	d.Extra = extra
	return nil
}

// Series returns the series record, creating an empty one when absent.
func (d *Descriptor) Series() *Series {
	if d.SeriesInfo == nil {
		d.SeriesInfo = &Series{}
	}
	return d.SeriesInfo
}

// ResetRemote discards every merged remote record and validator. The
// resolved key is kept so the next sync does not search again.
func (d *Descriptor) ResetRemote() {
	d.SeriesInfo = nil
}

// Series is the merged remote series record.
type Series struct {
	Envelope
	ID           int64     `json:"id,omitempty"`
	Name         string    `json:"name,omitempty"`
	OriginalName string    `json:"original_name,omitempty"`
	Overview     string    `json:"overview,omitempty"`
	PosterPath   string    `json:"poster_path,omitempty"`
	BackdropPath string    `json:"backdrop_path,omitempty"`
	CreatedBy    []Credit  `json:"created_by,omitempty"`
	Seasons      []*Season `json:"seasons,omitempty"`
	Images       *ImageSet `json:"images,omitempty"`
	Extra        Extra     `json:"-"`
}

type plainSeries Series

func (s Series) MarshalJSON() ([]byte, error) {
	return marshalObject(plainSeries(s), s.Extra)
}

func (s *Series) UnmarshalJSON(data []byte) error {
	var plain plainSeries
	extra, err := unmarshalObject(data, &plain)
	if err != nil {
		return err
	}
	*s = Series(plain)
	s.Extra = extra
	return nil
}

// Merge overlays a series details payload and returns the asset paths it
// references. A season already held locally keeps its sub-state when the
// payload lists the same season number. The overlay is built on a copy, so s
// is left as it was when any part of the payload is rejected.
func (s *Series) Merge(body []byte) ([]string, error) {
	members, err := objectMembers(body)
	if err != nil {
		return nil, fmt.Errorf("series payload: %w", err)
	}
	var fresh Series
	if err := json.Unmarshal(body, &fresh); err != nil {
		return nil, fmt.Errorf("series payload: %w", err)
	}
	staged, err := cloneRecord(s)
	if err != nil {
		return nil, fmt.Errorf("series record: %w", err)
	}
	overlay(staged, &fresh, members, &staged.Extra, func(key string) bool { return key == "seasons" })
	if raw, ok := members["seasons"]; ok {
		seasons, err := mergeSeasons(staged.Seasons, raw)
		if err != nil {
			return nil, fmt.Errorf("series payload seasons: %w", err)
		}
		staged.Seasons = seasons
	}
	*s = *staged
	return fresh.assetPaths(), nil
}

// ImageSet returns the series image set, creating an empty one when absent.
func (s *Series) ImageSet() *ImageSet {
	if s.Images == nil {
		s.Images = &ImageSet{}
	}
	return s.Images
}

func (s *Series) assetPaths() []string {
	var paths []string
	paths = appendPath(paths, s.PosterPath)
	paths = appendPath(paths, s.BackdropPath)
	for _, c := range s.CreatedBy {
		paths = appendPath(paths, c.ProfilePath)
	}
	for _, season := range s.Seasons {
		if season != nil {
			paths = appendPath(paths, season.PosterPath)
		}
	}
	return paths
}

func mergeSeasons(held []*Season, raw json.RawMessage) ([]*Season, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	if items == nil {
		return nil, nil
	}
	byNumber := make(map[int]*Season, len(held))
	for _, season := range held {
		if season != nil {
			byNumber[season.SeasonNumber] = season
		}
	}
	merged := make([]*Season, 0, len(items))
	for _, item := range items {
		if n, ok := numberOf(item, "season_number"); ok {
			if prev, found := byNumber[n]; found {
				if _, err := prev.apply(item); err != nil {
					return nil, err
				}
				delete(byNumber, n)
				merged = append(merged, prev)
				continue
			}
		}
		season := &Season{}
		if err := json.Unmarshal(item, season); err != nil {
			return nil, err
		}
		merged = append(merged, season)
	}
	return merged, nil
}

func appendPath(paths []string, path string) []string {
	if path == "" {
		return paths
	}
	return append(paths, path)
}
