package descriptor

import (
	"encoding/json"
	"fmt"
)

// Asset references one remote image by path.
type Asset struct {
	Path   string `json:"path"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// ImageSet is the stored projection of an image collection payload. Only
// path and dimensions are kept for each image.
type ImageSet struct {
	Envelope
	Posters   []Asset `json:"posters,omitempty"`
	Backdrops []Asset `json:"backdrops,omitempty"`
	Stills    []Asset `json:"stills,omitempty"`
	Extra     Extra   `json:"-"`
}

type plainImageSet ImageSet

func (s ImageSet) MarshalJSON() ([]byte, error) {
	return marshalObject(plainImageSet(s), s.Extra)
}

func (s *ImageSet) UnmarshalJSON(data []byte) error {
	var plain plainImageSet
	extra, err := unmarshalObject(data, &plain)
	if err != nil {
		return err
	}
	*s = ImageSet(plain)
	s.Extra = extra
	return nil
}

type remoteImage struct {
	FilePath string `json:"file_path"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Merge replaces each image category present in body with its projection and
// returns the primary asset of each: the first image of the category. Other
// members of the payload are not stored. Every category is decoded before
// any is replaced.
func (s *ImageSet) Merge(body []byte) ([]string, error) {
	members, err := objectMembers(body)
	if err != nil {
		return nil, fmt.Errorf("images payload: %w", err)
	}
	categories := []struct {
		key    string
		target *[]Asset
		assets []Asset
	}{
		{key: "posters", target: &s.Posters},
		{key: "backdrops", target: &s.Backdrops},
		{key: "stills", target: &s.Stills},
	}
	present := make([]bool, len(categories))
	for i := range categories {
		raw, ok := members[categories[i].key]
		if !ok {
			continue
		}
		var images []remoteImage
		if err := json.Unmarshal(raw, &images); err != nil {
			return nil, fmt.Errorf("images payload %s: %w", categories[i].key, err)
		}
		for _, img := range images {
			if img.FilePath == "" {
				continue
			}
			categories[i].assets = append(categories[i].assets, Asset{Path: img.FilePath, Width: img.Width, Height: img.Height})
		}
		present[i] = true
	}

	var primaries []string
	for i, category := range categories {
		if !present[i] {
			continue
		}
		*category.target = category.assets
		if len(category.assets) > 0 {
			primaries = append(primaries, category.assets[0].Path)
		}
	}
	return primaries, nil
}

// Primary returns the first image of each category.
func (s *ImageSet) Primary() []string {
	if s == nil {
		return nil
	}
	var paths []string
	for _, assets := range [][]Asset{s.Posters, s.Backdrops, s.Stills} {
		if len(assets) > 0 {
			paths = appendPath(paths, assets[0].Path)
		}
	}
	return paths
}
