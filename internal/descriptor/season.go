package descriptor

import (
	"encoding/json"
	"fmt"
)

// Season is a season record, first created from the series payload's stub
// and then merged with the season details payload.
type Season struct {
	Envelope
	ID             int64      `json:"id,omitempty"`
	SeasonNumber   int        `json:"season_number"`
	Name           string     `json:"name,omitempty"`
	Overview       string     `json:"overview,omitempty"`
	AirDate        string     `json:"air_date,omitempty"`
	PosterPath     string     `json:"poster_path,omitempty"`
	ProductionCode string     `json:"production_code,omitempty"`
	Episodes       []*Episode `json:"episodes,omitempty"`
	Images         *ImageSet  `json:"images,omitempty"`
	Extra          Extra      `json:"-"`
}

type plainSeason Season

func (s Season) MarshalJSON() ([]byte, error) {
	return marshalObject(plainSeason(s), s.Extra)
}

func (s *Season) UnmarshalJSON(data []byte) error {
	var plain plainSeason
	extra, err := unmarshalObject(data, &plain)
	if err != nil {
		return err
	}
	*s = Season(plain)
	s.Extra = extra
	return nil
}

// Merge overlays a season details payload and returns the asset paths it
// references: the season poster, every episode still, and every crew and
// guest-star profile. s is untouched when the payload is rejected.
func (s *Season) Merge(body []byte) ([]string, error) {
	staged, err := cloneRecord(s)
	if err != nil {
		return nil, fmt.Errorf("season %d record: %w", s.SeasonNumber, err)
	}
	fresh, err := staged.apply(body)
	if err != nil {
		return nil, fmt.Errorf("season %d payload: %w", s.SeasonNumber, err)
	}
	*s = *staged
	var paths []string
	paths = appendPath(paths, fresh.PosterPath)
	for _, ep := range fresh.Episodes {
		if ep == nil {
			continue
		}
		paths = appendPath(paths, ep.StillPath)
		for _, c := range ep.Crew {
			paths = appendPath(paths, c.ProfilePath)
		}
		for _, c := range ep.GuestStars {
			paths = appendPath(paths, c.ProfilePath)
		}
	}
	return paths, nil
}

// ImageSet returns the season image set, creating an empty one when absent.
func (s *Season) ImageSet() *ImageSet {
	if s.Images == nil {
		s.Images = &ImageSet{}
	}
	return s.Images
}

// apply overlays body onto s in place. Callers pass a staged copy.
func (s *Season) apply(body []byte) (*Season, error) {
	members, err := objectMembers(body)
	if err != nil {
		return nil, err
	}
	fresh := &Season{}
	if err := json.Unmarshal(body, fresh); err != nil {
		return nil, err
	}
	overlay(s, fresh, members, &s.Extra, func(key string) bool { return key == "episodes" })
	if raw, ok := members["episodes"]; ok {
		episodes, err := mergeEpisodes(s.Episodes, raw)
		if err != nil {
			return nil, err
		}
		s.Episodes = episodes
	}
	return fresh, nil
}

// Episode is an episode record sourced from the season payload.
type Episode struct {
	ID             int64     `json:"id,omitempty"`
	EpisodeNumber  int       `json:"episode_number"`
	Name           string    `json:"name,omitempty"`
	Overview       string    `json:"overview,omitempty"`
	AirDate        string    `json:"air_date,omitempty"`
	StillPath      string    `json:"still_path,omitempty"`
	ProductionCode string    `json:"production_code,omitempty"`
	Crew           []Credit  `json:"crew,omitempty"`
	GuestStars     []Credit  `json:"guest_stars,omitempty"`
	Images         *ImageSet `json:"images,omitempty"`
	Extra          Extra     `json:"-"`
}

type plainEpisode Episode

func (e Episode) MarshalJSON() ([]byte, error) {
	return marshalObject(plainEpisode(e), e.Extra)
}

func (e *Episode) UnmarshalJSON(data []byte) error {
	var plain plainEpisode
	extra, err := unmarshalObject(data, &plain)
	if err != nil {
		return err
	}
	*e = Episode(plain)
	e.Extra = extra
	return nil
}

// ImageSet returns the episode image set, creating an empty one when absent.
func (e *Episode) ImageSet() *ImageSet {
	if e.Images == nil {
		e.Images = &ImageSet{}
	}
	return e.Images
}

func (e *Episode) apply(body json.RawMessage) error {
	members, err := objectMembers(body)
	if err != nil {
		return err
	}
	var fresh Episode
	if err := json.Unmarshal(body, &fresh); err != nil {
		return err
	}
	overlay(e, &fresh, members, &e.Extra, nil)
	return nil
}

func mergeEpisodes(held []*Episode, raw json.RawMessage) ([]*Episode, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	if items == nil {
		return nil, nil
	}
	byNumber := make(map[int]*Episode, len(held))
	for _, ep := range held {
		if ep != nil {
			byNumber[ep.EpisodeNumber] = ep
		}
	}
	merged := make([]*Episode, 0, len(items))
	for _, item := range items {
		if n, ok := numberOf(item, "episode_number"); ok {
			if prev, found := byNumber[n]; found {
				if err := prev.apply(item); err != nil {
					return nil, err
				}
				delete(byNumber, n)
				merged = append(merged, prev)
				continue
			}
		}
		ep := &Episode{}
		if err := json.Unmarshal(item, ep); err != nil {
			return nil, err
		}
		merged = append(merged, ep)
	}
	return merged, nil
}

// Credit is a creator, crew member, or guest star.
type Credit struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	ProfilePath string `json:"profile_path,omitempty"`
	Extra       Extra  `json:"-"`
}

type plainCredit Credit

func (c Credit) MarshalJSON() ([]byte, error) {
	return marshalObject(plainCredit(c), c.Extra)
}

func (c *Credit) UnmarshalJSON(data []byte) error {
	var plain plainCredit
	extra, err := unmarshalObject(data, &plain)
	if err != nil {
		return err
	}
	*c = Credit(plain)
	c.Extra = extra
	return nil
}
