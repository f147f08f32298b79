package models

import (
	"fmt"
	"time"
)

// MediaItem represents one movie or show tracked in the library
type MediaItem struct {
	ID        int       `json:"id"`
	MediaType MediaType `json:"mediaType"`

	// Catalog fields, owned by the remote side
	Title        string  `json:"title"`
	PosterPath   string  `json:"posterPath,omitempty"`
	BackdropPath string  `json:"backdropPath,omitempty"`
	Overview     string  `json:"overview,omitempty"`
	ReleaseDate  string  `json:"releaseDate,omitempty"` // YYYY-MM-DD
	VoteAverage  float64 `json:"voteAverage,omitempty"`
	UserRating   int     `json:"userRating,omitempty"` // 1-5, 0 when unrated

	// Local bookkeeping
	DateAdded          time.Time    `json:"dateAdded"`
	LastChecked        int64        `json:"lastChecked,omitempty"` // epoch millis of last sweep check
	Status             string       `json:"status,omitempty"`      // e.g. "Returning Series", "Ended"
	NextEpisode        *NextEpisode `json:"nextEpisode,omitempty"`
	EditedAvailability *bool        `json:"editedAvailability,omitempty"`
}

// NextEpisode describes the next scheduled episode of a show
type NextEpisode struct {
	AirDate       string `json:"airDate"` // YYYY-MM-DD
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	Name          string `json:"name,omitempty"`
	Overview      string `json:"overview,omitempty"`
}

// Key returns the item identity used in maps: "{mediaType}-{id}".
func (m MediaItem) Key() string {
	return ItemKey(m.MediaType, m.ID)
}

// ItemKey builds the key of an item from its identity pair.
func ItemKey(mediaType MediaType, id int) string {
	return fmt.Sprintf("%s-%d", mediaType, id)
}

// Year returns the release year or an empty string when unknown.
func (m MediaItem) Year() string {
	if len(m.ReleaseDate) >= 4 {
		return m.ReleaseDate[:4]
	}
	return ""
}

// CheckedAt converts LastChecked to a time; zero when never checked.
func (m MediaItem) CheckedAt() time.Time {
	if m.LastChecked == 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.LastChecked)
}

// Clone returns a deep copy of the item.
func (m MediaItem) Clone() MediaItem {
	c := m
	if m.NextEpisode != nil {
		ep := *m.NextEpisode
		c.NextEpisode = &ep
	}
	if m.EditedAvailability != nil {
		v := *m.EditedAvailability
		c.EditedAvailability = &v
	}
	return c
}
