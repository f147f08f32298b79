package engine

import (
	"time"

	"github.com/amaumene/seenarr/internal/models"
)

const (
	// AiringWindowDays is how far ahead a next episode still counts as airing soon
	AiringWindowDays = 7
	// RecheckInterval is the minimum gap between two sweep checks of the same show
	RecheckInterval = 24 * time.Hour

	airDateLayout = "2006-01-02"
)

// IsAiringSoon reports whether airDate (YYYY-MM-DD) falls between the start of today
// and the end of the seventh day after today, in now's location.
// Unparseable or empty dates are never airing soon.
func IsAiringSoon(airDate string, now time.Time) bool {
	if len(airDate) > len(airDateLayout) {
		airDate = airDate[:len(airDateLayout)]
	}
	day, err := time.ParseInLocation(airDateLayout, airDate, now.Location())
	if err != nil {
		return false
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := today.AddDate(0, 0, AiringWindowDays+1)
	return !day.Before(today) && day.Before(end)
}

// nextAirDate returns the air date of the next episode, or "" when none is scheduled
func nextAirDate(item *models.MediaItem) string {
	if item == nil || item.NextEpisode == nil {
		return ""
	}
	return item.NextEpisode.AirDate
}

// ReadmitToWatchlist decides the conflict of an item that is both on the remote
// watchlist and rated. Movies are never re-admitted. Shows are re-admitted only when
// fresh details show a next episode airing soon.
func ReadmitToWatchlist(item models.MediaItem, fresh *models.MediaItem, now time.Time) bool {
	if item.MediaType != models.MediaTypeShow {
		return false
	}
	return IsAiringSoon(nextAirDate(fresh), now)
}

// SweepEligible reports whether a watched item should be checked by the sweep
func SweepEligible(item models.MediaItem, now time.Time) bool {
	if item.MediaType != models.MediaTypeShow {
		return false
	}
	if models.IsTerminalStatus(item.Status) {
		return false
	}
	if item.LastChecked == 0 {
		return true
	}
	return now.Sub(item.CheckedAt()) > RecheckInterval
}
