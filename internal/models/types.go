package models

import "strings"

// MediaType represents the type of media (movie or show)
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeShow  MediaType = "show"
)

// Valid reports whether t is one of the known media types.
func (t MediaType) Valid() bool {
	return t == MediaTypeMovie || t == MediaTypeShow
}

// ListKind names a remote account list
type ListKind string

const (
	ListWatchlist ListKind = "watchlist"
	ListRated     ListKind = "rated"
)

// Catalog lifecycle values that end a show's run
const (
	ShowStatusEnded    = "ended"
	ShowStatusCanceled = "canceled"
)

// IsTerminalStatus reports whether a show status means no more episodes will air.
// The catalog also spells it "cancelled" in places.
func IsTerminalStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case ShowStatusEnded, ShowStatusCanceled, "cancelled":
		return true
	default:
		return false
	}
}

// Page is one page of a remote account list
type Page struct {
	Items      []MediaItem
	Page       int
	TotalPages int
}
