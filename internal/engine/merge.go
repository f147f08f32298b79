package engine

import (
	"time"

	"github.com/amaumene/seenarr/internal/models"
)

// MergeItem combines a freshly fetched remote item with the local copy of the same item.
// Catalog fields and the rating come from remote; local bookkeeping (date added, last
// check, status, next episode, availability flag) survives when known. Empty remote
// strings never erase local values. A nil local means the item is new and is stamped
// with now.
func MergeItem(remote models.MediaItem, local *models.MediaItem, now time.Time) models.MediaItem {
	merged := remote.Clone()
	if local == nil {
		merged.DateAdded = now
		return merged
	}

	merged.Title = firstNonEmpty(remote.Title, local.Title)
	merged.PosterPath = firstNonEmpty(remote.PosterPath, local.PosterPath)
	merged.BackdropPath = firstNonEmpty(remote.BackdropPath, local.BackdropPath)
	merged.Overview = firstNonEmpty(remote.Overview, local.Overview)
	merged.ReleaseDate = firstNonEmpty(remote.ReleaseDate, local.ReleaseDate)

	merged.DateAdded = local.DateAdded
	if merged.DateAdded.IsZero() {
		merged.DateAdded = now
	}
	if local.LastChecked != 0 {
		merged.LastChecked = local.LastChecked
	}
	if local.Status != "" {
		merged.Status = local.Status
	}
	if local.NextEpisode != nil {
		ep := *local.NextEpisode
		merged.NextEpisode = &ep
	}
	if local.EditedAvailability != nil {
		v := *local.EditedAvailability
		merged.EditedAvailability = &v
	}
	return merged
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// RemoteLists are the four account lists, movies followed by shows
type RemoteLists struct {
	Watchlist []models.MediaItem
	Rated     []models.MediaItem
}

// Resolution is the outcome of reconciling remote lists with the local library
type Resolution struct {
	Watchlist  []models.MediaItem
	Watched    []models.MediaItem
	Readmitted int
	Dropped    int
}

// Conflicts returns the watchlist shows that are also rated remotely or watched
// locally. Those need fresh details before they can be resolved.
func (r RemoteLists) Conflicts(localWatched map[string]bool) []models.MediaItem {
	rated := keySet(r.Rated)
	seen := map[string]bool{}
	var out []models.MediaItem
	for _, item := range r.Watchlist {
		key := item.Key()
		if item.MediaType != models.MediaTypeShow || seen[key] {
			continue
		}
		if rated[key] || localWatched[key] {
			seen[key] = true
			out = append(out, item)
		}
	}
	return out
}

func keySet(items []models.MediaItem) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item.Key()] = true
	}
	return set
}

// Reconcile builds the new library from the remote lists and the current local
// state (which may be nil). fresh holds details fetched for conflicting shows.
//
// Rated items become watched. A watchlist item that is rated remotely or watched
// locally is a conflict: shows stay on the watchlist only when ReadmitToWatchlist
// says so, everything else is dropped from the watchlist. A dropped item that is
// only watched locally stays watched until its pending rating reaches the remote.
// Duplicates are collapsed.
func Reconcile(remote RemoteLists, local *models.LibraryState, fresh map[string]*models.MediaItem, now time.Time) Resolution {
	if local == nil {
		local = &models.LibraryState{}
	}
	index := indexLocal(local)
	localWatched := keySet(local.Watched)
	localWatchlist := keySet(local.Watchlist)

	lookup := func(key string) *models.MediaItem {
		if item, ok := index[key]; ok {
			return &item
		}
		return nil
	}

	res := Resolution{
		Watchlist: []models.MediaItem{},
		Watched:   []models.MediaItem{},
	}

	rated := keySet(remote.Rated)
	readmitted := map[string]bool{}
	keptWatched := map[string]bool{}
	seen := map[string]bool{}

	for _, item := range remote.Watchlist {
		key := item.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		merged := MergeItem(item, lookup(key), now)
		merged.UserRating = 0

		if rated[key] || localWatched[key] {
			if !ReadmitToWatchlist(merged, fresh[key], now) {
				if !rated[key] {
					keptWatched[key] = true
				}
				res.Dropped++
				continue
			}
			details := fresh[key]
			merged.Status = firstNonEmpty(details.Status, merged.Status)
			ep := *details.NextEpisode
			merged.NextEpisode = &ep
			if !localWatchlist[key] {
				merged.LastChecked = now.UnixMilli()
			}
			readmitted[key] = true
			res.Readmitted++
		}
		res.Watchlist = append(res.Watchlist, merged)
	}

	seen = map[string]bool{}
	for _, item := range remote.Rated {
		key := item.Key()
		if seen[key] || readmitted[key] {
			continue
		}
		seen[key] = true
		res.Watched = append(res.Watched, MergeItem(item, lookup(key), now))
	}

	for _, item := range local.Watched {
		if keptWatched[item.Key()] {
			res.Watched = append(res.Watched, item.Clone())
		}
	}

	return res
}

// indexLocal maps the current local items of both lists by key; watched wins on collision
func indexLocal(state *models.LibraryState) map[string]models.MediaItem {
	index := make(map[string]models.MediaItem, len(state.Watchlist)+len(state.Watched))
	for _, item := range state.Watchlist {
		index[item.Key()] = item.Clone()
	}
	for _, item := range state.Watched {
		index[item.Key()] = item.Clone()
	}
	return index
}
