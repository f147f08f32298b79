package engine

import (
	"context"

	"github.com/amaumene/seenarr/internal/models"
	"github.com/sirupsen/logrus"
)

// ToggleWatchlist removes item from the watchlist when present, otherwise adds it
// to the end of the watchlist and takes it out of watched. The local change is
// committed and persisted before the remote mirror is queued; remote failures
// never surface here.
func (e *Engine) ToggleWatchlist(ctx context.Context, item models.MediaItem) (bool, error) {
	if item.ID == 0 || !item.MediaType.Valid() {
		return false, ErrInvalidItem
	}
	key := item.Key()

	e.mu.Lock()
	added := false
	var steps []models.IntentStep

	if models.IndexOf(e.state.Watchlist, key) >= 0 {
		e.state.Watchlist = models.Without(e.state.Watchlist, key)
		steps = []models.IntentStep{{Action: models.ActionWatchlistOff}}
	} else {
		entry := item.Clone()
		entry.UserRating = 0
		entry.DateAdded = e.now()

		e.state.Watched = models.Without(e.state.Watched, key)
		e.state.Watchlist = append(e.state.Watchlist, entry)
		added = true
		steps = []models.IntentStep{
			{Action: models.ActionWatchlistOn},
			{Action: models.ActionClearRating},
		}
	}

	hasSession := e.state.HasSession()
	err := e.persistLocked()
	e.mu.Unlock()

	e.logger.WithFields(logrus.Fields{
		"item":  key,
		"added": added,
	}).Debug("Watchlist toggled")

	if hasSession {
		e.enqueue(item, steps)
	}
	return added, err
}

// ToggleWatched removes item from watched when present and no rating is given.
// Otherwise it inserts or updates the watched entry with the given rating
// (DefaultRating when nil) and takes the item out of the watchlist.
func (e *Engine) ToggleWatched(ctx context.Context, item models.MediaItem, rating *int) (bool, error) {
	if item.ID == 0 || !item.MediaType.Valid() {
		return false, ErrInvalidItem
	}
	if rating != nil {
		if err := models.ValidateRating(*rating); err != nil {
			return false, err
		}
	}
	key := item.Key()

	e.mu.Lock()
	added := false
	var steps []models.IntentStep
	idx := models.IndexOf(e.state.Watched, key)

	if idx >= 0 && rating == nil {
		e.state.Watched = models.Without(e.state.Watched, key)
		steps = []models.IntentStep{{Action: models.ActionClearRating}}
	} else {
		value := models.DefaultRating
		if rating != nil {
			value = *rating
		}
		now := e.now()

		entry := item.Clone()
		entry.UserRating = value
		entry.DateAdded = now
		entry.LastChecked = now.UnixMilli()

		e.state.Watchlist = models.Without(e.state.Watchlist, key)
		if idx >= 0 {
			e.state.Watched[idx] = entry
		} else {
			e.state.Watched = append(e.state.Watched, entry)
		}
		added = true
		steps = []models.IntentStep{
			{Action: models.ActionRate, Value: models.ToRemoteRating(value)},
			{Action: models.ActionWatchlistOff},
		}
	}

	hasSession := e.state.HasSession()
	err := e.persistLocked()
	e.mu.Unlock()

	e.logger.WithFields(logrus.Fields{
		"item":  key,
		"added": added,
	}).Debug("Watched toggled")

	if hasSession {
		e.enqueue(item, steps)
	}
	return added, err
}
