package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/seenarr/internal/metrics"
	"github.com/amaumene/seenarr/internal/models"
	"github.com/amaumene/seenarr/internal/services/tmdb"
	"github.com/sirupsen/logrus"
)

// SweepResult counts what a sweep did with each eligible show
type SweepResult struct {
	Checked  int `json:"checked"`
	Migrated int `json:"migrated"`
	Stamped  int `json:"stamped"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Sweep checks watched shows that may have new episodes and moves those airing
// within the window back to the watchlist. Shows are processed one at a time.
// The remote saga and every local commit re-check that the show is still watched.
func (e *Engine) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	e.mu.Lock()
	if !e.state.Preferences.AutoMigrate {
		e.mu.Unlock()
		e.logger.Debug("Automatic migration disabled, skipping sweep")
		return result, nil
	}
	now := e.now()
	var candidates []models.MediaItem
	for _, item := range e.state.Watched {
		if SweepEligible(item, now) {
			candidates = append(candidates, item.Clone())
		}
	}
	e.mu.Unlock()

	if len(candidates) == 0 {
		return result, nil
	}
	e.logger.WithField("count", len(candidates)).Info("Checking watched shows for upcoming episodes")

	for _, item := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++
		log := e.logger.WithFields(logrus.Fields{"item": item.Key(), "title": item.Title})

		fresh, err := e.remote.FetchItemDetails(ctx, item.ID, item.MediaType)
		if err != nil {
			if tmdb.IsUnauthorized(err) {
				metrics.SweepItems.WithLabelValues(metrics.ResultExpired).Inc()
				e.expire(ctx)
				return result, fmt.Errorf("%w: %v", ErrSessionExpired, err)
			}
			log.WithError(err).Warn("Failed to fetch show details")
			metrics.SweepItems.WithLabelValues(metrics.ResultFailed).Inc()
			result.Failed++
			continue
		}

		now := e.now()
		if !IsAiringSoon(nextAirDate(fresh), now) {
			stamped, err := e.commitChecked(item.Key(), fresh, now)
			if err != nil {
				return result, err
			}
			if stamped {
				result.Stamped++
				metrics.SweepItems.WithLabelValues("not_airing").Inc()
			} else {
				result.Skipped++
				metrics.SweepItems.WithLabelValues(metrics.ResultSkipped).Inc()
			}
			continue
		}

		if !e.stillWatched(item.Key()) {
			log.Debug("Show left watched during the check, skipping")
			metrics.SweepItems.WithLabelValues(metrics.ResultSkipped).Inc()
			result.Skipped++
			continue
		}

		if session, ok := e.session(); ok {
			if err := e.migrateRemote(ctx, session, item); err != nil {
				if serr := e.stampChecked(item.Key(), now); serr != nil {
					return result, serr
				}
				if tmdb.IsUnauthorized(err) {
					metrics.SweepItems.WithLabelValues(metrics.ResultExpired).Inc()
					e.expire(ctx)
					return result, fmt.Errorf("%w: %v", ErrSessionExpired, err)
				}
				log.WithError(err).Warn("Failed to move show to watchlist remotely")
				metrics.SweepItems.WithLabelValues(metrics.ResultFailed).Inc()
				result.Failed++
				continue
			}
		}

		moved, err := e.commitMigration(item.Key(), fresh, now)
		if err != nil {
			return result, err
		}
		if moved {
			log.WithField("air_date", nextAirDate(fresh)).Info("Show moved back to watchlist")
			metrics.SweepItems.WithLabelValues("migrated").Inc()
			result.Migrated++
		} else {
			metrics.SweepItems.WithLabelValues(metrics.ResultSkipped).Inc()
			result.Skipped++
		}
	}

	e.logger.WithFields(logrus.Fields{
		"checked":  result.Checked,
		"migrated": result.Migrated,
		"failed":   result.Failed,
	}).Info("Sweep completed")
	return result, nil
}

// migrateRemote runs the two-step saga (watchlist on, clear rating). When clearing
// the rating fails the watchlist flag is taken back off. A failed compensation is
// logged and left for the next resync.
func (e *Engine) migrateRemote(ctx context.Context, session models.RemoteSession, item models.MediaItem) error {
	if err := e.remote.SetWatchlistFlag(ctx, session, item.ID, item.MediaType, true); err != nil {
		return fmt.Errorf("failed to add to watchlist: %w", err)
	}

	if err := e.remote.ClearRating(ctx, session, item.ID, item.MediaType); err != nil {
		if cerr := e.remote.SetWatchlistFlag(ctx, session, item.ID, item.MediaType, false); cerr != nil {
			metrics.SagaCompensations.WithLabelValues(metrics.ResultFailed).Inc()
			e.logger.WithError(cerr).WithField("item", item.Key()).
				Error("Compensation failed, remote watchlist left inconsistent until next resync")
		} else {
			metrics.SagaCompensations.WithLabelValues(metrics.ResultOK).Inc()
		}
		return fmt.Errorf("failed to clear rating: %w", err)
	}
	return nil
}

func (e *Engine) stillWatched(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.IndexOf(e.state.Watched, key) >= 0
}

// commitChecked records a not-airing-soon check. Returns false when the show left watched meanwhile.
func (e *Engine) commitChecked(key string, fresh *models.MediaItem, now time.Time) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := models.IndexOf(e.state.Watched, key)
	if idx < 0 {
		return false, nil
	}
	entry := &e.state.Watched[idx]
	entry.Status = firstNonEmpty(fresh.Status, entry.Status)
	entry.NextEpisode = nil
	entry.LastChecked = now.UnixMilli()
	if err := e.persistLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// stampChecked only records the check time, keeping the show watched
func (e *Engine) stampChecked(key string, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := models.IndexOf(e.state.Watched, key)
	if idx < 0 {
		return nil
	}
	e.state.Watched[idx].LastChecked = now.UnixMilli()
	return e.persistLocked()
}

// commitMigration moves a still-watched show to the end of the watchlist with the
// fresh catalog data and a cleared rating. Returns false when the show left watched meanwhile.
func (e *Engine) commitMigration(key string, fresh *models.MediaItem, now time.Time) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := models.IndexOf(e.state.Watched, key)
	if idx < 0 {
		return false, nil
	}
	existing := e.state.Watched[idx]

	moved := MergeItem(*fresh, &existing, now)
	moved.ID = existing.ID
	moved.MediaType = existing.MediaType
	moved.UserRating = 0
	moved.Status = firstNonEmpty(fresh.Status, existing.Status)
	moved.NextEpisode = nil
	if fresh.NextEpisode != nil {
		ep := *fresh.NextEpisode
		moved.NextEpisode = &ep
	}
	moved.DateAdded = now
	moved.LastChecked = now.UnixMilli()

	e.state.Watched = models.Without(e.state.Watched, key)
	e.state.Watchlist = append(models.Without(e.state.Watchlist, key), moved)
	if err := e.persistLocked(); err != nil {
		return false, err
	}
	return true, nil
}
