package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/seenarr/internal/metrics"
	"github.com/amaumene/seenarr/internal/models"
	"github.com/amaumene/seenarr/internal/services/tmdb"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// maxPages bounds pagination of a single list
const maxPages = 500

// Result describes a finished resync
type Result struct {
	Skipped    bool          `json:"skipped"`
	Watchlist  int           `json:"watchlist"`
	Watched    int           `json:"watched"`
	Readmitted int           `json:"readmitted"`
	Dropped    int           `json:"dropped"`
	Duration   time.Duration `json:"duration"`
}

// Resync replaces both local lists with the reconciled remote account lists.
// Unless force is set, a resync starting within the debounce window of the
// previous successful one is a no-op. An authorization failure tears the session
// down and returns ErrSessionExpired; other failures leave local state untouched.
func (e *Engine) Resync(ctx context.Context, force bool) (Result, error) {
	e.mu.Lock()
	if !force && e.debounce > 0 && !e.lastResync.IsZero() && e.now().Sub(e.lastResync) < e.debounce {
		e.mu.Unlock()
		metrics.ResyncTotal.WithLabelValues(metrics.ResultSkipped).Inc()
		e.logger.Debug("Resync debounced")
		return Result{Skipped: true}, nil
	}
	if !e.state.HasSession() {
		e.mu.Unlock()
		return Result{}, ErrNoSession
	}
	session := *e.state.Session
	localWatched := keySet(e.state.Watched)
	e.syncing++
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.syncing--
		e.mu.Unlock()
	}()

	start := time.Now()
	e.logger.WithField("account_id", session.AccountID).Info("Starting resync")

	remote, err := e.fetchAll(ctx, session)
	if err != nil {
		return Result{}, e.failResync(ctx, err)
	}

	fresh, err := e.fetchConflictDetails(ctx, remote.Conflicts(localWatched))
	if err != nil {
		return Result{}, e.failResync(ctx, err)
	}

	e.mu.Lock()
	if !e.state.HasSession() || e.state.Session.SessionID != session.SessionID {
		e.mu.Unlock()
		e.logger.Info("Session changed during resync, discarding result")
		metrics.ResyncTotal.WithLabelValues(metrics.ResultSkipped).Inc()
		return Result{Skipped: true}, nil
	}

	now := e.now()
	resolution := Reconcile(remote, e.state, fresh, now)
	e.state.Watchlist = resolution.Watchlist
	e.state.Watched = resolution.Watched
	e.lastResync = now
	err = e.persistLocked()
	e.mu.Unlock()

	if err != nil {
		metrics.ResyncTotal.WithLabelValues(metrics.ResultFailed).Inc()
		e.notifier.SyncFailed(err)
		return Result{}, err
	}

	result := Result{
		Watchlist:  len(resolution.Watchlist),
		Watched:    len(resolution.Watched),
		Readmitted: resolution.Readmitted,
		Dropped:    resolution.Dropped,
		Duration:   time.Since(start),
	}
	metrics.ResyncTotal.WithLabelValues(metrics.ResultOK).Inc()
	metrics.ResyncDuration.Observe(result.Duration.Seconds())

	e.logger.WithFields(logrus.Fields{
		"watchlist":  result.Watchlist,
		"watched":    result.Watched,
		"readmitted": result.Readmitted,
		"dropped":    result.Dropped,
		"duration":   result.Duration,
	}).Info("Resync completed")
	return result, nil
}

func (e *Engine) failResync(ctx context.Context, err error) error {
	if tmdb.IsUnauthorized(err) {
		metrics.ResyncTotal.WithLabelValues(metrics.ResultExpired).Inc()
		e.expire(ctx)
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}

	metrics.ResyncTotal.WithLabelValues(metrics.ResultFailed).Inc()
	e.logger.WithError(err).Error("Resync failed")
	e.notifier.SyncFailed(err)
	return fmt.Errorf("resync failed: %w", err)
}

// fetchAll retrieves the four account lists concurrently
func (e *Engine) fetchAll(ctx context.Context, session models.RemoteSession) (RemoteLists, error) {
	var watchlistMovies, watchlistShows, ratedMovies, ratedShows []models.MediaItem

	g, gctx := errgroup.WithContext(ctx)
	fetch := func(list models.ListKind, mediaType models.MediaType, dst *[]models.MediaItem) {
		g.Go(func() error {
			items, err := e.fetchList(gctx, session, list, mediaType)
			if err != nil {
				return err
			}
			*dst = items
			return nil
		})
	}

	fetch(models.ListWatchlist, models.MediaTypeMovie, &watchlistMovies)
	fetch(models.ListWatchlist, models.MediaTypeShow, &watchlistShows)
	fetch(models.ListRated, models.MediaTypeMovie, &ratedMovies)
	fetch(models.ListRated, models.MediaTypeShow, &ratedShows)

	if err := g.Wait(); err != nil {
		return RemoteLists{}, err
	}

	return RemoteLists{
		Watchlist: append(watchlistMovies, watchlistShows...),
		Rated:     append(ratedMovies, ratedShows...),
	}, nil
}

// fetchList walks every page of one list
func (e *Engine) fetchList(ctx context.Context, session models.RemoteSession, list models.ListKind, mediaType models.MediaType) ([]models.MediaItem, error) {
	var items []models.MediaItem
	for page := 1; page <= maxPages; page++ {
		p, err := e.remote.FetchPage(ctx, session, list, mediaType, page)
		if err != nil {
			return nil, err
		}
		items = append(items, p.Items...)
		if page >= p.TotalPages {
			break
		}
	}

	e.logger.WithFields(logrus.Fields{
		"list":       list,
		"media_type": mediaType,
		"count":      len(items),
	}).Debug("Fetched account list")
	return items, nil
}

// fetchConflictDetails loads fresh details for watchlist shows that are rated or watched.
// Non-authorization failures leave the show without details, which resolves it as not airing soon.
func (e *Engine) fetchConflictDetails(ctx context.Context, conflicts []models.MediaItem) (map[string]*models.MediaItem, error) {
	fresh := make(map[string]*models.MediaItem, len(conflicts))
	for _, item := range conflicts {
		details, err := e.remote.FetchItemDetails(ctx, item.ID, item.MediaType)
		if err != nil {
			if tmdb.IsUnauthorized(err) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.WithError(err).WithField("item", item.Key()).Warn("Failed to fetch details for conflicting show")
			continue
		}
		fresh[item.Key()] = details
	}
	return fresh, nil
}
