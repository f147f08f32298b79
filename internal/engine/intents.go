package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/amaumene/seenarr/internal/metrics"
	"github.com/amaumene/seenarr/internal/models"
	"github.com/amaumene/seenarr/internal/services/tmdb"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// enqueue persists the remote mirror of a committed mutation and wakes the worker
func (e *Engine) enqueue(item models.MediaItem, steps []models.IntentStep) {
	if e.intents == nil {
		return
	}

	intent := models.Intent{
		ItemID:    item.ID,
		MediaType: item.MediaType,
		Title:     item.Title,
		Steps:     steps,
		CreatedAt: e.now(),
	}
	if _, err := e.intents.Enqueue(intent); err != nil {
		e.logger.WithError(err).WithField("item", item.Key()).Error("Failed to queue remote update")
		metrics.IntentsTotal.WithLabelValues(metrics.ResultDropped).Inc()
		return
	}
	e.refreshPending()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) refreshPending() {
	if n, err := e.intents.Len(); err == nil {
		metrics.IntentsPending.Set(float64(n))
	}
}

func (e *Engine) clearIntents() {
	if e.intents == nil {
		return
	}
	if err := e.intents.Clear(); err != nil {
		e.logger.WithError(err).Error("Failed to clear pending remote updates")
		return
	}
	metrics.IntentsPending.Set(0)
}

// DrainIntents mirrors every pending intent to the remote account in FIFO order.
// Finished intents are removed whether they succeeded or were abandoned.
// Returns the number of intents that fully succeeded.
func (e *Engine) DrainIntents(ctx context.Context) (int, error) {
	if e.intents == nil {
		return 0, nil
	}

	e.drainMu.Lock()
	defer e.drainMu.Unlock()

	pending, err := e.intents.Pending()
	if err != nil {
		return 0, fmt.Errorf("failed to read pending intents: %w", err)
	}

	done := 0
	for _, intent := range pending {
		if err := ctx.Err(); err != nil {
			return done, err
		}

		session, ok := e.session()
		if !ok {
			e.logger.WithField("count", len(pending)-done).Info("No remote session, dropping pending remote updates")
			metrics.IntentsTotal.WithLabelValues(metrics.ResultDropped).Add(float64(len(pending) - done))
			e.clearIntents()
			return done, nil
		}

		err := e.runIntent(ctx, session, intent)
		switch {
		case err == nil:
			done++
			metrics.IntentsTotal.WithLabelValues(metrics.ResultOK).Inc()
		case tmdb.IsUnauthorized(err):
			metrics.IntentsTotal.WithLabelValues(metrics.ResultExpired).Inc()
			e.expire(ctx)
			return done, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			// left queued for the next drain
			return done, err
		default:
			metrics.IntentsTotal.WithLabelValues(metrics.ResultFailed).Inc()
			e.logger.WithError(err).WithFields(logrus.Fields{
				"item":  models.ItemKey(intent.MediaType, intent.ItemID),
				"title": intent.Title,
			}).Warn("Remote update failed, next resync will reconcile")
		}

		if err := e.intents.Remove(intent.Seq); err != nil {
			e.logger.WithError(err).Error("Failed to remove finished remote update")
		}
	}

	e.refreshPending()
	return done, nil
}

// runIntent executes the steps of intent in order, stopping at the first failure
func (e *Engine) runIntent(ctx context.Context, session models.RemoteSession, intent models.Intent) error {
	for _, step := range intent.Steps {
		op := func() error {
			err := e.runStep(ctx, session, intent, step)
			if err == nil {
				return nil
			}
			if tmdb.IsUnauthorized(err) || errors.Is(err, tmdb.ErrNotFound) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		if err := backoff.Retry(op, backoff.WithContext(e.retry(), ctx)); err != nil {
			return fmt.Errorf("%s: %w", step.Action, err)
		}
	}
	return nil
}

func (e *Engine) runStep(ctx context.Context, session models.RemoteSession, intent models.Intent, step models.IntentStep) error {
	switch step.Action {
	case models.ActionWatchlistOn:
		return e.remote.SetWatchlistFlag(ctx, session, intent.ItemID, intent.MediaType, true)
	case models.ActionWatchlistOff:
		return e.remote.SetWatchlistFlag(ctx, session, intent.ItemID, intent.MediaType, false)
	case models.ActionRate:
		return e.remote.SetRating(ctx, session, intent.ItemID, intent.MediaType, step.Value)
	case models.ActionClearRating:
		return e.remote.ClearRating(ctx, session, intent.ItemID, intent.MediaType)
	default:
		return backoff.Permanent(fmt.Errorf("unknown intent action %q", step.Action))
	}
}

// RunIntentWorker drains the queue at start and whenever a mutation queues an intent,
// until ctx is done.
func (e *Engine) RunIntentWorker(ctx context.Context) {
	e.logger.Info("Remote update worker started")
	defer e.logger.Info("Remote update worker stopped")

	for {
		if _, err := e.DrainIntents(ctx); err != nil && ctx.Err() == nil {
			e.logger.WithError(err).Warn("Draining remote updates failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-e.wake:
		}
	}
}
