package tmdb

import (
	"context"
	"errors"
	"time"

	"github.com/amaumene/seenarr/internal/metrics"
	"github.com/amaumene/seenarr/internal/models"
	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Breaker wraps the account and catalog calls of Client with a circuit breaker.
// 401 and 404 responses are answers, not outages, and do not trip it.
type Breaker struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[any]
	name   string
	logger *logrus.Logger
}

// NewBreaker creates a circuit-breaking view of client.
// Opens after 5 consecutive failures, half-opens after 30 seconds.
func NewBreaker(client *Client, logger *logrus.Logger) *Breaker {
	name := "tmdb-api"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	b := &Breaker{client: client, name: name, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	return b
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// IsBreakerOpen reports whether err is a rejection by an open breaker
func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (b *Breaker) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, metrics.ResultOK).Inc()
	case IsBreakerOpen(err):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, metrics.ResultRejected).Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, metrics.ResultFailed).Inc()
	}
	return result, err
}

// FetchPage retrieves one page of an account list
func (b *Breaker) FetchPage(ctx context.Context, session models.RemoteSession, list models.ListKind, mediaType models.MediaType, page int) (models.Page, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.FetchPage(ctx, session, list, mediaType, page)
	})
	if err != nil {
		return models.Page{}, err
	}
	return result.(models.Page), nil
}

// SetWatchlistFlag adds or removes the watchlist flag
func (b *Breaker) SetWatchlistFlag(ctx context.Context, session models.RemoteSession, id int, mediaType models.MediaType, flag bool) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.client.SetWatchlistFlag(ctx, session, id, mediaType, flag)
	})
	return err
}

// SetRating rates the item on the remote scale
func (b *Breaker) SetRating(ctx context.Context, session models.RemoteSession, id int, mediaType models.MediaType, value float64) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.client.SetRating(ctx, session, id, mediaType, value)
	})
	return err
}

// ClearRating deletes the account rating
func (b *Breaker) ClearRating(ctx context.Context, session models.RemoteSession, id int, mediaType models.MediaType) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.client.ClearRating(ctx, session, id, mediaType)
	})
	return err
}

// FetchItemDetails retrieves fresh catalog details
func (b *Breaker) FetchItemDetails(ctx context.Context, id int, mediaType models.MediaType) (*models.MediaItem, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.FetchItemDetails(ctx, id, mediaType)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.MediaItem), nil
}
