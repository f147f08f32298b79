// Package engine owns the in-memory library and reconciles it with the remote account.
//
// Every state transition happens entirely under the engine lock and is written
// through to the store before any remote call is made. Remote calls run outside
// the lock; results are committed only after re-checking that the affected items
// are still where the call expected them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amaumene/seenarr/internal/metrics"
	"github.com/amaumene/seenarr/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoSession      = errors.New("no remote session configured")
	ErrSessionExpired = errors.New("remote session expired")
	ErrInvalidItem    = errors.New("item needs an id and a media type of movie or show")
)

// DefaultDebounce is the minimum gap between two unforced resyncs
const DefaultDebounce = 30 * time.Second

// RemoteAccount is the remote account and catalog API the engine mirrors to
type RemoteAccount interface {
	FetchPage(ctx context.Context, session models.RemoteSession, list models.ListKind, mediaType models.MediaType, page int) (models.Page, error)
	SetWatchlistFlag(ctx context.Context, session models.RemoteSession, id int, mediaType models.MediaType, flag bool) error
	SetRating(ctx context.Context, session models.RemoteSession, id int, mediaType models.MediaType, value float64) error
	ClearRating(ctx context.Context, session models.RemoteSession, id int, mediaType models.MediaType) error
	FetchItemDetails(ctx context.Context, id int, mediaType models.MediaType) (*models.MediaItem, error)
}

// StateStore persists the whole library snapshot
type StateStore interface {
	SaveState(state *models.LibraryState) error
}

// IntentStore queues remote intents until they are mirrored
type IntentStore interface {
	Enqueue(intent models.Intent) (uint64, error)
	Pending() ([]models.Intent, error)
	Remove(seq uint64) error
	Clear() error
	Len() (int, error)
}

// Config carries the engine dependencies
type Config struct {
	Store    StateStore
	Remote   RemoteAccount
	Intents  IntentStore
	Notifier Notifier
	Logger   *logrus.Logger

	// Clock defaults to time.Now
	Clock func() time.Time
	// DebounceWindow defaults to DefaultDebounce; negative disables debouncing
	DebounceWindow time.Duration
	// RetryPolicy builds the backoff used for transient intent failures
	RetryPolicy func() backoff.BackOff
}

// Status is a point-in-time summary of the engine
type Status struct {
	Watchlist      int       `json:"watchlist"`
	Watched        int       `json:"watched"`
	Syncing        bool      `json:"syncing"`
	HasSession     bool      `json:"hasSession"`
	LastResync     time.Time `json:"lastResync"`
	PendingIntents int       `json:"pendingIntents"`
}

// Engine is the single owner of the library state
type Engine struct {
	store    StateStore
	remote   RemoteAccount
	intents  IntentStore
	notifier Notifier
	logger   *logrus.Logger
	now      func() time.Time
	debounce time.Duration
	retry    func() backoff.BackOff

	mu         sync.Mutex
	state      *models.LibraryState
	syncing    int
	lastResync time.Time

	drainMu sync.Mutex
	wake    chan struct{}
}

// NewEngine creates an engine owning initial
func NewEngine(initial *models.LibraryState, cfg Config) *Engine {
	if initial == nil {
		initial = models.DefaultLibraryState()
	}
	initial.Normalize()

	e := &Engine{
		store:    cfg.Store,
		remote:   cfg.Remote,
		intents:  cfg.Intents,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		now:      cfg.Clock,
		debounce: cfg.DebounceWindow,
		retry:    cfg.RetryPolicy,
		state:    initial,
		wake:     make(chan struct{}, 1),
	}

	if e.logger == nil {
		e.logger = logrus.StandardLogger()
	}
	if e.notifier == nil {
		e.notifier = NewLogNotifier(e.logger)
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.debounce == 0 {
		e.debounce = DefaultDebounce
	}
	if e.retry == nil {
		e.retry = defaultRetryPolicy
	}

	e.updateGauges()
	return e
}

func defaultRetryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithMaxRetries(b, 3)
}

// Snapshot returns a deep copy of the current state
func (e *Engine) Snapshot() *models.LibraryState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Status summarises the engine for the host application
func (e *Engine) Status() Status {
	e.mu.Lock()
	st := Status{
		Watchlist:  len(e.state.Watchlist),
		Watched:    len(e.state.Watched),
		Syncing:    e.syncing > 0,
		HasSession: e.state.HasSession(),
		LastResync: e.lastResync,
	}
	e.mu.Unlock()

	if e.intents != nil {
		if n, err := e.intents.Len(); err == nil {
			st.PendingIntents = n
		}
	}
	return st
}

// persistLocked writes the state through to the store. Caller holds e.mu.
func (e *Engine) persistLocked() error {
	e.updateGaugesLocked()
	if e.store == nil {
		return nil
	}
	if err := e.store.SaveState(e.state); err != nil {
		e.logger.WithError(err).Error("Failed to persist library")
		return fmt.Errorf("failed to persist library: %w", err)
	}
	return nil
}

func (e *Engine) updateGauges() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateGaugesLocked()
}

func (e *Engine) updateGaugesLocked() {
	metrics.LibraryItems.WithLabelValues(string(models.ListWatchlist)).Set(float64(len(e.state.Watchlist)))
	metrics.LibraryItems.WithLabelValues("watched").Set(float64(len(e.state.Watched)))
}

// session returns a copy of the configured session, if any
func (e *Engine) session() (models.RemoteSession, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.HasSession() {
		return models.RemoteSession{}, false
	}
	return *e.state.Session, true
}

// Login stores an approved remote session
func (e *Engine) Login(ctx context.Context, session models.RemoteSession) error {
	if session.SessionID == "" || session.AccountID == 0 {
		return fmt.Errorf("%w: session id and account id are required", ErrNoSession)
	}

	e.mu.Lock()
	e.state.Session = &session
	err := e.persistLocked()
	e.mu.Unlock()

	e.logger.WithField("account_id", session.AccountID).Info("Remote session stored")
	return err
}

// ExpireSession tears down the remote session after an authorization failure.
// Local lists are kept; pending intents are dropped since they can no longer be sent.
func (e *Engine) ExpireSession(ctx context.Context) error {
	e.mu.Lock()
	hadSession := e.state.Session != nil
	e.state.Session = nil
	err := e.persistLocked()
	e.mu.Unlock()

	e.clearIntents()
	if hadSession {
		e.logger.Warn("Remote session expired, signed out")
		e.notifier.SessionExpired()
	}
	return err
}

// expire tears the session down after an authorization failure on a background path
func (e *Engine) expire(ctx context.Context) {
	if err := e.ExpireSession(ctx); err != nil {
		e.logger.WithError(err).Error("Failed to persist expired session")
	}
}

// Logout clears the session and both lists. Credential and preferences survive.
func (e *Engine) Logout(ctx context.Context) error {
	e.mu.Lock()
	e.state.Session = nil
	e.state.Watchlist = []models.MediaItem{}
	e.state.Watched = []models.MediaItem{}
	err := e.persistLocked()
	e.mu.Unlock()

	e.clearIntents()
	e.logger.Info("Logged out, library cleared")
	return err
}

// SetCredential stores the catalog API credential
func (e *Engine) SetCredential(credential string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.APICredential = credential
	return e.persistLocked()
}

// SetPreferences replaces the user preferences
func (e *Engine) SetPreferences(prefs models.Preferences) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Preferences = prefs
	return e.persistLocked()
}

// SetEditedStatus records the externally computed availability flag of an item
func (e *Engine) SetEditedStatus(key string, edited bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.EditedStatus[key] = edited
	return e.persistLocked()
}
