package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/amaumene/seenarr/internal/models"
	"github.com/amaumene/seenarr/internal/services/tmdb"
	"github.com/amaumene/seenarr/internal/storage"
	"github.com/amaumene/seenarr/internal/utils"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

var testSession = models.RemoteSession{SessionID: "sess", AccountID: 7}

// fakeRemote is an in-memory RemoteAccount recording every mutating call
type fakeRemote struct {
	mu       sync.Mutex
	pageSize int
	lists    map[string][]models.MediaItem
	details  map[string]*models.MediaItem
	calls    []string
	pages    int

	unauthorized   bool
	listErr        error
	detailsErr     error
	watchlistErr   error
	clearRatingErr error
	compensateErr  error

	// onDetails runs after a details lookup, outside the fake's lock
	onDetails func(key string)
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		pageSize: 2,
		lists:    map[string][]models.MediaItem{},
		details:  map[string]*models.MediaItem{},
	}
}

func listKey(list models.ListKind, mediaType models.MediaType) string {
	return fmt.Sprintf("%s/%s", list, mediaType)
}

func (f *fakeRemote) setList(list models.ListKind, mediaType models.MediaType, items ...models.MediaItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[listKey(list, mediaType)] = items
}

func (f *fakeRemote) setDetails(item *models.MediaItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details[item.Key()] = item
}

func (f *fakeRemote) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) authErr() error {
	return fmt.Errorf("request failed: %w", tmdb.ErrUnauthorized)
}

func (f *fakeRemote) FetchPage(ctx context.Context, session models.RemoteSession, list models.ListKind, mediaType models.MediaType, page int) (models.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages++
	if f.unauthorized {
		return models.Page{}, f.authErr()
	}
	if f.listErr != nil {
		return models.Page{}, f.listErr
	}

	items := f.lists[listKey(list, mediaType)]
	total := (len(items) + f.pageSize - 1) / f.pageSize
	if total == 0 {
		total = 1
	}
	start := (page - 1) * f.pageSize
	end := start + f.pageSize
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}
	return models.Page{Items: models.CloneItems(items[start:end]), Page: page, TotalPages: total}, nil
}

func (f *fakeRemote) SetWatchlistFlag(ctx context.Context, session models.RemoteSession, id int, mediaType models.MediaType, flag bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("watchlist=%t %s", flag, models.ItemKey(mediaType, id)))
	if f.unauthorized {
		return f.authErr()
	}
	if !flag && f.compensateErr != nil {
		return f.compensateErr
	}
	return f.watchlistErr
}

func (f *fakeRemote) SetRating(ctx context.Context, session models.RemoteSession, id int, mediaType models.MediaType, value float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("rate=%.1f %s", value, models.ItemKey(mediaType, id)))
	if f.unauthorized {
		return f.authErr()
	}
	return nil
}

func (f *fakeRemote) ClearRating(ctx context.Context, session models.RemoteSession, id int, mediaType models.MediaType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("clear %s", models.ItemKey(mediaType, id)))
	if f.unauthorized {
		return f.authErr()
	}
	return f.clearRatingErr
}

func (f *fakeRemote) FetchItemDetails(ctx context.Context, id int, mediaType models.MediaType) (*models.MediaItem, error) {
	item, err := f.lookupDetails(id, mediaType)
	if f.onDetails != nil {
		f.onDetails(models.ItemKey(mediaType, id))
	}
	return item, err
}

func (f *fakeRemote) lookupDetails(id int, mediaType models.MediaType) (*models.MediaItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("details %s", models.ItemKey(mediaType, id)))
	if f.unauthorized {
		return nil, f.authErr()
	}
	if f.detailsErr != nil {
		return nil, f.detailsErr
	}
	item, ok := f.details[models.ItemKey(mediaType, id)]
	if !ok {
		return nil, fmt.Errorf("details: %w", tmdb.ErrNotFound)
	}
	c := item.Clone()
	return &c, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	expired int
	failed  []error
	backups []error
}

func (n *recordingNotifier) SessionExpired() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired++
}

func (n *recordingNotifier) SyncFailed(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, err)
}

func (n *recordingNotifier) BackupFinished(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.backups = append(n.backups, err)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	engine   *Engine
	remote   *fakeRemote
	store    *storage.Store
	queue    *storage.IntentQueue
	notifier *recordingNotifier
	clock    *testClock
}

// newHarness builds an engine over a real bbolt store; initial may be nil
func newHarness(t *testing.T, initial *models.LibraryState) *harness {
	t.Helper()

	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := utils.NewNopLogger()
	h := &harness{
		remote:   newFakeRemote(),
		store:    storage.NewStore(db.KV(), logger),
		queue:    db.Intents(),
		notifier: &recordingNotifier{},
		clock:    &testClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)},
	}

	if initial == nil {
		initial = models.DefaultLibraryState()
	}
	h.engine = NewEngine(initial, Config{
		Store:    h.store,
		Remote:   h.remote,
		Intents:  h.queue,
		Notifier: h.notifier,
		Logger:   logger,
		Clock:    h.clock.Now,
		RetryPolicy: func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
		},
	})
	return h
}

func withSession(state *models.LibraryState) *models.LibraryState {
	s := testSession
	state.Session = &s
	return state
}

func movie(id int, title string) models.MediaItem {
	return models.MediaItem{ID: id, MediaType: models.MediaTypeMovie, Title: title}
}

func show(id int, title string) models.MediaItem {
	return models.MediaItem{ID: id, MediaType: models.MediaTypeShow, Title: title}
}

func rated(item models.MediaItem, rating int) models.MediaItem {
	item.UserRating = rating
	return item
}

func airing(item models.MediaItem, airDate string) *models.MediaItem {
	item.Status = "Returning Series"
	item.NextEpisode = &models.NextEpisode{AirDate: airDate, SeasonNumber: 2, EpisodeNumber: 1}
	return &item
}

func keys(items []models.MediaItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Key()
	}
	return out
}
