package backup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amaumene/seenarr/internal/models"
	"github.com/amaumene/seenarr/internal/services/docstore"
	"github.com/amaumene/seenarr/internal/utils"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exportTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func testState() *models.LibraryState {
	state := models.DefaultLibraryState()
	state.Watchlist = []models.MediaItem{
		{ID: 2, MediaType: models.MediaTypeShow, Title: "severance", ReleaseDate: "2022-02-18"},
		{ID: 1, MediaType: models.MediaTypeMovie, Title: "Alien", ReleaseDate: "1979-05-25"},
	}
	state.Watched = []models.MediaItem{
		{ID: 3, MediaType: models.MediaTypeMovie, Title: "Élite Squad"},
	}
	return state
}

func TestFormat(t *testing.T) {
	want := "seenarr backup 2025-03-10T12:00:00Z\n" +
		"\nWATCHLIST (2)\n" +
		"- Alien (1979) [movie]\n" +
		"- severance (2022) [show]\n" +
		"\nLIBRARY (1)\n" +
		"- Élite Squad [movie]\n"

	assert.Equal(t, want, Format(testState(), exportTime))
}

func TestFormatEmptyLists(t *testing.T) {
	out := Format(models.DefaultLibraryState(), exportTime)
	assert.Contains(t, out, "WATCHLIST (0)")
	assert.Contains(t, out, "LIBRARY (0)")
}

func TestFormatCollation(t *testing.T) {
	items := []models.MediaItem{
		{ID: 1, MediaType: models.MediaTypeMovie, Title: "Zodiac"},
		{ID: 2, MediaType: models.MediaTypeMovie},
		{ID: 3, MediaType: models.MediaTypeMovie, Title: "Éclair"},
		{ID: 4, MediaType: models.MediaTypeMovie, Title: "eden"},
	}

	var titles []string
	for _, item := range sortedByTitle(items) {
		titles = append(titles, item.Title)
	}
	assert.Equal(t, []string{"Éclair", "eden", "Zodiac", ""}, titles)
}

type fakeDocs struct {
	mu      sync.Mutex
	writes  map[string]string
	calls   int
	failFor int
	err     error
}

func (f *fakeDocs) OverwriteFile(ctx context.Context, name, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failFor {
		return f.err
	}
	if f.writes == nil {
		f.writes = map[string]string{}
	}
	f.writes[name] = content
	return nil
}

type staticSource struct{ state *models.LibraryState }

func (s staticSource) Snapshot() *models.LibraryState { return s.state.Clone() }

type notifierSpy struct {
	backups []error
}

func (n *notifierSpy) SessionExpired() {}

func (n *notifierSpy) SyncFailed(err error) {}

func (n *notifierSpy) BackupFinished(err error) {
	n.backups = append(n.backups, err)
}

func newTestExporter(docs *fakeDocs, spy *notifierSpy) *Exporter {
	x := NewExporter(staticSource{testState()}, docs, "backup.txt", spy, utils.NewNopLogger())
	x.now = func() time.Time { return exportTime }
	x.retry = func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2) }
	return x
}

func TestExportWritesDocument(t *testing.T) {
	docs := &fakeDocs{}
	spy := &notifierSpy{}

	require.NoError(t, newTestExporter(docs, spy).Export(context.Background()))
	assert.Equal(t, Format(testState(), exportTime), docs.writes["backup.txt"])
	assert.Equal(t, []error{nil}, spy.backups)
}

func TestExportRetriesTransientFailures(t *testing.T) {
	docs := &fakeDocs{failFor: 2, err: docstore.ErrAPIError}
	spy := &notifierSpy{}

	require.NoError(t, newTestExporter(docs, spy).Export(context.Background()))
	assert.Equal(t, 3, docs.calls)
}

func TestExportReportsPermanentFailure(t *testing.T) {
	docs := &fakeDocs{failFor: 10, err: docstore.ErrUnauthorized}
	spy := &notifierSpy{}

	err := newTestExporter(docs, spy).Export(context.Background())
	assert.ErrorIs(t, err, docstore.ErrUnauthorized)
	assert.Equal(t, 1, docs.calls)
	require.Len(t, spy.backups, 1)
	assert.Error(t, spy.backups[0])
}
