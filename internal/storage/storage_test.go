package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/amaumene/seenarr/internal/models"
	"github.com/amaumene/seenarr/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

// countingKV is an in-memory KeyValue that records reads
type countingKV struct {
	data map[string][]byte
	gets int
	err  error
}

func newCountingKV() *countingKV {
	return &countingKV{data: map[string][]byte{}}
}

func (c *countingKV) Get(key string) ([]byte, bool, error) {
	c.gets++
	if c.err != nil {
		return nil, false, c.err
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *countingKV) Set(key string, value []byte) error {
	c.data[key] = value
	return nil
}

func (c *countingKV) Remove(key string) error {
	delete(c.data, key)
	return nil
}

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStoreLoadEmpty(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db.KV(), utils.NewNopLogger())

	state := store.Load()
	assert.Empty(t, state.APICredential)
	assert.NotNil(t, state.Watchlist)
	assert.NotNil(t, state.Watched)
	assert.NotNil(t, state.EditedStatus)
}

func TestStoreLoadCorrupt(t *testing.T) {
	kv := newCountingKV()
	kv.data[StateKey] = []byte("{not json")
	store := NewStore(kv, utils.NewNopLogger())

	state := store.Load()
	assert.Empty(t, state.Watchlist)
	assert.Empty(t, state.APICredential)
}

func TestStoreLoadReadError(t *testing.T) {
	kv := newCountingKV()
	kv.err = errors.New("disk gone")
	store := NewStore(kv, utils.NewNopLogger())

	assert.NotPanics(t, func() { store.Load() })
}

func TestStoreSaveMergesShallowly(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db.KV(), utils.NewNopLogger())
	store.Load()

	require.NoError(t, store.Save(StatePatch{APICredential: Some("key")}))
	require.NoError(t, store.Save(StatePatch{
		Watchlist: Some([]models.MediaItem{{ID: 1, MediaType: models.MediaTypeMovie, Title: "Heat"}}),
	}))

	reloaded := NewStore(db.KV(), utils.NewNopLogger()).Load()
	assert.Equal(t, "key", reloaded.APICredential)
	require.Len(t, reloaded.Watchlist, 1)
	assert.Equal(t, "Heat", reloaded.Watchlist[0].Title)
}

func TestStoreSaveClearsSession(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db.KV(), utils.NewNopLogger())
	store.Load()

	require.NoError(t, store.Save(StatePatch{Session: Some(&models.RemoteSession{SessionID: "s", AccountID: 3})}))
	require.NoError(t, store.Save(StatePatch{Session: Some[*models.RemoteSession](nil)}))

	assert.Nil(t, store.Load().Session)
}

func TestStoreRemove(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db.KV(), utils.NewNopLogger())
	require.NoError(t, store.SaveState(&models.LibraryState{APICredential: "key"}))
	require.NoError(t, store.Remove())

	assert.Empty(t, store.Load().APICredential)
}

func TestBridgeSkipsPopulatedStore(t *testing.T) {
	legacy := newCountingKV()
	legacy.data[StateKey] = []byte(`{"apiCredential":"old"}`)
	store := NewStore(newCountingKV(), utils.NewNopLogger())
	bridge := NewBridge(legacy, store, utils.NewNopLogger())

	state := models.DefaultLibraryState()
	state.APICredential = "current"

	out, migrated := bridge.Run(state)
	assert.False(t, migrated)
	assert.Equal(t, "current", out.APICredential)
	assert.Zero(t, legacy.gets, "legacy medium must not be read")
}

func TestHydrateNeverReadsLegacyWhenCredentialStored(t *testing.T) {
	primary := newCountingKV()
	primary.data[StateKey] = []byte(`{"apiCredential":"current","watchlist":[],"watched":[]}`)
	legacy := newCountingKV()
	store := NewStore(primary, utils.NewNopLogger())

	state := Hydrate(store, NewBridge(legacy, store, utils.NewNopLogger()))
	assert.Equal(t, "current", state.APICredential)
	assert.Zero(t, legacy.gets)
}

func TestBridgeImportsLegacyEnvelope(t *testing.T) {
	legacy := NewFileKV(t.TempDir())
	require.NoError(t, legacy.Set(StateKey, []byte(`{
		"state": {
			"apiCredential": "old-key",
			"session": {"sessionId": "sess", "accountId": 9},
			"watchlist": [{"id": 1, "mediaType": "movie", "title": "Alien"}],
			"watched": [{"id": 2, "mediaType": "show", "title": "Dark"}]
		},
		"version": 0
	}`)))

	db := openTestDB(t)
	store := NewStore(db.KV(), utils.NewNopLogger())
	state := Hydrate(store, NewBridge(legacy, store, utils.NewNopLogger()))

	assert.Equal(t, "old-key", state.APICredential)
	require.NotNil(t, state.Session)
	assert.Equal(t, 9, state.Session.AccountID)
	require.Len(t, state.Watchlist, 1)
	require.Len(t, state.Watched, 1)

	// persisted: a second hydration sees a credential and leaves legacy alone
	second := NewStore(db.KV(), utils.NewNopLogger()).Load()
	assert.Equal(t, "old-key", second.APICredential)
}

func TestBridgeImportsBareSnapshot(t *testing.T) {
	legacy := newCountingKV()
	legacy.data[StateKey] = []byte(`{"apiCredential":"bare","watchlist":[{"id":3,"mediaType":"movie"}]}`)
	store := NewStore(newCountingKV(), utils.NewNopLogger())
	store.Load()

	out, migrated := NewBridge(legacy, store, utils.NewNopLogger()).Run(models.DefaultLibraryState())
	assert.True(t, migrated)
	assert.Equal(t, "bare", out.APICredential)
	assert.Len(t, out.Watchlist, 1)
	assert.NotNil(t, out.Watched)
}

func TestBridgeCorruptLegacyIsNoop(t *testing.T) {
	legacy := newCountingKV()
	legacy.data[StateKey] = []byte("][")
	store := NewStore(newCountingKV(), utils.NewNopLogger())

	out, migrated := NewBridge(legacy, store, utils.NewNopLogger()).Run(models.DefaultLibraryState())
	assert.False(t, migrated)
	assert.Empty(t, out.APICredential)
}

func TestIntentQueueFIFO(t *testing.T) {
	q := openTestDB(t).Intents()

	for i := 1; i <= 3; i++ {
		_, err := q.Enqueue(models.Intent{
			ItemID:    i,
			MediaType: models.MediaTypeMovie,
			Steps:     []models.IntentStep{{Action: models.ActionWatchlistOn}},
			CreatedAt: time.Now(),
		})
		require.NoError(t, err)
	}

	pending, err := q.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, 1, pending[0].ItemID)
	assert.Equal(t, 3, pending[2].ItemID)

	require.NoError(t, q.Remove(pending[0].Seq))
	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, q.Clear())
	n, err = q.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIntentQueueDropsUndecodableEntries(t *testing.T) {
	db := openTestDB(t)
	q := db.Intents()

	_, err := q.Enqueue(models.Intent{ItemID: 1, MediaType: models.MediaTypeShow})
	require.NoError(t, err)
	require.NoError(t, db.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(intentBucket).Put(seqKey(99), []byte("{not json"))
	}))

	n, err := q.Len()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	pending, err := q.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].ItemID)

	n, err = q.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "undecodable entry is removed")
}

func TestFileKVMissingKey(t *testing.T) {
	kv := NewFileKV(filepath.Join(t.TempDir(), "nested"))
	_, found, err := kv.Get("absent")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, kv.Remove("absent"))
}
