package storage

import (
	"encoding/json"

	"github.com/amaumene/seenarr/internal/models"
	"github.com/sirupsen/logrus"
)

// legacyEnvelope is the persisted shape written by the older medium:
// the library wrapped in a "state" object next to a schema version.
type legacyEnvelope struct {
	State   *models.LibraryState `json:"state"`
	Version int                  `json:"version"`
}

// Bridge imports a library snapshot from the legacy medium into the store
type Bridge struct {
	legacy KeyValue
	store  *Store
	logger *logrus.Logger
}

// NewBridge creates a migration bridge from legacy into store
func NewBridge(legacy KeyValue, store *Store, logger *logrus.Logger) *Bridge {
	return &Bridge{legacy: legacy, store: store, logger: logger}
}

// Run folds the legacy snapshot into state when state looks fresh (empty
// credential). It returns the resulting state and whether anything was imported.
// Once the store holds a credential the legacy medium is never read again.
func (b *Bridge) Run(state *models.LibraryState) (*models.LibraryState, bool) {
	if state.APICredential != "" {
		return state, false
	}

	data, found, err := b.legacy.Get(StateKey)
	if err != nil {
		b.logger.WithError(err).Debug("Legacy library unreadable, skipping migration")
		return state, false
	}
	if !found {
		return state, false
	}

	legacy, ok := decodeLegacy(data)
	if !ok {
		b.logger.Debug("Legacy library is corrupt, skipping migration")
		return state, false
	}

	legacy.Normalize()
	patch := StatePatch{
		APICredential: Some(legacy.APICredential),
		Session:       Some(legacy.Session),
		Watchlist:     Some(legacy.Watchlist),
		Watched:       Some(legacy.Watched),
	}
	if err := b.store.Save(patch); err != nil {
		b.logger.WithError(err).Error("Failed to persist migrated library")
		return state, false
	}

	b.logger.WithFields(logrus.Fields{
		"watchlist": len(legacy.Watchlist),
		"watched":   len(legacy.Watched),
	}).Info("Migrated library from legacy storage")

	return b.store.Snapshot(), true
}

func decodeLegacy(data []byte) (*models.LibraryState, bool) {
	var env legacyEnvelope
	if err := json.Unmarshal(data, &env); err == nil && env.State != nil {
		return env.State, true
	}

	var state models.LibraryState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false
	}
	return &state, true
}

// Hydrate loads the store and runs the bridge once on the loaded state
func Hydrate(store *Store, bridge *Bridge) *models.LibraryState {
	state := store.Load()
	if bridge == nil {
		return state
	}
	migrated, _ := bridge.Run(state)
	return migrated
}
