package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/amaumene/seenarr/internal/models"
	"github.com/sirupsen/logrus"
)

// StateKey is the fixed key the library snapshot lives under in every medium
const StateKey = "library"

// KeyValue is a persistent medium holding opaque blobs by key
type KeyValue interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Remove(key string) error
}

// Field is an optional value in a StatePatch
type Field[T any] struct {
	Value T
	Set   bool
}

// Some marks a patch field as present
func Some[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

// StatePatch lists the top-level fields to overwrite on the stored snapshot
type StatePatch struct {
	APICredential Field[string]
	Session       Field[*models.RemoteSession]
	Watchlist     Field[[]models.MediaItem]
	Watched       Field[[]models.MediaItem]
	EditedStatus  Field[map[string]bool]
	Preferences   Field[models.Preferences]
}

// FullPatch builds a patch that replaces every field with those of state
func FullPatch(state *models.LibraryState) StatePatch {
	return StatePatch{
		APICredential: Some(state.APICredential),
		Session:       Some(state.Session),
		Watchlist:     Some(state.Watchlist),
		Watched:       Some(state.Watched),
		EditedStatus:  Some(state.EditedStatus),
		Preferences:   Some(state.Preferences),
	}
}

func (p StatePatch) apply(s *models.LibraryState) {
	if p.APICredential.Set {
		s.APICredential = p.APICredential.Value
	}
	if p.Session.Set {
		s.Session = p.Session.Value
	}
	if p.Watchlist.Set {
		s.Watchlist = p.Watchlist.Value
	}
	if p.Watched.Set {
		s.Watched = p.Watched.Value
	}
	if p.EditedStatus.Set {
		s.EditedStatus = p.EditedStatus.Value
	}
	if p.Preferences.Set {
		s.Preferences = p.Preferences.Value
	}
	s.Normalize()
}

// Store persists the library snapshot on a KeyValue medium.
// Saves merge shallowly onto the last loaded or saved snapshot; last write wins.
type Store struct {
	kv     KeyValue
	logger *logrus.Logger

	mu   sync.Mutex
	last *models.LibraryState
}

// NewStore creates a snapshot store on kv
func NewStore(kv KeyValue, logger *logrus.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// Load reads the snapshot. Missing or corrupt data yields the default state;
// it never fails.
func (s *Store) Load() *models.LibraryState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.read()
	s.last = state.Clone()
	return state
}

func (s *Store) read() *models.LibraryState {
	data, found, err := s.kv.Get(StateKey)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read stored library, starting empty")
		return models.DefaultLibraryState()
	}
	if !found {
		return models.DefaultLibraryState()
	}

	state := models.DefaultLibraryState()
	if err := json.Unmarshal(data, state); err != nil {
		s.logger.WithError(err).Warn("Stored library is corrupt, starting empty")
		return models.DefaultLibraryState()
	}
	state.Normalize()
	return state
}

// Save applies patch to the last snapshot and writes the result
func (s *Store) Save(patch StatePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := s.last
	if base == nil {
		base = s.read()
	}
	merged := base.Clone()
	patch.apply(merged)

	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to encode library: %w", err)
	}
	if err := s.kv.Set(StateKey, data); err != nil {
		return fmt.Errorf("failed to write library: %w", err)
	}

	s.last = merged
	return nil
}

// SaveState writes the whole state
func (s *Store) SaveState(state *models.LibraryState) error {
	return s.Save(FullPatch(state))
}

// Snapshot returns a copy of the last written or loaded state
func (s *Store) Snapshot() *models.LibraryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return models.DefaultLibraryState()
	}
	return s.last.Clone()
}

// Remove deletes the stored snapshot
func (s *Store) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Remove(StateKey); err != nil {
		return fmt.Errorf("failed to remove library: %w", err)
	}
	s.last = nil
	return nil
}
