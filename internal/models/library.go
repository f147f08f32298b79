package models

// RemoteSession identifies an approved remote account session
type RemoteSession struct {
	SessionID string `json:"sessionId"`
	AccountID int    `json:"accountId"`
}

// Preferences are user settings carried along with the library.
// They have no bearing on reconciliation.
type Preferences struct {
	Filter        string `json:"filter,omitempty"`
	Sort          string `json:"sort,omitempty"`
	BackupEnabled bool   `json:"backupEnabled,omitempty"`
	AutoMigrate   bool   `json:"autoMigrate"`
}

// LibraryState is the root aggregate persisted as a single snapshot
type LibraryState struct {
	APICredential string          `json:"apiCredential"`
	Session       *RemoteSession  `json:"session,omitempty"`
	Watchlist     []MediaItem     `json:"watchlist"`
	Watched       []MediaItem     `json:"watched"`
	EditedStatus  map[string]bool `json:"editedStatus"`
	Preferences   Preferences     `json:"preferences"`
}

// DefaultLibraryState returns the empty state used when nothing is stored.
func DefaultLibraryState() *LibraryState {
	return &LibraryState{
		Watchlist:    []MediaItem{},
		Watched:      []MediaItem{},
		EditedStatus: map[string]bool{},
		Preferences:  Preferences{AutoMigrate: true},
	}
}

// Normalize fills nil collections so a decoded snapshot behaves like a default one.
func (s *LibraryState) Normalize() {
	if s.Watchlist == nil {
		s.Watchlist = []MediaItem{}
	}
	if s.Watched == nil {
		s.Watched = []MediaItem{}
	}
	if s.EditedStatus == nil {
		s.EditedStatus = map[string]bool{}
	}
}

// HasSession reports whether a usable remote session is configured.
func (s *LibraryState) HasSession() bool {
	return s.Session != nil && s.Session.SessionID != "" && s.Session.AccountID != 0
}

// Clone returns a deep copy safe to hand to readers.
func (s *LibraryState) Clone() *LibraryState {
	c := &LibraryState{
		APICredential: s.APICredential,
		Watchlist:     CloneItems(s.Watchlist),
		Watched:       CloneItems(s.Watched),
		EditedStatus:  make(map[string]bool, len(s.EditedStatus)),
		Preferences:   s.Preferences,
	}
	if s.Session != nil {
		sess := *s.Session
		c.Session = &sess
	}
	for k, v := range s.EditedStatus {
		c.EditedStatus[k] = v
	}
	return c
}

// CloneItems deep-copies a list of items.
func CloneItems(items []MediaItem) []MediaItem {
	out := make([]MediaItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

// IndexOf returns the position of the item with the given key, or -1.
func IndexOf(items []MediaItem, key string) int {
	for i := range items {
		if items[i].Key() == key {
			return i
		}
	}
	return -1
}

// Without returns items minus the entry with the given key, preserving order.
func Without(items []MediaItem, key string) []MediaItem {
	out := make([]MediaItem, 0, len(items))
	for _, item := range items {
		if item.Key() != key {
			out = append(out, item)
		}
	}
	return out
}
