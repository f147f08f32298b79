package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/amaumene/seenarr/internal/engine"
	"github.com/amaumene/seenarr/internal/models"
	"github.com/sirupsen/logrus"
)

// LibraryHandler serves the library and the two toggle mutations
type LibraryHandler struct {
	library Library
	logger  *logrus.Logger
}

// NewLibraryHandler creates a new library handler
func NewLibraryHandler(library Library, logger *logrus.Logger) *LibraryHandler {
	return &LibraryHandler{library: library, logger: logger}
}

// ToggleRequest identifies the item to toggle; Rating applies to watched toggles only
type ToggleRequest struct {
	Item   models.MediaItem `json:"item"`
	Rating *int             `json:"rating,omitempty"`
}

// ToggleResponse tells whether the item ended up in the list
type ToggleResponse struct {
	Key   string `json:"key"`
	Added bool   `json:"added"`
}

// List returns the watchlist and watched lists
func (h *LibraryHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := h.library.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"watchlist": snapshot.Watchlist,
		"watched":   snapshot.Watched,
	})
}

// ToggleWatchlist adds or removes an item from the watchlist
func (h *LibraryHandler) ToggleWatchlist(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeToggle(w, r)
	if !ok {
		return
	}

	added, err := h.library.ToggleWatchlist(r.Context(), req.Item)
	h.respondToggle(w, req.Item, added, err)
}

// ToggleWatched marks an item watched with an optional rating, or unmarks it
func (h *LibraryHandler) ToggleWatched(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeToggle(w, r)
	if !ok {
		return
	}

	added, err := h.library.ToggleWatched(r.Context(), req.Item, req.Rating)
	h.respondToggle(w, req.Item, added, err)
}

func (h *LibraryHandler) decodeToggle(w http.ResponseWriter, r *http.Request) (ToggleRequest, bool) {
	var req ToggleRequest
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid payload", err)
		return req, false
	}
	return req, true
}

func (h *LibraryHandler) respondToggle(w http.ResponseWriter, item models.MediaItem, added bool, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidItem), errors.Is(err, models.ErrInvalidRating):
		writeError(w, h.logger, http.StatusBadRequest, "Invalid item", err)
	case err != nil:
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to update library", err)
	default:
		writeJSON(w, http.StatusOK, ToggleResponse{Key: item.Key(), Added: added})
	}
}
