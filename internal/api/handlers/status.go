package handlers

import (
	"net/http"

	"github.com/amaumene/seenarr/internal/engine"
	"github.com/amaumene/seenarr/internal/models"
	"github.com/sirupsen/logrus"
)

// StatusHandler reports engine state
type StatusHandler struct {
	library Library
	logger  *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(library Library, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		library: library,
		logger:  logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	engine.Status
	ShowsWatched  int `json:"showsWatched"`
	MoviesWatched int `json:"moviesWatched"`
	AwaitingCheck int `json:"awaitingCheck"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := h.library.Snapshot()
	response := StatusResponse{Status: h.library.Status()}
	for _, item := range snapshot.Watched {
		if item.MediaType == models.MediaTypeShow {
			response.ShowsWatched++
			if item.LastChecked == 0 {
				response.AwaitingCheck++
			}
		} else {
			response.MoviesWatched++
		}
	}

	writeJSON(w, http.StatusOK, response)
}
