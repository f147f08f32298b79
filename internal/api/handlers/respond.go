package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/amaumene/seenarr/internal/engine"
	"github.com/amaumene/seenarr/internal/models"
	"github.com/sirupsen/logrus"
)

// Library is the engine surface exposed over HTTP
type Library interface {
	Snapshot() *models.LibraryState
	Status() engine.Status
	ToggleWatchlist(ctx context.Context, item models.MediaItem) (bool, error)
	ToggleWatched(ctx context.Context, item models.MediaItem, rating *int) (bool, error)
	Resync(ctx context.Context, force bool) (engine.Result, error)
	Sweep(ctx context.Context) (engine.SweepResult, error)
	Login(ctx context.Context, session models.RemoteSession) error
	Logout(ctx context.Context) error
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, logger *logrus.Logger, status int, msg string, err error) {
	if err != nil && status >= http.StatusInternalServerError {
		logger.WithError(err).Error(msg)
	}
	body := map[string]string{"error": msg}
	if err != nil {
		body["detail"] = err.Error()
	}
	writeJSON(w, status, body)
}
