package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/amaumene/seenarr/internal/engine"
	"github.com/sirupsen/logrus"
)

// BackupExporter writes the backup document on demand
type BackupExporter interface {
	Export(ctx context.Context) error
}

// SyncHandler triggers resyncs, sweeps, backups and logout
type SyncHandler struct {
	library  Library
	exporter BackupExporter
	logger   *logrus.Logger
}

// NewSyncHandler creates a new sync handler; exporter may be nil
func NewSyncHandler(library Library, exporter BackupExporter, logger *logrus.Logger) *SyncHandler {
	return &SyncHandler{
		library:  library,
		exporter: exporter,
		logger:   logger,
	}
}

// Resync runs a full resync; ?force=true bypasses the debounce window
func (h *SyncHandler) Resync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	result, err := h.library.Resync(r.Context(), force)
	switch {
	case errors.Is(err, engine.ErrNoSession):
		writeError(w, h.logger, http.StatusConflict, "No remote session", err)
	case errors.Is(err, engine.ErrSessionExpired):
		writeError(w, h.logger, http.StatusUnauthorized, "Remote session expired", err)
	case err != nil:
		writeError(w, h.logger, http.StatusBadGateway, "Resync failed", err)
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// Sweep runs the migration sweep
func (h *SyncHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := h.library.Sweep(r.Context())
	switch {
	case errors.Is(err, engine.ErrSessionExpired):
		writeError(w, h.logger, http.StatusUnauthorized, "Remote session expired", err)
	case err != nil:
		writeError(w, h.logger, http.StatusBadGateway, "Sweep failed", err)
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// Backup writes the backup document
func (h *SyncHandler) Backup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.exporter == nil {
		writeError(w, h.logger, http.StatusNotFound, "Backups are not configured", nil)
		return
	}

	if err := h.exporter.Export(r.Context()); err != nil {
		writeError(w, h.logger, http.StatusBadGateway, "Backup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Logout clears the session and both lists
func (h *SyncHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.library.Logout(r.Context()); err != nil {
		writeError(w, h.logger, http.StatusInternalServerError, "Logout failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
