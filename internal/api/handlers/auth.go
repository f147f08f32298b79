package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/amaumene/seenarr/internal/models"
	"github.com/amaumene/seenarr/internal/services/tmdb"
	"github.com/sirupsen/logrus"
)

// Authenticator runs the remote request-token flow
type Authenticator interface {
	Start(ctx context.Context) (token string, approveURL string, err error)
	Complete(ctx context.Context, token string) (*models.RemoteSession, error)
}

// AuthHandler exposes the two halves of the login flow
type AuthHandler struct {
	auth    Authenticator
	library Library
	logger  *logrus.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth Authenticator, library Library, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, library: library, logger: logger}
}

// Start issues a request token and returns the URL the user must approve it at
func (h *AuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token, approveURL, err := h.auth.Start(r.Context())
	if err != nil {
		writeError(w, h.logger, http.StatusBadGateway, "Failed to start authentication", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"requestToken": token,
		"approveUrl":   approveURL,
	})
}

// Complete exchanges an approved token for a session and stores it
func (h *AuthHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		RequestToken string `json:"requestToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RequestToken == "" {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid payload", err)
		return
	}

	session, err := h.auth.Complete(r.Context(), req.RequestToken)
	switch {
	case errors.Is(err, tmdb.ErrUnknownRequestToken):
		writeError(w, h.logger, http.StatusNotFound, "Unknown request token", err)
		return
	case tmdb.IsUnauthorized(err):
		writeError(w, h.logger, http.StatusForbidden, "Request token not approved yet", err)
		return
	case err != nil:
		writeError(w, h.logger, http.StatusBadGateway, "Failed to complete authentication", err)
		return
	}

	if err := h.library.Login(r.Context(), *session); err != nil {
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to store session", err)
		return
	}

	h.logger.WithField("account_id", session.AccountID).Info("Remote account linked")
	writeJSON(w, http.StatusOK, map[string]int{"accountId": session.AccountID})
}
