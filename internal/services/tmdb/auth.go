package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/amaumene/seenarr/internal/models"
	gocache "github.com/patrickmn/go-cache"
)

// Request tokens expire 60 minutes after creation
const requestTokenTTL = 60 * time.Minute

// ErrUnknownRequestToken is returned for tokens that were never issued here or have expired
var ErrUnknownRequestToken = errors.New("unknown or expired request token")

type requestTokenResponse struct {
	Success      bool   `json:"success"`
	ExpiresAt    string `json:"expires_at"`
	RequestToken string `json:"request_token"`
}

type sessionResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
}

type accountResponse struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// CreateRequestToken asks for a new request token the user must approve
func (c *Client) CreateRequestToken(ctx context.Context) (string, error) {
	var resp requestTokenResponse
	if err := c.doRequest(ctx, "GET", "/authentication/token/new", nil, nil, &resp); err != nil {
		return "", fmt.Errorf("failed to create request token: %w", err)
	}
	if !resp.Success || resp.RequestToken == "" {
		return "", fmt.Errorf("%w: request token not issued", ErrAPIError)
	}
	return resp.RequestToken, nil
}

// CreateSession exchanges an approved request token for a session id.
// An unapproved token yields ErrUnauthorized.
func (c *Client) CreateSession(ctx context.Context, requestToken string) (string, error) {
	body := map[string]string{"request_token": requestToken}

	var resp sessionResponse
	if err := c.doRequest(ctx, "POST", "/authentication/session/new", nil, body, &resp); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	if !resp.Success || resp.SessionID == "" {
		return "", fmt.Errorf("%w: session not created", ErrAPIError)
	}
	return resp.SessionID, nil
}

// GetAccount looks up the account id behind a session
func (c *Client) GetAccount(ctx context.Context, sessionID string) (int, error) {
	query := url.Values{}
	query.Set("session_id", sessionID)

	var resp accountResponse
	if err := c.doRequest(ctx, "GET", "/account", query, nil, &resp); err != nil {
		return 0, fmt.Errorf("failed to get account: %w", err)
	}
	return resp.ID, nil
}

// DeleteSession revokes a session on the remote side
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	body := map[string]string{"session_id": sessionID}
	if err := c.doRequest(ctx, "DELETE", "/authentication/session", nil, body, nil); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Authenticator runs the request-token, user-approval, session exchange flow.
// Issued tokens are remembered until they expire so only our own tokens are exchanged.
type Authenticator struct {
	client  *Client
	authURL string
	pending *gocache.Cache
}

// NewAuthenticator creates an authenticator; authURL is the approval page base
func NewAuthenticator(client *Client, authURL string) *Authenticator {
	return &Authenticator{
		client:  client,
		authURL: strings.TrimRight(authURL, "/"),
		pending: gocache.New(requestTokenTTL, 10*time.Minute),
	}
}

// Start creates a request token and returns it with the URL the user must visit
func (a *Authenticator) Start(ctx context.Context) (token string, approveURL string, err error) {
	token, err = a.client.CreateRequestToken(ctx)
	if err != nil {
		return "", "", err
	}
	a.pending.Set(token, time.Now(), gocache.DefaultExpiration)
	return token, a.AuthorizeURL(token), nil
}

// AuthorizeURL returns the approval page for token
func (a *Authenticator) AuthorizeURL(token string) string {
	return a.authURL + "/" + url.PathEscape(token)
}

// Complete exchanges an approved token for a session and resolves the account id
func (a *Authenticator) Complete(ctx context.Context, token string) (*models.RemoteSession, error) {
	if _, ok := a.pending.Get(token); !ok {
		return nil, ErrUnknownRequestToken
	}

	sessionID, err := a.client.CreateSession(ctx, token)
	if err != nil {
		return nil, err
	}

	accountID, err := a.client.GetAccount(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	a.pending.Delete(token)
	return &models.RemoteSession{SessionID: sessionID, AccountID: accountID}, nil
}

// WaitForApproval polls Complete until the user approves the token,
// the token expires, or ctx is done.
func (a *Authenticator) WaitForApproval(ctx context.Context, token string, interval time.Duration) (*models.RemoteSession, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			session, err := a.Complete(ctx, token)
			if err == nil {
				return session, nil
			}
			if errors.Is(err, ErrUnknownRequestToken) {
				return nil, fmt.Errorf("authentication timeout: %w", err)
			}
			if !IsUnauthorized(err) {
				a.client.logger.WithError(err).Debug("Session exchange failed, retrying")
			} else {
				a.client.logger.Debug("Waiting for user approval...")
			}
		}
	}
}
