// Package docstore writes named files into a remote document (gist-style API).
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amaumene/seenarr/internal/config"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotConfigured = errors.New("document store is not configured")
	ErrUnauthorized  = errors.New("document store rejected the token")
	ErrNotFound      = errors.New("document not found")
	ErrAPIError      = errors.New("document store error")
)

// Client overwrites files in a single remote document
type Client struct {
	baseURL    string
	documentID string
	token      string
	httpClient *http.Client
	logger     *logrus.Logger
}

type fileContent struct {
	Content string `json:"content"`
}

type patchRequest struct {
	Files map[string]fileContent `json:"files"`
}

// NewClient creates a document store client from the backup settings
func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BackupBaseURL, "/"),
		documentID: cfg.BackupDocumentID,
		token:      cfg.BackupToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// OverwriteFile replaces the content of file name in the document, creating it if needed
func (c *Client) OverwriteFile(ctx context.Context, name, content string) error {
	if c.documentID == "" || c.token == "" {
		return ErrNotConfigured
	}

	body := patchRequest{Files: map[string]fileContent{name: {Content: content}}}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	path := "/gists/" + url.PathEscape(c.documentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")

	c.logger.WithFields(logrus.Fields{
		"document": c.documentID,
		"file":     name,
		"bytes":    len(content),
	}).Debug("Writing backup document")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := strings.TrimSpace(string(bodyBytes))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, c.documentID)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrAPIError, resp.StatusCode, message)
	}
}

// IsPermanent reports whether retrying the write cannot succeed
func IsPermanent(err error) bool {
	return errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotFound)
}
