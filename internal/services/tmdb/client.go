package tmdb

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
	"sync"
	"time"

	"github.com/amaumene/seenarr/internal/config"
	"github.com/sirupsen/logrus"
)

var (
	ErrAPIKeyMissing = errors.New("TMDB API key is not configured")
	ErrUnauthorized  = errors.New("TMDB authorization failed")
	ErrNotFound      = errors.New("TMDB resource not found")
	ErrRateLimited   = errors.New("TMDB API rate limited")
	ErrAPIError      = errors.New("TMDB API error")
)

// IsUnauthorized reports whether err carries a 401 from the API
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// errorResponse is the error body returned by the API
type errorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

// Client handles communication with the TMDB v3 API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger

	mu     sync.RWMutex
	apiKey string
}

// NewClient creates a new TMDB API client
func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	timeout := cfg.TMDBTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.TMDBBaseURL, "/"),
		apiKey:     cfg.TMDBAPIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SetAPIKey replaces the API key, e.g. once it is restored from the library
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = key
}

// APIKey returns the key currently in use
func (c *Client) APIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// doRequest performs a request against the API and decodes the JSON response into result
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}, result interface{}) error {
	apiKey := c.APIKey()
	if apiKey == "" {
		return ErrAPIKeyMissing
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", apiKey)

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	fullURL := c.baseURL + path + "?" + query.Encode()
	c.logger.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
	}).Debug("Making TMDB API request")

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json;charset=utf-8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(method, path, resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func (c *Client) statusError(method, path string, resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	message := strings.TrimSpace(string(bodyBytes))
	var errResp errorResponse
	if json.Unmarshal(bodyBytes, &errResp) == nil && errResp.StatusMessage != "" {
		message = errResp.StatusMessage
	}

	c.logger.WithFields(logrus.Fields{
		"method":  method,
		"path":    path,
		"status":  resp.StatusCode,
		"message": message,
	}).Debug("TMDB API returned an error")

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return fmt.Errorf("%w: status %d: %s", ErrAPIError, resp.StatusCode, message)
	}
}
