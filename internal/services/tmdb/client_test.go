package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amaumene/seenarr/internal/config"
	"github.com/amaumene/seenarr/internal/models"
	"github.com/amaumene/seenarr/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSession = models.RemoteSession{SessionID: "sess-1", AccountID: 77}

func newTestClient(server *httptest.Server) *Client {
	cfg := &config.Config{
		TMDBAPIKey:  "test-api-key",
		TMDBBaseURL: server.URL,
		TMDBTimeout: 5 * time.Second,
	}
	return NewClient(cfg, utils.NewNopLogger())
}

func TestFetchPageMovies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/account/77/rated/movies", r.URL.Path)
		assert.Equal(t, "sess-1", r.URL.Query().Get("session_id"))
		assert.Equal(t, "test-api-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"page":        2,
			"total_pages": 3,
			"results": []map[string]interface{}{
				{"id": 603, "title": "The Matrix", "release_date": "1999-03-30", "poster_path": "/m.jpg", "rating": 8.0},
			},
		})
	}))
	defer server.Close()

	page, err := newTestClient(server).FetchPage(context.Background(), testSession, models.ListRated, models.MediaTypeMovie, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 1)

	item := page.Items[0]
	assert.Equal(t, 603, item.ID)
	assert.Equal(t, models.MediaTypeMovie, item.MediaType)
	assert.Equal(t, "The Matrix", item.Title)
	assert.Equal(t, "1999", item.Year())
	assert.Equal(t, 4, item.UserRating)
}

func TestFetchPageShowsUseNameFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/account/77/watchlist/tv", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"page":        1,
			"total_pages": 1,
			"results": []map[string]interface{}{
				{"id": 1399, "name": "Game of Thrones", "first_air_date": "2011-04-17"},
			},
		})
	}))
	defer server.Close()

	page, err := newTestClient(server).FetchPage(context.Background(), testSession, models.ListWatchlist, models.MediaTypeShow, 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Game of Thrones", page.Items[0].Title)
	assert.Equal(t, "2011-04-17", page.Items[0].ReleaseDate)
	assert.Zero(t, page.Items[0].UserRating)
}

func TestUnauthorizedIsDistinguished(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status_code":3,"status_message":"Authentication failed: You do not have permissions to access the service."}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).FetchPage(context.Background(), testSession, models.ListRated, models.MediaTypeShow, 1)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Contains(t, err.Error(), "Authentication failed")
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, ErrNotFound},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"server error", http.StatusInternalServerError, ErrAPIError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			err := newTestClient(server).ClearRating(context.Background(), testSession, 1, models.MediaTypeMovie)
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, IsUnauthorized(err))
		})
	}
}

func TestMissingAPIKey(t *testing.T) {
	client := NewClient(&config.Config{TMDBBaseURL: "http://127.0.0.1:1"}, utils.NewNopLogger())
	_, err := client.FetchItemDetails(context.Background(), 1, models.MediaTypeMovie)
	assert.ErrorIs(t, err, ErrAPIKeyMissing)
}

func TestSetWatchlistFlagBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/account/77/watchlist", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tv", body["media_type"])
		assert.Equal(t, float64(42), body["media_id"])
		assert.Equal(t, true, body["watchlist"])
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	err := newTestClient(server).SetWatchlistFlag(context.Background(), testSession, 42, models.MediaTypeShow, true)
	assert.NoError(t, err)
}

func TestSetRating(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/5/rating", r.URL.Path)
		var body map[string]float64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 6.0, body["value"])
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := newTestClient(server)
	assert.NoError(t, client.SetRating(context.Background(), testSession, 5, models.MediaTypeMovie, 6))
	assert.Error(t, client.SetRating(context.Background(), testSession, 5, models.MediaTypeMovie, 11))
}

func TestFetchItemDetailsNextEpisode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tv/100", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     100,
			"name":   "Severance",
			"status": "Returning Series",
			"next_episode_to_air": map[string]interface{}{
				"air_date":       "2025-01-17",
				"season_number":  2,
				"episode_number": 1,
				"name":           "Hello, Ms. Cobel",
			},
		})
	}))
	defer server.Close()

	item, err := newTestClient(server).FetchItemDetails(context.Background(), 100, models.MediaTypeShow)
	require.NoError(t, err)
	assert.Equal(t, "Severance", item.Title)
	assert.Equal(t, "Returning Series", item.Status)
	require.NotNil(t, item.NextEpisode)
	assert.Equal(t, "2025-01-17", item.NextEpisode.AirDate)
	assert.Equal(t, 2, item.NextEpisode.SeasonNumber)
}

func TestAuthenticatorFlow(t *testing.T) {
	var approved atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/authentication/token/new":
			json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "request_token": "tok"})
		case "/authentication/session/new":
			if !approved.Load() {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "session_id": "new-session"})
		case "/account":
			assert.Equal(t, "new-session", r.URL.Query().Get("session_id"))
			json.NewEncoder(w).Encode(map[string]interface{}{"id": 12})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	auth := NewAuthenticator(newTestClient(server), "https://example.org/authenticate/")
	token, approveURL, err := auth.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.Equal(t, "https://example.org/authenticate/tok", approveURL)

	_, err = auth.Complete(context.Background(), token)
	assert.True(t, IsUnauthorized(err))

	approved.Store(true)
	session, err := auth.Complete(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "new-session", session.SessionID)
	assert.Equal(t, 12, session.AccountID)

	_, err = auth.Complete(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnknownRequestToken)
}

func TestAuthenticatorRejectsForeignToken(t *testing.T) {
	auth := NewAuthenticator(NewClient(&config.Config{}, utils.NewNopLogger()), "https://example.org")
	_, err := auth.Complete(context.Background(), "never-issued")
	assert.True(t, errors.Is(err, ErrUnknownRequestToken))
}

func TestBreakerPassesThroughUnauthorized(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	breaker := NewBreaker(newTestClient(server), utils.NewNopLogger())
	for i := 0; i < 8; i++ {
		err := breaker.ClearRating(context.Background(), testSession, 1, models.MediaTypeMovie)
		assert.True(t, IsUnauthorized(err))
	}
	assert.Equal(t, int32(8), calls.Load(), "authorization failures must not open the breaker")
}

func TestBreakerOpensOnOutage(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	breaker := NewBreaker(newTestClient(server), utils.NewNopLogger())
	var lastErr error
	for i := 0; i < 7; i++ {
		_, lastErr = breaker.FetchItemDetails(context.Background(), 1, models.MediaTypeShow)
	}
	assert.Equal(t, int32(5), calls.Load())
	assert.True(t, IsBreakerOpen(lastErr))
}
