package tmdb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/amaumene/seenarr/internal/models"
)

// listResult is one entry of an account list; movies and tv share the endpoint shape
// but differ in their title and date field names.
type listResult struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	VoteAverage  float64 `json:"vote_average"`
	Rating       float64 `json:"rating"`
}

type listResponse struct {
	Page         int          `json:"page"`
	Results      []listResult `json:"results"`
	TotalPages   int          `json:"total_pages"`
	TotalResults int          `json:"total_results"`
}

type episodeResult struct {
	AirDate       string `json:"air_date"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	Name          string `json:"name"`
	Overview      string `json:"overview"`
}

type detailsResponse struct {
	listResult
	Status           string         `json:"status"`
	NextEpisodeToAir *episodeResult `json:"next_episode_to_air"`
}

// pathType maps a media type to the segment the API uses for it
func pathType(mediaType models.MediaType) string {
	if mediaType == models.MediaTypeShow {
		return "tv"
	}
	return "movie"
}

func listSegment(mediaType models.MediaType) string {
	if mediaType == models.MediaTypeShow {
		return "tv"
	}
	return "movies"
}

func sessionQuery(session models.RemoteSession) url.Values {
	q := url.Values{}
	q.Set("session_id", session.SessionID)
	return q
}

func (r listResult) toItem(mediaType models.MediaType) models.MediaItem {
	item := models.MediaItem{
		ID:           r.ID,
		MediaType:    mediaType,
		Title:        r.Title,
		PosterPath:   r.PosterPath,
		BackdropPath: r.BackdropPath,
		Overview:     r.Overview,
		ReleaseDate:  r.ReleaseDate,
		VoteAverage:  r.VoteAverage,
	}
	if mediaType == models.MediaTypeShow {
		item.Title = r.Name
		item.ReleaseDate = r.FirstAirDate
	}
	if r.Rating > 0 {
		item.UserRating = models.ToEngineRating(r.Rating)
	}
	return item
}

// FetchPage retrieves one page of the account watchlist or rated list
func (c *Client) FetchPage(ctx context.Context, session models.RemoteSession, list models.ListKind, mediaType models.MediaType, page int) (models.Page, error) {
	path := fmt.Sprintf("/account/%d/%s/%s", session.AccountID, list, listSegment(mediaType))
	query := sessionQuery(session)
	query.Set("page", strconv.Itoa(page))
	query.Set("sort_by", "created_at.asc")

	var resp listResponse
	if err := c.doRequest(ctx, "GET", path, query, nil, &resp); err != nil {
		return models.Page{}, fmt.Errorf("failed to get %s %s page %d: %w", list, mediaType, page, err)
	}

	items := make([]models.MediaItem, 0, len(resp.Results))
	for _, r := range resp.Results {
		items = append(items, r.toItem(mediaType))
	}

	return models.Page{
		Items:      items,
		Page:       resp.Page,
		TotalPages: resp.TotalPages,
	}, nil
}

// SetWatchlistFlag adds the item to or removes it from the account watchlist
func (c *Client) SetWatchlistFlag(ctx context.Context, session models.RemoteSession, id int, mediaType models.MediaType, flag bool) error {
	path := fmt.Sprintf("/account/%d/watchlist", session.AccountID)
	body := map[string]interface{}{
		"media_type": pathType(mediaType),
		"media_id":   id,
		"watchlist":  flag,
	}

	if err := c.doRequest(ctx, "POST", path, sessionQuery(session), body, nil); err != nil {
		return fmt.Errorf("failed to set watchlist flag: %w", err)
	}
	return nil
}

// SetRating rates the item; value is on the remote 0.5-10 scale
func (c *Client) SetRating(ctx context.Context, session models.RemoteSession, id int, mediaType models.MediaType, value float64) error {
	if value < 0.5 || value > 10 {
		return fmt.Errorf("rating %.1f outside 0.5-10", value)
	}

	path := fmt.Sprintf("/%s/%d/rating", pathType(mediaType), id)
	body := map[string]float64{"value": value}

	if err := c.doRequest(ctx, "POST", path, sessionQuery(session), body, nil); err != nil {
		return fmt.Errorf("failed to rate: %w", err)
	}
	return nil
}

// ClearRating deletes the account rating of the item
func (c *Client) ClearRating(ctx context.Context, session models.RemoteSession, id int, mediaType models.MediaType) error {
	path := fmt.Sprintf("/%s/%d/rating", pathType(mediaType), id)

	if err := c.doRequest(ctx, "DELETE", path, sessionQuery(session), nil, nil); err != nil {
		return fmt.Errorf("failed to clear rating: %w", err)
	}
	return nil
}

// FetchItemDetails retrieves fresh catalog details including status and next episode
func (c *Client) FetchItemDetails(ctx context.Context, id int, mediaType models.MediaType) (*models.MediaItem, error) {
	path := fmt.Sprintf("/%s/%d", pathType(mediaType), id)

	var resp detailsResponse
	if err := c.doRequest(ctx, "GET", path, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get details: %w", err)
	}

	item := resp.toItem(mediaType)
	item.Status = resp.Status
	if ep := resp.NextEpisodeToAir; ep != nil {
		item.NextEpisode = &models.NextEpisode{
			AirDate:       ep.AirDate,
			SeasonNumber:  ep.SeasonNumber,
			EpisodeNumber: ep.EpisodeNumber,
			Name:          ep.Name,
			Overview:      ep.Overview,
		}
	}

	return &item, nil
}
