package models

import "time"

// IntentAction is one remote call mirrored after a local mutation
type IntentAction string

const (
	ActionWatchlistOn  IntentAction = "watchlist_on"
	ActionWatchlistOff IntentAction = "watchlist_off"
	ActionRate         IntentAction = "rate"
	ActionClearRating  IntentAction = "clear_rating"
)

// IntentStep is a single remote call; Value carries the remote-scale rating for ActionRate.
type IntentStep struct {
	Action IntentAction `json:"action"`
	Value  float64      `json:"value,omitempty"`
}

// Intent is a queued remote mirror of a committed local mutation.
// Steps run in order and stop at the first failure.
type Intent struct {
	Seq       uint64       `json:"seq"`
	ItemID    int          `json:"itemId"`
	MediaType MediaType    `json:"mediaType"`
	Title     string       `json:"title,omitempty"`
	Steps     []IntentStep `json:"steps"`
	CreatedAt time.Time    `json:"createdAt"`
}
