package models

import (
	"errors"
	"math"
)

// Engine ratings are whole stars 1-5; the remote account stores 0.5-10.
const (
	MinRating     = 1
	MaxRating     = 5
	DefaultRating = 1

	remoteScale = 2
)

// ErrInvalidRating is returned for ratings outside 1-5.
var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// ValidateRating checks an engine-scale rating.
func ValidateRating(r int) error {
	if r < MinRating || r > MaxRating {
		return ErrInvalidRating
	}
	return nil
}

// ToRemoteRating converts a 1-5 rating to the remote 0.5-10 scale.
func ToRemoteRating(r int) float64 {
	return float64(r * remoteScale)
}

// ToEngineRating converts a remote rating back to 1-5, rounding half steps up.
func ToEngineRating(v float64) int {
	r := int(math.Round(v / remoteScale))
	if r < MinRating {
		return MinRating
	}
	if r > MaxRating {
		return MaxRating
	}
	return r
}
