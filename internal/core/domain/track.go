package domain

import "strings"

// Track is one audio file in the library. Identity is the pair
// (Category, file name without extension).
type Track struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Artist          string  `json:"artist"`
	Category        Emotion `json:"emotion_category"`
	FilePath        string  `json:"-"`
	DurationSeconds float64 `json:"duration"`
	PopularityScore float64 `json:"popularity_score"`
}

// UnknownArtist is used when a file carries no artist tag.
const UnknownArtist = "Unknown"

// TrackID derives the stable id for a file named base inside category.
func TrackID(category Emotion, base string) string {
	return string(category) + "_" + strings.TrimSpace(base)
}
